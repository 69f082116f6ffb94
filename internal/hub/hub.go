package hub

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"
)

// Hub — Lifecycle Supervisor. Единственная горутина владеет Connection Registry и
// Room Directory; все изменения и снимки проходят через небуферизованный канал команд
// и выполняются последовательно, поэтому join/leave/disconnect линеаризуемы
// относительно снимков для broadcast.
type Hub struct {
	cmds chan func()
	quit chan struct{}
	done chan struct{}

	reg    *registry
	dir    *directory
	now    func() time.Time
	closed bool // меняется только внутри цикла

	startOnce sync.Once
	stopOnce  sync.Once
}

type Option func(*Hub)

// WithClock подменяет часы (для тестов).
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

func New(opts ...Option) *Hub {
	reg := newRegistry()
	h := &Hub{
		cmds: make(chan func()),
		quit: make(chan struct{}),
		done: make(chan struct{}),
		reg:  reg,
		dir:  newDirectory(reg),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start запускает цикл супервизора. Повторный вызов ничего не делает.
func (h *Hub) Start() {
	h.startOnce.Do(func() {
		go h.run()
	})
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case fn := <-h.cmds:
			fn()
		case <-h.quit:
			return
		}
	}
}

// Shutdown переводит все соединения в Closed (снимает со всех комнат, дерегистрирует),
// останавливает цикл и закрывает транспорт соединений уже вне цикла.
func (h *Hub) Shutdown(ctx context.Context) error {
	// цикл должен работать, чтобы выполнить очистку
	h.Start()

	var conns []Conn
	err := h.exec(ctx, func() {
		h.closed = true
		for id, e := range h.reg.conns {
			h.dir.removeEverywhere(id)
			h.reg.deregister(id)
			conns = append(conns, e.conn)
		}
	})
	if err != nil && !errors.Is(err, domain.ErrHubClosed) {
		return err
	}

	h.stopOnce.Do(func() { close(h.quit) })
	select {
	case <-h.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	for _, c := range conns {
		if err := c.Close(); err != nil {
			slog.Debug("hub: close on shutdown failed", "conn_id", c.ID(), "err", err)
		}
	}
	slog.Info("hub stopped", "closed_connections", len(conns))
	return nil
}

// exec выполняет fn в горутине супервизора и ждёт завершения.
func (h *Hub) exec(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	cmd := func() {
		defer close(finished)
		fn()
	}

	select {
	case h.cmds <- cmd:
	case <-h.quit:
		return domain.ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	// команда принята циклом — он её обязательно выполнит
	<-finished
	return nil
}

// Register — переход Connecting -> Open: соединение без комнат.
func (h *Hub) Register(ctx context.Context, c Conn, id domain.Identity) (domain.Connection, error) {
	var (
		info domain.Connection
		rerr error
	)
	err := h.exec(ctx, func() {
		if h.closed {
			rerr = domain.ErrHubClosed
			return
		}
		e, err := h.reg.register(c, id, h.now())
		if err != nil {
			rerr = err
			return
		}
		info = e.snapshot(c.ID(), nil)
	})
	if err != nil {
		return domain.Connection{}, err
	}
	if rerr != nil {
		return domain.Connection{}, rerr
	}

	slog.Debug("hub: connection registered", "conn_id", c.ID(), "type", id.Type())
	return info, nil
}

// Deregister — переход Open -> Closed одним шагом: removeEverywhere + deregister.
func (h *Hub) Deregister(ctx context.Context, connID string) ([]domain.RoomKey, error) {
	var (
		rooms []domain.RoomKey
		rerr  error
	)
	err := h.exec(ctx, func() {
		if _, err := h.reg.lookup(connID); err != nil {
			rerr = err
			return
		}
		rooms = h.dir.removeEverywhere(connID)
		h.reg.deregister(connID)
	})
	if err != nil {
		return nil, err
	}
	if rerr != nil {
		return nil, rerr
	}

	slog.Debug("hub: connection deregistered", "conn_id", connID, "rooms", len(rooms))
	return rooms, nil
}

func (h *Hub) Lookup(ctx context.Context, connID string) (domain.Connection, error) {
	var (
		info domain.Connection
		rerr error
	)
	err := h.exec(ctx, func() {
		e, err := h.reg.lookup(connID)
		if err != nil {
			rerr = err
			return
		}
		info = e.snapshot(connID, h.dir.roomsOf(connID))
	})
	if err != nil {
		return domain.Connection{}, err
	}
	return info, rerr
}

func (h *Hub) Join(ctx context.Context, room domain.RoomKey, connID string) error {
	var rerr error
	if err := h.exec(ctx, func() { rerr = h.dir.join(room, connID) }); err != nil {
		return err
	}
	if rerr != nil {
		return rerr
	}

	slog.Debug("hub: joined room", "conn_id", connID, "room", room)
	return nil
}

// Leave для не-участника — no-op, для неизвестного соединения — ErrUnknownConnection.
func (h *Hub) Leave(ctx context.Context, room domain.RoomKey, connID string) error {
	var rerr error
	err := h.exec(ctx, func() {
		if _, err := h.reg.lookup(connID); err != nil {
			rerr = err
			return
		}
		h.dir.leave(room, connID)
	})
	if err != nil {
		return err
	}
	if rerr != nil {
		return rerr
	}

	slog.Debug("hub: left room", "conn_id", connID, "room", room)
	return nil
}

// MembersOf возвращает снимок id участников комнаты.
func (h *Hub) MembersOf(ctx context.Context, room domain.RoomKey) ([]string, error) {
	var ids []string
	if err := h.exec(ctx, func() { ids = h.dir.membersOf(room) }); err != nil {
		return nil, err
	}
	return ids, nil
}

// members — снимок соединений для Broadcast Gateway; доставка идёт уже после выхода из цикла.
func (h *Hub) members(ctx context.Context, room domain.RoomKey) ([]Conn, error) {
	var conns []Conn
	err := h.exec(ctx, func() {
		ids := h.dir.membersOf(room)
		conns = make([]Conn, 0, len(ids))
		for _, id := range ids {
			if e, ok := h.reg.conns[id]; ok {
				conns = append(conns, e.conn)
			}
		}
	})
	return conns, err
}

// Stats — данные для интроспекции.
type Stats struct {
	TotalConnections int
	Rooms            map[domain.RoomKey]int
	VendorRooms      map[domain.ID]int
	Connections      []domain.Connection
}

func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := h.exec(ctx, func() {
		st.TotalConnections = h.reg.len()
		st.Rooms = h.dir.counts()
		st.VendorRooms = make(map[domain.ID]int)
		for room, n := range st.Rooms {
			if room.Kind() == domain.RoomVendor {
				st.VendorRooms[room.Owner()] = n
			}
		}
		st.Connections = make([]domain.Connection, 0, len(h.reg.conns))
		for id, e := range h.reg.conns {
			st.Connections = append(st.Connections, e.snapshot(id, h.dir.roomsOf(id)))
		}
	})
	if err != nil {
		return Stats{}, err
	}

	sort.Slice(st.Connections, func(i, j int) bool {
		a, b := st.Connections[i], st.Connections[j]
		if !a.ConnectedAt.Equal(b.ConnectedAt) {
			return a.ConnectedAt.Before(b.ConnectedAt)
		}
		return a.ID < b.ID
	})
	return st, nil
}

func (e *entry) snapshot(id string, rooms []domain.RoomKey) domain.Connection {
	if rooms == nil {
		rooms = []domain.RoomKey{}
	}
	return domain.Connection{
		ID:          id,
		Identity:    e.identity,
		ConnectedAt: e.connectedAt,
		Rooms:       rooms,
	}
}
