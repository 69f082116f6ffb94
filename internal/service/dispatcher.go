package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/analytics"
	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/hub"
	"github.com/cwrk-planet/realtime-service/internal/routing"
	"github.com/cwrk-planet/realtime-service/pkg/logger"
)

// EmitRequest — one-shot запрос внутреннего сервиса (HTTP, gRPC, Kafka).
// Room задан — прямая рассылка в комнату мимо таблицы маршрутизации.
type EmitRequest struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Room  string          `json:"room,omitempty"`
}

// Dispatcher — точка схождения всех ingress-адаптеров.
type Dispatcher struct {
	hub    *hub.Hub
	gw     *hub.Gateway
	router *routing.Router
	views  analytics.Recorder
	now    func() time.Time
}

func NewDispatcher(h *hub.Hub, router *routing.Router, views analytics.Recorder, now func() time.Time) *Dispatcher {
	if router == nil {
		router = routing.NewRouter(nil)
	}
	if views == nil {
		views = analytics.NewLogRecorder(nil)
	}
	if now == nil {
		now = time.Now
	}

	return &Dispatcher{
		hub:    h,
		gw:     hub.NewGateway(h),
		router: router,
		views:  views,
		now:    now,
	}
}

// Connect регистрирует открытое соединение без комнат.
func (d *Dispatcher) Connect(ctx context.Context, c hub.Conn, id domain.Identity) (domain.Connection, error) {
	return d.hub.Register(ctx, c, id)
}

// Disconnect снимает соединение со всех комнат и из реестра одним шагом.
func (d *Dispatcher) Disconnect(ctx context.Context, connID string) error {
	rooms, err := d.hub.Deregister(ctx, connID)
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("connection closed", "rooms", len(rooms))
	return nil
}

// Subscribe — join по запросу самого соединения, с проверкой права на комнату.
func (d *Dispatcher) Subscribe(ctx context.Context, connID string, room domain.RoomKey) error {
	conn, err := d.hub.Lookup(ctx, connID)
	if err != nil {
		return err
	}
	if err := conn.Identity.CanJoin(room); err != nil {
		return fmt.Errorf("join %s: %w", room, err)
	}
	return d.hub.Join(ctx, room, connID)
}

// Join — join от имени соединения по запросу доверенного внутреннего сервиса.
func (d *Dispatcher) Join(ctx context.Context, connID string, room domain.RoomKey) error {
	if room.Kind() == domain.RoomUnknown {
		return fmt.Errorf("%w: %q", domain.ErrInvalidRoom, room)
	}
	return d.hub.Join(ctx, room, connID)
}

func (d *Dispatcher) Leave(ctx context.Context, connID string, room domain.RoomKey) error {
	return d.hub.Leave(ctx, room, connID)
}

// Publish — событие от подключённого клиента; identity берётся из реестра.
func (d *Dispatcher) Publish(ctx context.Context, connID, name string, payload json.RawMessage) (hub.Report, error) {
	conn, err := d.hub.Lookup(ctx, connID)
	if err != nil {
		return hub.Report{}, err
	}
	return d.dispatch(ctx, name, payload, &conn.Identity)
}

// Emit — one-shot событие без соединения.
func (d *Dispatcher) Emit(ctx context.Context, req EmitRequest) (hub.Report, error) {
	name := strings.TrimSpace(req.Event)
	if req.Room == "" {
		return d.dispatch(ctx, name, req.Data, nil)
	}

	if name == "" {
		return hub.Report{}, fmt.Errorf("%w: empty event name", domain.ErrUnknownEvent)
	}
	room, err := domain.ParseRoomKey(req.Room)
	if err != nil {
		return hub.Report{}, err
	}

	rep, err := d.gw.Broadcast(ctx, room, name, req.Data)
	if err != nil {
		return rep, err
	}
	logger.FromContext(ctx).Info("event broadcast to room",
		"event", name,
		"room", room,
		"delivered", rep.Delivered,
		"failed", rep.Failed)
	return rep, nil
}

// dispatch логирует без conn_id: для ws он уже в логгере из ctx.
func (d *Dispatcher) dispatch(ctx context.Context, name string, payload json.RawMessage, origin *domain.Identity) (hub.Report, error) {
	log := logger.FromContext(ctx)

	if len(payload) > 0 && !json.Valid(payload) {
		return hub.Report{}, fmt.Errorf("%s: %w: payload is not valid JSON", name, domain.ErrMissingRoutingField)
	}

	f := domain.ParseFields(payload)
	target, err := d.router.Route(name, f, origin)
	if err != nil {
		log.Warn("event rejected", "event", name, "err", err)
		return hub.Report{}, err
	}

	log.Info("event routed",
		"event", name,
		"vendorId", f.VendorID,
		"productId", f.ProductID,
		"timestamp", f.Timestamp,
		"rooms", target.Rooms)

	rep, err := d.gw.BroadcastRooms(ctx, target.Rooms, target.Event, payload)
	if err != nil {
		return rep, err
	}

	if name == domain.EventProductViewed && !f.ProductID.Empty() {
		d.views.RecordView(domain.ProductView{
			ProductID: f.ProductID,
			VendorID:  f.VendorID,
			ViewedAt:  d.now(),
		})
	}

	if rep.Failed > 0 {
		log.Warn("event partially delivered", "event", name, "delivered", rep.Delivered, "failed", rep.Failed)
	}
	return rep, nil
}

func (d *Dispatcher) Stats(ctx context.Context) (hub.Stats, error) {
	return d.hub.Stats(ctx)
}

// Events — известная таксономия событий.
func (d *Dispatcher) Events() []string {
	return d.router.Names()
}

// IsClientError — ошибка вызвана запросом, а не состоянием сервиса.
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrUnknownEvent) ||
		errors.Is(err, domain.ErrMissingRoutingField) ||
		errors.Is(err, domain.ErrInvalidRoom) ||
		errors.Is(err, domain.ErrForbiddenRoom)
}
