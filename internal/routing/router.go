package routing

import (
	"fmt"
	"sort"

	"github.com/cwrk-planet/realtime-service/internal/domain"

	"github.com/samber/lo"
)

// Target — результат маршрутизации: имя для подписчиков и набор комнат.
type Target struct {
	Event string
	Rooms []domain.RoomKey
}

type Router struct {
	table Table
}

func NewRouter(t Table) *Router {
	if t == nil {
		t = DefaultTable()
	}
	return &Router{table: t}
}

func (r *Router) Known(name string) bool {
	_, ok := r.table[name]
	return ok
}

// Names возвращает таксономию в стабильном порядке.
func (r *Router) Names() []string {
	out := lo.Keys(r.table)
	sort.Strings(out)
	return out
}

// Route — чистая функция от имени, полей payload и identity отправителя (nil для сервисов).
func (r *Router) Route(name string, f domain.Fields, origin *domain.Identity) (Target, error) {
	rt, ok := r.table[name]
	if !ok {
		return Target{}, fmt.Errorf("%w: %q", domain.ErrUnknownEvent, name)
	}

	rooms := make([]domain.RoomKey, 0, len(rt.Rooms))
	seen := make(map[domain.RoomKey]struct{}, len(rt.Rooms))
	for _, derive := range rt.Rooms {
		room, ok, err := derive(f)
		if err != nil {
			return Target{}, fmt.Errorf("route %s: %w", name, err)
		}
		if !ok {
			continue
		}
		if _, dup := seen[room]; dup {
			continue
		}
		seen[room] = struct{}{}
		rooms = append(rooms, room)
	}

	if origin != nil && rt.Owner != nil && !origin.Operator && !origin.Anonymous() {
		if !rt.Owner(*origin, f) {
			return Target{}, fmt.Errorf("route %s: %w", name, domain.ErrIdentityMismatch)
		}
	}

	return Target{Event: rt.Deliver, Rooms: rooms}, nil
}
