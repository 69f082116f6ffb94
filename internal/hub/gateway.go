package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cwrk-planet/realtime-service/internal/domain"
)

// Report — итог одной рассылки. Ошибки доставки считаются, но не возвращаются отправителю.
type Report struct {
	Rooms      []domain.RoomKey
	Recipients int
	Delivered  int
	Failed     int
}

func (r *Report) add(o Report) {
	r.Rooms = append(r.Rooms, o.Rooms...)
	r.Recipients += o.Recipients
	r.Delivered += o.Delivered
	r.Failed += o.Failed
}

// Gateway — Broadcast Gateway: снимок участников через Hub, затем доставка вне цикла Hub.
type Gateway struct {
	hub *Hub
}

func NewGateway(h *Hub) *Gateway {
	return &Gateway{hub: h}
}

// Broadcast доставляет событие всем текущим участникам комнаты, включая отправителя.
// Неудача на одном получателе не прерывает доставку остальным.
func (g *Gateway) Broadcast(ctx context.Context, room domain.RoomKey, event string, payload json.RawMessage) (Report, error) {
	frame, err := domain.EncodeMessage(event, payload)
	if err != nil {
		return Report{}, fmt.Errorf("encode %s: %w", event, err)
	}
	return g.deliver(ctx, room, event, frame)
}

// BroadcastRooms рассылает одно событие в несколько комнат; кадр сериализуется один раз.
func (g *Gateway) BroadcastRooms(ctx context.Context, rooms []domain.RoomKey, event string, payload json.RawMessage) (Report, error) {
	frame, err := domain.EncodeMessage(event, payload)
	if err != nil {
		return Report{}, fmt.Errorf("encode %s: %w", event, err)
	}

	var total Report
	for _, room := range rooms {
		rep, err := g.deliver(ctx, room, event, frame)
		if err != nil {
			return total, err
		}
		total.add(rep)
	}
	return total, nil
}

func (g *Gateway) deliver(ctx context.Context, room domain.RoomKey, event string, frame []byte) (Report, error) {
	members, err := g.hub.members(ctx, room)
	if err != nil {
		return Report{}, fmt.Errorf("snapshot %s: %w", room, err)
	}

	rep := Report{Rooms: []domain.RoomKey{room}, Recipients: len(members)}
	for _, c := range members {
		if err := c.Send(frame); err != nil {
			rep.Failed++
			slog.Warn("broadcast: delivery failed",
				"room", room,
				"event", event,
				"conn_id", c.ID(),
				"err", fmt.Errorf("%w: %v", domain.ErrDeliveryFailure, err))
			continue
		}
		rep.Delivered++
	}
	return rep, nil
}
