package http

import (
	"sort"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/hub"

	"github.com/samber/lo"
)

type EmitResponse struct {
	Success   bool     `json:"success"`
	Rooms     []string `json:"rooms"`
	Delivered int      `json:"delivered"`
	Failed    int      `json:"failed"`
}

type JoinRoomRequest struct {
	Room string `json:"room"`
}

type ConnectionItem struct {
	ID          string    `json:"id"`
	VendorID    string    `json:"vendorId,omitempty"`
	CustomerID  string    `json:"customerId,omitempty"`
	Operator    bool      `json:"operator"`
	Type        string    `json:"type"`
	ConnectedAt time.Time `json:"connectedAt"`
	Rooms       []string  `json:"rooms"`
}

type ConnectionsResponse struct {
	TotalConnections int              `json:"totalConnections"`
	VendorRooms      map[string]int   `json:"vendorRooms"`
	Rooms            map[string]int   `json:"rooms"`
	Connections      []ConnectionItem `json:"connections"`
}

type EventsResponse struct {
	Events []string `json:"events"`
}

func roomStrings(rooms []domain.RoomKey) []string {
	out := lo.Map(rooms, func(k domain.RoomKey, _ int) string { return k.String() })
	sort.Strings(out)
	return out
}

func toEmitResponse(rep hub.Report) EmitResponse {
	return EmitResponse{
		Success:   true,
		Rooms:     roomStrings(rep.Rooms),
		Delivered: rep.Delivered,
		Failed:    rep.Failed,
	}
}

func toConnectionsResponse(st hub.Stats) ConnectionsResponse {
	return ConnectionsResponse{
		TotalConnections: st.TotalConnections,
		VendorRooms: lo.MapKeys(st.VendorRooms, func(_ int, id domain.ID) string {
			return id.String()
		}),
		Rooms: lo.MapKeys(st.Rooms, func(_ int, k domain.RoomKey) string {
			return k.String()
		}),
		Connections: lo.Map(st.Connections, func(c domain.Connection, _ int) ConnectionItem {
			return ConnectionItem{
				ID:          c.ID,
				VendorID:    c.Identity.VendorID.String(),
				CustomerID:  c.Identity.CustomerID.String(),
				Operator:    c.Identity.Operator,
				Type:        c.Identity.Type(),
				ConnectedAt: c.ConnectedAt,
				Rooms:       roomStrings(c.Rooms),
			}
		}),
	}
}
