package grpcx

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/hub"
	"github.com/cwrk-planet/realtime-service/internal/service"

	"github.com/samber/lo"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

type Service interface {
	Emit(ctx context.Context, req service.EmitRequest) (hub.Report, error)
	Stats(ctx context.Context) (hub.Stats, error)
}

type Server struct {
	svc Service
}

func NewServer(svc Service) *Server {
	return &Server{svc: svc}
}

func Register(grpcServer *grpc.Server, s *Server) {
	grpcServer.RegisterService(&IngestServiceDesc, s)
}

// Emit принимает {event, data, room?} — тот же запрос, что POST /api/emit.
func (s *Server) Emit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	raw, err := in.MarshalJSON()
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid request")
	}
	var req service.EmitRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, "request must be {event, data, room?}")
	}
	if req.Event == "" {
		return nil, status.Error(codes.InvalidArgument, "event is required")
	}

	rep, err := s.svc.Emit(ctx, req)
	if err != nil {
		return nil, mapErr(err)
	}

	rooms := lo.Map(rep.Rooms, func(k domain.RoomKey, _ int) string { return k.String() })
	sort.Strings(rooms)

	out, err := structpb.NewStruct(map[string]any{
		"success":   true,
		"rooms":     lo.ToAnySlice(rooms),
		"delivered": rep.Delivered,
		"failed":    rep.Failed,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) Stats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, err := s.svc.Stats(ctx)
	if err != nil {
		return nil, mapErr(err)
	}

	conns := make([]any, 0, len(st.Connections))
	for _, c := range st.Connections {
		rooms := lo.Map(c.Rooms, func(k domain.RoomKey, _ int) string { return k.String() })
		sort.Strings(rooms)
		conns = append(conns, map[string]any{
			"id":          c.ID,
			"vendorId":    c.Identity.VendorID.String(),
			"customerId":  c.Identity.CustomerID.String(),
			"operator":    c.Identity.Operator,
			"type":        c.Identity.Type(),
			"connectedAt": c.ConnectedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			"rooms":       lo.ToAnySlice(rooms),
		})
	}

	out, err := structpb.NewStruct(map[string]any{
		"totalConnections": st.TotalConnections,
		"vendorRooms": lo.MapEntries(st.VendorRooms, func(id domain.ID, n int) (string, any) {
			return id.String(), n
		}),
		"rooms": lo.MapEntries(st.Rooms, func(k domain.RoomKey, n int) (string, any) {
			return k.String(), n
		}),
		"connections": conns,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, domain.ErrUnknownEvent),
		errors.Is(err, domain.ErrMissingRoutingField),
		errors.Is(err, domain.ErrInvalidRoom):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrForbiddenRoom):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, domain.ErrUnknownConnection):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrHubClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
