package grpcx

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/hub"
	"github.com/cwrk-planet/realtime-service/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type sinkConn struct {
	id string
	mu sync.Mutex
	n  int
}

func (c *sinkConn) ID() string   { return c.id }
func (c *sinkConn) Close() error { return nil }

func (c *sinkConn) Send([]byte) error {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return nil
}

func (c *sinkConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type panicService struct{}

func (panicService) Emit(context.Context, service.EmitRequest) (hub.Report, error) {
	panic("boom")
}

func (panicService) Stats(context.Context) (hub.Stats, error) { return hub.Stats{}, nil }

func dial(t *testing.T, svc Service) *IngestClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(time.Second)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor()),
	)
	Register(srv, NewServer(svc))
	go func() { _ = srv.Serve(lis) }()

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = cc.Close()
		srv.Stop()
	})
	return NewIngestClient(cc)
}

func newDispatcher(t *testing.T) *service.Dispatcher {
	t.Helper()
	h := hub.New()
	h.Start()
	t.Cleanup(func() { _ = h.Shutdown(context.Background()) })
	return service.NewDispatcher(h, nil, nil, nil)
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestIngest_EmitRouted(t *testing.T) {
	d := newDispatcher(t)
	ctx := context.Background()
	vendor := &sinkConn{id: "v"}
	_, err := d.Connect(ctx, vendor, domain.Identity{VendorID: "V1"})
	require.NoError(t, err)
	require.NoError(t, d.Join(ctx, "v", domain.VendorRoom("V1")))

	client := dial(t, d)
	out, err := client.Emit(ctx, mustStruct(t, map[string]any{
		"event": "order:updated",
		"data": map[string]any{
			"order": map[string]any{"id": "o-1", "vendorId": "V1", "status": "shipped"},
		},
	}))
	require.NoError(t, err)

	m := out.AsMap()
	assert.Equal(t, true, m["success"])
	assert.Equal(t, []any{"admin", "vendor:V1"}, m["rooms"])
	assert.EqualValues(t, 1, m["delivered"])
	assert.Equal(t, 1, vendor.count())
}

func TestIngest_EmitRawRoomNumericIDs(t *testing.T) {
	d := newDispatcher(t)
	ctx := context.Background()
	c := &sinkConn{id: "c"}
	_, err := d.Connect(ctx, c, domain.Identity{})
	require.NoError(t, err)
	require.NoError(t, d.Join(ctx, "c", domain.VendorRoom("7")))

	client := dial(t, d)
	_, err = client.Emit(ctx, mustStruct(t, map[string]any{
		"event": "product:deleted",
		"data":  map[string]any{"vendorId": 7, "productId": 99},
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, c.count())
}

func TestIngest_EmitErrors(t *testing.T) {
	client := dial(t, newDispatcher(t))
	ctx := context.Background()

	_, err := client.Emit(ctx, mustStruct(t, map[string]any{"event": "nope", "data": map[string]any{}}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Emit(ctx, mustStruct(t, map[string]any{"data": map[string]any{}}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Emit(ctx, mustStruct(t, map[string]any{"event": "x", "room": "lobby"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestIngest_Stats(t *testing.T) {
	d := newDispatcher(t)
	ctx := context.Background()
	_, err := d.Connect(ctx, &sinkConn{id: "a"}, domain.Identity{VendorID: "teva-deli"})
	require.NoError(t, err)
	require.NoError(t, d.Join(ctx, "a", domain.VendorRoom("teva-deli")))

	client := dial(t, d)
	out, err := client.Stats(ctx)
	require.NoError(t, err)

	m := out.AsMap()
	assert.EqualValues(t, 1, m["totalConnections"])
	assert.Equal(t, map[string]any{"teva-deli": float64(1)}, m["vendorRooms"])
	conns, ok := m["connections"].([]any)
	require.True(t, ok)
	require.Len(t, conns, 1)
	first := conns[0].(map[string]any)
	assert.Equal(t, "vendor", first["type"])
	assert.Equal(t, []any{"vendor:teva-deli"}, first["rooms"])
}

func TestIngest_PanicRecovered(t *testing.T) {
	client := dial(t, panicService{})

	_, err := client.Emit(context.Background(), mustStruct(t, map[string]any{"event": "x"}))
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestMapErr(t *testing.T) {
	cases := map[error]codes.Code{
		domain.ErrIdentityMismatch:  codes.InvalidArgument,
		domain.ErrForbiddenRoom:     codes.PermissionDenied,
		domain.ErrUnknownConnection: codes.NotFound,
		domain.ErrHubClosed:         codes.Unavailable,
		context.DeadlineExceeded:    codes.DeadlineExceeded,
	}
	for err, want := range cases {
		assert.Equal(t, want, status.Code(mapErr(err)), err.Error())
	}
}
