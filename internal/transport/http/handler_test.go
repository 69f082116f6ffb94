package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/hub"
	"github.com/cwrk-planet/realtime-service/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recConn struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
}

func (c *recConn) ID() string   { return c.id }
func (c *recConn) Close() error { return nil }

func (c *recConn) Send(b []byte) error {
	c.mu.Lock()
	c.frames = append(c.frames, b)
	c.mu.Unlock()
	return nil
}

func (c *recConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

type testEnv struct {
	h      *hub.Hub
	svc    *service.Dispatcher
	router http.Handler
}

func newTestEnv(t *testing.T, rps float64, burst int) *testEnv {
	t.Helper()
	h := hub.New()
	h.Start()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = h.Shutdown(context.Background())
	})

	svc := service.NewDispatcher(h, nil, nil, nil)
	router := NewRouter(ctx, Deps{
		Handler:        NewHandler(svc),
		AllowedOrigins: []string{"http://localhost:3000"},
		EmitRPS:        rps,
		EmitBurst:      burst,
	})
	return &testEnv{h: h, svc: svc, router: router}
}

func (e *testEnv) conn(t *testing.T, id string, ident domain.Identity, rooms ...domain.RoomKey) *recConn {
	t.Helper()
	c := &recConn{id: id}
	_, err := e.svc.Connect(context.Background(), c, ident)
	require.NoError(t, err)
	for _, room := range rooms {
		require.NoError(t, e.svc.Join(context.Background(), id, room))
	}
	return c
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func errorCodeOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestEmit_RoutedEvent(t *testing.T) {
	e := newTestEnv(t, 0, 0)
	vendor := e.conn(t, "v", domain.Identity{VendorID: "teva-deli"}, domain.VendorRoom("teva-deli"))
	feed := e.conn(t, "m", domain.Identity{}, domain.MarketplaceRoom)

	rec := e.do(http.MethodPost, "/api/emit", `{"event":"product:created","data":{"vendorId":"teva-deli","productId":"p1"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp EmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"marketplace", "vendor:teva-deli"}, resp.Rooms)
	assert.Equal(t, 2, resp.Delivered)
	assert.Equal(t, 1, vendor.count())
	assert.Equal(t, 1, feed.count())
}

func TestEmit_RawRoom(t *testing.T) {
	e := newTestEnv(t, 0, 0)
	op := e.conn(t, "op", domain.Identity{Operator: true}, domain.OperatorRoom)

	rec := e.do(http.MethodPost, "/api/emit", `{"event":"system:notice","data":{"text":"deploy"},"room":"admin"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, op.count())
}

func TestEmit_Errors(t *testing.T) {
	e := newTestEnv(t, 0, 0)

	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"invalid json", `{`, http.StatusBadRequest, "invalid_json"},
		{"no event", `{"data":{}}`, http.StatusBadRequest, "unknown_event"},
		{"unknown event", `{"event":"product:exploded","data":{"vendorId":"V"}}`, http.StatusBadRequest, "unknown_event"},
		{"missing field", `{"event":"order:created","data":{"order":{"id":"o1"}}}`, http.StatusBadRequest, "missing_field"},
		{"invalid room", `{"event":"x","data":{},"room":"lobby"}`, http.StatusBadRequest, "invalid_room"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := e.do(http.MethodPost, "/api/emit", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, errorCodeOf(t, rec))
		})
	}
}

func TestEmit_RateLimited(t *testing.T) {
	e := newTestEnv(t, 0.001, 2)
	body := `{"event":"product:created","data":{"vendorId":"V1"}}`

	assert.Equal(t, http.StatusOK, e.do(http.MethodPost, "/api/emit", body).Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodPost, "/api/emit", body).Code)

	rec := e.do(http.MethodPost, "/api/emit", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", errorCodeOf(t, rec))
}

func TestConnections_Introspection(t *testing.T) {
	e := newTestEnv(t, 0, 0)
	e.conn(t, "v1", domain.Identity{VendorID: "teva-deli"}, domain.VendorRoom("teva-deli"))
	e.conn(t, "v2", domain.Identity{VendorID: "teva-deli"}, domain.VendorRoom("teva-deli"), domain.MarketplaceRoom)
	e.conn(t, "c1", domain.Identity{CustomerID: "C1"}, domain.CustomerRoom("C1"))

	rec := e.do(http.MethodGet, "/api/connections", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ConnectionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.TotalConnections)
	assert.Equal(t, map[string]int{"teva-deli": 2}, resp.VendorRooms)
	assert.Equal(t, map[string]int{"vendor:teva-deli": 2, "marketplace": 1, "customer:C1": 1}, resp.Rooms)
	require.Len(t, resp.Connections, 3)

	byID := map[string]ConnectionItem{}
	for _, c := range resp.Connections {
		byID[c.ID] = c
	}
	assert.Equal(t, "vendor", byID["v2"].Type)
	assert.Equal(t, []string{"marketplace", "vendor:teva-deli"}, byID["v2"].Rooms)
	assert.Equal(t, "customer", byID["c1"].Type)
	assert.Equal(t, "C1", byID["c1"].CustomerID)
}

func TestRooms_JoinLeaveOnBehalf(t *testing.T) {
	e := newTestEnv(t, 0, 0)
	c := e.conn(t, "c1", domain.Identity{})

	rec := e.do(http.MethodPost, "/api/connections/c1/rooms", `{"room":"vendor:V1"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	e.do(http.MethodPost, "/api/emit", `{"event":"vendor:updated","data":{"vendorId":"V1"}}`)
	assert.Equal(t, 1, c.count())

	rec = e.do(http.MethodDelete, "/api/connections/c1/rooms/vendor:V1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	members, err := e.h.MembersOf(context.Background(), domain.VendorRoom("V1"))
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestRooms_Errors(t *testing.T) {
	e := newTestEnv(t, 0, 0)
	e.conn(t, "c1", domain.Identity{})

	rec := e.do(http.MethodPost, "/api/connections/ghost/rooms", `{"room":"marketplace"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown_connection", errorCodeOf(t, rec))

	rec = e.do(http.MethodPost, "/api/connections/c1/rooms", `{"room":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodDelete, "/api/connections/ghost/rooms/marketplace", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEvents(t *testing.T) {
	e := newTestEnv(t, 0, 0)
	rec := e.do(http.MethodGet, "/api/events", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp EventsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Events, domain.EventOrderUpdated)
	assert.Len(t, resp.Events, 9)
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t, 0, 0)
	rec := e.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestHubClosedIsUnavailable(t *testing.T) {
	e := newTestEnv(t, 0, 0)
	require.NoError(t, e.h.Shutdown(context.Background()))

	rec := e.do(http.MethodGet, "/api/connections", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimiter_Evict(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := newRateLimiter(ctx, 1, 1)
	now := time.Now()
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("1.1.1.1"))
	assert.False(t, rl.allow("1.1.1.1"))
	assert.True(t, rl.allow("2.2.2.2"))

	now = now.Add(limiterIdleTTL + time.Second)
	rl.evict(limiterIdleTTL)
	rl.mu.Lock()
	assert.Empty(t, rl.limiters)
	rl.mu.Unlock()
}
