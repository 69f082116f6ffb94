package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/hub"
	"github.com/cwrk-planet/realtime-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Dispatcher interface {
	Connect(ctx context.Context, c hub.Conn, id domain.Identity) (domain.Connection, error)
	Disconnect(ctx context.Context, connID string) error
	Subscribe(ctx context.Context, connID string, room domain.RoomKey) error
	Leave(ctx context.Context, connID string, room domain.RoomKey) error
	Publish(ctx context.Context, connID, name string, payload json.RawMessage) (hub.Report, error)
}

type Config struct {
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	SendBuffer     int
	MaxMessageSize int64
	AllowedOrigins []string
}

func (c *Config) withDefaults() {
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = c.PongWait * 9 / 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 64 << 10
	}
}

type Server struct {
	upgrader websocket.Upgrader
	svc      Dispatcher
	cfg      Config
}

func NewServer(svc Dispatcher, cfg Config) *Server {
	cfg.withDefaults()
	return &Server{
		svc: svc,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}
}

// WS endpoint: GET /ws?vendor_id=...&customer_id=...&operator=true
// Identity выставляет доверенный шлюз (заголовки X-Vendor-ID / X-Customer-ID / X-Operator).
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ident := IdentityFromRequest(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту ошибкой
		slog.Warn("ws upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	id := uuid.NewString()
	c := newWsConn(id, conn, s.cfg.SendBuffer)

	// после hijack контекст запроса живёт только до выхода из хендлера
	ctx, log := logger.With(context.Background(), "conn_id", id, "type", ident.Type())

	if _, err := s.svc.Connect(ctx, c, ident); err != nil {
		log.Warn("ws register failed", "err", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "unavailable"),
			time.Now().Add(s.cfg.WriteWait))
		_ = conn.Close()
		return
	}
	log.Info("ws connected", "vendorId", ident.VendorID, "customerId", ident.CustomerID, "remote", r.RemoteAddr)

	_ = c.Send(welcomeFrame(id))

	go c.writePump(s.cfg.PingPeriod, s.cfg.WriteWait)
	s.readPump(ctx, c)

	if err := s.svc.Disconnect(ctx, id); err != nil && !errors.Is(err, domain.ErrHubClosed) {
		log.Debug("ws disconnect failed", "err", err)
	}
	_ = c.Close()
}

func (s *Server) readPump(ctx context.Context, c *wsConn) {
	log := logger.FromContext(ctx)

	c.conn.SetReadLimit(s.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Debug("ws read failed", "err", err)
			}
			return
		}

		var msg domain.Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			_ = c.Send(errorFrame("", errBadFrame))
			continue
		}

		if err := s.handle(ctx, c, msg); err != nil {
			log.Debug("ws frame rejected", "type", msg.Type, "err", err)
			_ = c.Send(errorFrame(msg.Type, err))
		}
	}
}

func (s *Server) handle(ctx context.Context, c *wsConn, msg domain.Message) error {
	switch msg.Type {
	case domain.TypeJoinVendorRoom, domain.TypeLeaveVendorRoom:
		id, err := payloadID(msg.Payload, "vendorId")
		if err != nil {
			return err
		}
		return s.toggle(ctx, c.id, domain.VendorRoom(id), msg.Type == domain.TypeJoinVendorRoom)

	case domain.TypeJoinCustomerRoom, domain.TypeLeaveCustomerRoom:
		id, err := payloadID(msg.Payload, "customerId")
		if err != nil {
			return err
		}
		return s.toggle(ctx, c.id, domain.CustomerRoom(id), msg.Type == domain.TypeJoinCustomerRoom)

	case domain.TypeJoinMarketplace, domain.TypeLeaveMarketplace:
		return s.toggle(ctx, c.id, domain.MarketplaceRoom, msg.Type == domain.TypeJoinMarketplace)

	case domain.TypeJoinOperatorRoom, domain.TypeLeaveOperatorRoom:
		return s.toggle(ctx, c.id, domain.OperatorRoom, msg.Type == domain.TypeJoinOperatorRoom)

	default:
		// всё остальное — событие таксономии; неизвестное имя отклонит роутер
		_, err := s.svc.Publish(ctx, c.id, msg.Type, msg.Payload)
		return err
	}
}

func (s *Server) toggle(ctx context.Context, connID string, room domain.RoomKey, join bool) error {
	if join {
		return s.svc.Subscribe(ctx, connID, room)
	}
	return s.svc.Leave(ctx, connID, room)
}

// IdentityFromRequest читает identity рукопожатия; заголовки шлюза важнее query.
func IdentityFromRequest(r *http.Request) domain.Identity {
	q := r.URL.Query()
	pick := func(header, query string) string {
		if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
			return v
		}
		return strings.TrimSpace(q.Get(query))
	}

	op, _ := strconv.ParseBool(pick("X-Operator", "operator"))
	return domain.Identity{
		VendorID:   domain.ID(pick("X-Vendor-ID", "vendor_id")),
		CustomerID: domain.ID(pick("X-Customer-ID", "customer_id")),
		Operator:   op,
	}
}

// originChecker: пустой Origin (не браузер) пропускаем, "*" разрешает всё.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(origin, a) {
				return true
			}
		}
		return false
	}
}
