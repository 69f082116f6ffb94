package http

import (
	"context"
	"net/http"
	"time"

	"github.com/cwrk-planet/realtime-service/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Deps struct {
	Handler *Handler
	WS      http.HandlerFunc

	AllowedOrigins []string
	EmitRPS        float64
	EmitBurst      int
}

// NewRouter собирает HTTP-поверхность. ctx ограничивает жизнь фонового лимитера.
func NewRouter(ctx context.Context, d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-Vendor-ID", "X-Customer-ID", "X-Operator"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// WS без логирующей обёртки и таймаута: соединение долгоживущее и hijack-ится
	if d.WS != nil {
		r.Get("/ws", d.WS)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(api chi.Router) {
		api.Use(httputil.MiddlewareLogging)
		api.Use(middleware.Timeout(30 * time.Second))

		h := d.Handler
		api.Route("/api", func(ar chi.Router) {
			if d.EmitRPS > 0 {
				ar.With(newRateLimiter(ctx, d.EmitRPS, d.EmitBurst).middleware).Post("/emit", h.Emit)
			} else {
				ar.Post("/emit", h.Emit)
			}
			ar.Get("/events", h.Events)

			ar.Route("/connections", func(cr chi.Router) {
				cr.Get("/", h.Connections)
				cr.Post("/{id}/rooms", h.JoinRoom)
				cr.Delete("/{id}/rooms/{room}", h.LeaveRoom)
			})
		})
	})

	return r
}
