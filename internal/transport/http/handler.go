package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/hub"
	"github.com/cwrk-planet/realtime-service/internal/service"
	"github.com/cwrk-planet/realtime-service/pkg/httputil"
	"github.com/cwrk-planet/realtime-service/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// Service — часть Dispatcher, нужная HTTP-ингрессу внутренних сервисов.
type Service interface {
	Emit(ctx context.Context, req service.EmitRequest) (hub.Report, error)
	Stats(ctx context.Context) (hub.Stats, error)
	Join(ctx context.Context, connID string, room domain.RoomKey) error
	Leave(ctx context.Context, connID string, room domain.RoomKey) error
	Events() []string
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := toHTTP(err)
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("handler."+op, "err", err)
	} else {
		log.Debug("handler."+op, "err", err)
	}
	httputil.Error(w, status, code, err.Error(), nil)
}

// POST /api/emit {event, data, room?}
func (h *Handler) Emit(w http.ResponseWriter, r *http.Request) {
	var req service.EmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid_json", "invalid JSON", nil)
		return
	}
	if strings.TrimSpace(req.Event) == "" {
		httputil.Error(w, http.StatusBadRequest, "unknown_event", "event is required", nil)
		return
	}

	rep, err := h.svc.Emit(r.Context(), req)
	if err != nil {
		h.fail(w, r, "Emit", err)
		return
	}
	httputil.JSON(w, http.StatusOK, toEmitResponse(rep))
}

// GET /api/connections
func (h *Handler) Connections(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		h.fail(w, r, "Connections", err)
		return
	}
	httputil.JSON(w, http.StatusOK, toConnectionsResponse(st))
}

// GET /api/events
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, EventsResponse{Events: h.svc.Events()})
}

// POST /api/connections/{id}/rooms {room}
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	connID := chi.URLParam(r, "id")

	var req JoinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid_json", "invalid JSON", nil)
		return
	}
	room, err := domain.ParseRoomKey(req.Room)
	if err != nil {
		h.fail(w, r, "JoinRoom", err)
		return
	}

	if err := h.svc.Join(r.Context(), connID, room); err != nil {
		h.fail(w, r, "JoinRoom", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /api/connections/{id}/rooms/{room}
func (h *Handler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	connID := chi.URLParam(r, "id")

	raw, err := url.PathUnescape(chi.URLParam(r, "room"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid_room", "invalid room", nil)
		return
	}
	room, err := domain.ParseRoomKey(raw)
	if err != nil {
		h.fail(w, r, "LeaveRoom", err)
		return
	}

	if err := h.svc.Leave(r.Context(), connID, room); err != nil {
		h.fail(w, r, "LeaveRoom", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
