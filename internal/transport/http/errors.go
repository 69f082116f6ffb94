package http

import (
	"errors"
	"net/http"

	"github.com/cwrk-planet/realtime-service/internal/domain"
)

// toHTTP сопоставляет доменные ошибки со статусом и кодом ответа.
func toHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrIdentityMismatch):
		return http.StatusBadRequest, "identity_mismatch"
	case errors.Is(err, domain.ErrUnknownEvent):
		return http.StatusBadRequest, "unknown_event"
	case errors.Is(err, domain.ErrMissingRoutingField):
		return http.StatusBadRequest, "missing_field"
	case errors.Is(err, domain.ErrInvalidRoom):
		return http.StatusBadRequest, "invalid_room"
	case errors.Is(err, domain.ErrForbiddenRoom):
		return http.StatusForbidden, "forbidden_room"
	case errors.Is(err, domain.ErrUnknownConnection):
		return http.StatusNotFound, "unknown_connection"
	case errors.Is(err, domain.ErrHubClosed):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
