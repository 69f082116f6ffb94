package ws

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cwrk-planet/realtime-service/internal/domain"
)

// Коды error-кадров.
const (
	CodeBadFrame          = "bad_frame"
	CodeUnknownEvent      = "unknown_event"
	CodeIdentityMismatch  = "identity_mismatch"
	CodeMissingField      = "missing_field"
	CodeInvalidRoom       = "invalid_room"
	CodeForbiddenRoom     = "forbidden_room"
	CodeUnknownConnection = "unknown_connection"
	CodeUnavailable       = "unavailable"
	CodeInternal          = "internal"
)

var errBadFrame = errors.New("frame must be {\"type\": string, \"payload\": any}")

func errorCode(err error) string {
	switch {
	case errors.Is(err, errBadFrame):
		return CodeBadFrame
	case errors.Is(err, domain.ErrIdentityMismatch):
		return CodeIdentityMismatch
	case errors.Is(err, domain.ErrUnknownEvent):
		return CodeUnknownEvent
	case errors.Is(err, domain.ErrMissingRoutingField):
		return CodeMissingField
	case errors.Is(err, domain.ErrInvalidRoom):
		return CodeInvalidRoom
	case errors.Is(err, domain.ErrForbiddenRoom):
		return CodeForbiddenRoom
	case errors.Is(err, domain.ErrUnknownConnection):
		return CodeUnknownConnection
	case errors.Is(err, domain.ErrHubClosed):
		return CodeUnavailable
	default:
		return CodeInternal
	}
}

func errorFrame(event string, err error) []byte {
	b, _ := json.Marshal(domain.ErrorPayload{
		Code:    errorCode(err),
		Message: err.Error(),
		Event:   event,
	})
	frame, _ := domain.EncodeMessage(domain.TypeError, b)
	return frame
}

func welcomeFrame(connID string) []byte {
	b, _ := json.Marshal(domain.WelcomePayload{ConnectionID: connID})
	frame, _ := domain.EncodeMessage(domain.TypeWelcome, b)
	return frame
}

// payloadID достаёт id из payload join/leave: голое значение ("teva-deli", 42)
// или объект {"<field>": ...}.
func payloadID(payload json.RawMessage, field string) (domain.ID, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return "", fmt.Errorf("%w: %s", domain.ErrMissingRoutingField, field)
	}

	var id domain.ID
	if payload[0] == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(payload, &obj); err != nil {
			return "", fmt.Errorf("%w: %s", domain.ErrMissingRoutingField, field)
		}
		if raw, ok := obj[field]; ok {
			if err := json.Unmarshal(raw, &id); err != nil {
				return "", fmt.Errorf("%w: %s", domain.ErrMissingRoutingField, field)
			}
		}
	} else if err := json.Unmarshal(payload, &id); err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrMissingRoutingField, field)
	}

	if id.Empty() {
		return "", fmt.Errorf("%w: %s", domain.ErrMissingRoutingField, field)
	}
	return id, nil
}
