package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownConnection   = errors.New("unknown connection")
	ErrConnectionExists    = errors.New("connection already registered")
	ErrUnknownEvent        = errors.New("unknown event")
	ErrMissingRoutingField = errors.New("missing routing field")
	ErrDeliveryFailure     = errors.New("delivery failure")
	ErrInvalidRoom         = errors.New("invalid room")
	ErrForbiddenRoom       = errors.New("room not allowed for connection")
	ErrHubClosed           = errors.New("hub is closed")

	// ErrIdentityMismatch относится к классу UnknownEvent: errors.Is(err, ErrUnknownEvent) == true.
	ErrIdentityMismatch = fmt.Errorf("%w: payload does not match connection identity", ErrUnknownEvent)
)
