package domain

import (
	"fmt"
	"strings"
)

// RoomKey — имя multicast-группы.
type RoomKey string

const (
	vendorPrefix   = "vendor:"
	customerPrefix = "customer:"

	// MarketplaceRoom — общий фид каталога; обычная комната с фиксированным ключом.
	MarketplaceRoom RoomKey = "marketplace"
	// OperatorRoom — фид операторов (ключ "admin" сохранён из исходного wire-протокола).
	OperatorRoom RoomKey = "admin"
)

type RoomKind int

const (
	RoomUnknown RoomKind = iota
	RoomVendor
	RoomCustomer
	RoomMarketplace
	RoomOperator
)

func VendorRoom(vendorID ID) RoomKey { return RoomKey(vendorPrefix + string(vendorID)) }

func CustomerRoom(customerID ID) RoomKey { return RoomKey(customerPrefix + string(customerID)) }

func (k RoomKey) String() string { return string(k) }

func (k RoomKey) Kind() RoomKind {
	s := string(k)
	switch {
	case k == MarketplaceRoom:
		return RoomMarketplace
	case k == OperatorRoom:
		return RoomOperator
	case strings.HasPrefix(s, vendorPrefix) && len(s) > len(vendorPrefix):
		return RoomVendor
	case strings.HasPrefix(s, customerPrefix) && len(s) > len(customerPrefix):
		return RoomCustomer
	default:
		return RoomUnknown
	}
}

// Owner возвращает id вендора/клиента для персональных комнат.
func (k RoomKey) Owner() ID {
	switch k.Kind() {
	case RoomVendor:
		return ID(strings.TrimPrefix(string(k), vendorPrefix))
	case RoomCustomer:
		return ID(strings.TrimPrefix(string(k), customerPrefix))
	default:
		return ""
	}
}

// ParseRoomKey проверяет ключ, пришедший снаружи (HTTP/gRPC/Kafka).
func ParseRoomKey(raw string) (RoomKey, error) {
	k := RoomKey(strings.TrimSpace(raw))
	if k.Kind() == RoomUnknown {
		return "", fmt.Errorf("%w: %q", ErrInvalidRoom, raw)
	}
	return k, nil
}
