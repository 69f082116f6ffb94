package domain

import (
	"time"
)

// Identity — атрибуты вызывающего, уже проверенные шлюзом.
type Identity struct {
	VendorID   ID
	CustomerID ID
	Operator   bool
}

func (i Identity) Anonymous() bool {
	return i.VendorID.Empty() && i.CustomerID.Empty() && !i.Operator
}

// Type — роль соединения для интроспекции.
func (i Identity) Type() string {
	switch {
	case i.Operator:
		return "operator"
	case !i.VendorID.Empty():
		return "vendor"
	case !i.CustomerID.Empty():
		return "customer"
	default:
		return "guest"
	}
}

// CanJoin проверяет, может ли соединение подписаться на комнату.
// Вендор слушает только свою комнату; гости и клиенты видят витрину любого вендора.
func (i Identity) CanJoin(room RoomKey) error {
	switch room.Kind() {
	case RoomMarketplace:
		return nil
	case RoomVendor:
		if i.Operator || i.VendorID.Empty() || room.Owner() == i.VendorID {
			return nil
		}
		return ErrForbiddenRoom
	case RoomCustomer:
		if i.Operator || (!i.CustomerID.Empty() && room.Owner() == i.CustomerID) {
			return nil
		}
		return ErrForbiddenRoom
	case RoomOperator:
		if i.Operator {
			return nil
		}
		return ErrForbiddenRoom
	default:
		return ErrInvalidRoom
	}
}

// Connection — снимок живого соединения. Rooms производное поле, источник истины — Room Directory.
type Connection struct {
	ID          string
	Identity    Identity
	ConnectedAt time.Time
	Rooms       []RoomKey
}
