package routing

import (
	"fmt"

	"github.com/cwrk-planet/realtime-service/internal/domain"
)

// Derive вычисляет одну целевую комнату. ok=false — комната необязательна и в payload её нет.
type Derive func(f domain.Fields) (room domain.RoomKey, ok bool, err error)

// OwnerCheck проверяет, что payload принадлежит известной identity отправителя.
type OwnerCheck func(id domain.Identity, f domain.Fields) bool

// Route — строка таблицы маршрутизации.
type Route struct {
	// Deliver — имя события у подписчиков (message:send уходит как message:received).
	Deliver string
	Rooms   []Derive
	Owner   OwnerCheck
}

// Table — единственный источник правды о fan-out. Новое событие = одна строка.
type Table map[string]Route

func DefaultTable() Table {
	return Table{
		domain.EventProductCreated:      catalog(domain.EventProductCreated),
		domain.EventProductUpdated:      catalog(domain.EventProductUpdated),
		domain.EventProductDeleted:      catalog(domain.EventProductDeleted),
		domain.EventProductStockChanged: catalog(domain.EventProductStockChanged),
		domain.EventVendorUpdated:       catalog(domain.EventVendorUpdated),

		domain.EventOrderCreated: order(domain.EventOrderCreated),
		domain.EventOrderUpdated: order(domain.EventOrderUpdated),

		// аналитика приватна для вендора
		domain.EventProductViewed: {Deliver: domain.EventProductViewed, Rooms: []Derive{vendorRoom}},

		domain.EventMessageSend: {
			Deliver: domain.EventMessageReceived,
			Rooms:   []Derive{vendorRoom, customerRoom},
			Owner:   messageParty,
		},
	}
}

func catalog(name string) Route {
	return Route{Deliver: name, Rooms: []Derive{vendorRoom, marketplaceRoom}, Owner: vendorOwner}
}

func order(name string) Route {
	return Route{Deliver: name, Rooms: []Derive{orderVendorRoom, orderCustomerRoom, operatorRoom}, Owner: orderOwner}
}

// --- derivations ---

func missing(field string) error {
	return fmt.Errorf("%w: %s", domain.ErrMissingRoutingField, field)
}

func vendorRoom(f domain.Fields) (domain.RoomKey, bool, error) {
	if f.VendorID.Empty() {
		return "", false, missing("vendorId")
	}
	return domain.VendorRoom(f.VendorID), true, nil
}

func customerRoom(f domain.Fields) (domain.RoomKey, bool, error) {
	if f.CustomerID.Empty() {
		return "", false, nil
	}
	return domain.CustomerRoom(f.CustomerID), true, nil
}

func orderVendorRoom(f domain.Fields) (domain.RoomKey, bool, error) {
	if f.Order == nil || f.Order.VendorID.Empty() {
		return "", false, missing("order.vendorId")
	}
	return domain.VendorRoom(f.Order.VendorID), true, nil
}

func orderCustomerRoom(f domain.Fields) (domain.RoomKey, bool, error) {
	if f.Order == nil || f.Order.CustomerID.Empty() {
		return "", false, nil
	}
	return domain.CustomerRoom(f.Order.CustomerID), true, nil
}

func marketplaceRoom(domain.Fields) (domain.RoomKey, bool, error) {
	return domain.MarketplaceRoom, true, nil
}

func operatorRoom(domain.Fields) (domain.RoomKey, bool, error) {
	return domain.OperatorRoom, true, nil
}

// --- owner checks ---

func vendorOwner(id domain.Identity, f domain.Fields) bool {
	return !id.VendorID.Empty() && id.VendorID == f.VendorID
}

func orderOwner(id domain.Identity, f domain.Fields) bool {
	if f.Order == nil {
		return false
	}
	if !id.VendorID.Empty() && id.VendorID == f.Order.VendorID {
		return true
	}
	return !id.CustomerID.Empty() && id.CustomerID == f.Order.CustomerID
}

func messageParty(id domain.Identity, f domain.Fields) bool {
	if !id.VendorID.Empty() && id.VendorID == f.VendorID {
		return true
	}
	return !id.CustomerID.Empty() && id.CustomerID == f.CustomerID
}
