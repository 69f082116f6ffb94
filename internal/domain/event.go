package domain

import (
	"encoding/json"
)

// Имена событий duplex-протокола.
const (
	EventProductCreated      = "product:created"
	EventProductUpdated      = "product:updated"
	EventProductDeleted      = "product:deleted"
	EventProductStockChanged = "product:stock_changed"
	EventProductViewed       = "product:viewed"
	EventVendorUpdated       = "vendor:updated"
	EventOrderCreated        = "order:created"
	EventOrderUpdated        = "order:updated"
	EventMessageSend         = "message:send"
	EventMessageReceived     = "message:received"
)

// Event — неизменяемая запись; Payload пересылается подписчикам как есть.
type Event struct {
	Name    string
	Payload json.RawMessage

	// Origin — id соединения-отправителя, пусто для внутренних сервисов.
	Origin string
}

// Fields — поля payload, нужные для маршрутизации и логирования.
type Fields struct {
	VendorID   ID        `json:"vendorId"`
	CustomerID ID        `json:"customerId"`
	ProductID  ID        `json:"productId"`
	Timestamp  any       `json:"timestamp"`
	Order      *OrderRef `json:"order"`
}

type OrderRef struct {
	ID         ID `json:"id"`
	VendorID   ID `json:"vendorId"`
	CustomerID ID `json:"customerId"`
}

// ParseFields разбирает payload; не-объект даёт пустые поля.
func ParseFields(payload json.RawMessage) Fields {
	var f Fields
	if len(payload) == 0 {
		return f
	}
	_ = json.Unmarshal(payload, &f)
	return f
}
