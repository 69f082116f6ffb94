package domain

import "encoding/json"

// Message — конверт duplex-протокола в обе стороны: {"type": ..., "payload": ...}.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Служебные типы кадров (не события таксономии).
const (
	TypeWelcome = "welcome"
	TypeError   = "error"

	TypeJoinVendorRoom    = "join_vendor_room"
	TypeLeaveVendorRoom   = "leave_vendor_room"
	TypeJoinCustomerRoom  = "join_customer_room"
	TypeLeaveCustomerRoom = "leave_customer_room"
	TypeJoinMarketplace   = "join_marketplace"
	TypeLeaveMarketplace  = "leave_marketplace"
	TypeJoinOperatorRoom  = "join_operator_room"
	TypeLeaveOperatorRoom = "leave_operator_room"
)

type WelcomePayload struct {
	ConnectionID string `json:"connectionId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}

// EncodeMessage сериализует кадр один раз для всех получателей.
func EncodeMessage(typ string, payload json.RawMessage) ([]byte, error) {
	return json.Marshal(Message{Type: typ, Payload: payload})
}
