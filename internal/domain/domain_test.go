package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_UnmarshalJSON(t *testing.T) {
	var v struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
		D ID `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":" teva-deli ","b":42,"c":null}`), &v))
	assert.Equal(t, ID("teva-deli"), v.A)
	assert.Equal(t, ID("42"), v.B)
	assert.True(t, v.C.Empty())
	assert.True(t, v.D.Empty())

	var bad ID
	assert.Error(t, json.Unmarshal([]byte(`true`), &bad))
}

func TestRoomKey_KindAndOwner(t *testing.T) {
	cases := []struct {
		key   RoomKey
		kind  RoomKind
		owner ID
	}{
		{VendorRoom("teva-deli"), RoomVendor, "teva-deli"},
		{CustomerRoom("C1"), RoomCustomer, "C1"},
		{MarketplaceRoom, RoomMarketplace, ""},
		{OperatorRoom, RoomOperator, ""},
		{"vendor:", RoomUnknown, ""},
		{"lobby", RoomUnknown, ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, tc.key.Kind(), string(tc.key))
		assert.Equal(t, tc.owner, tc.key.Owner(), string(tc.key))
	}
}

func TestParseRoomKey(t *testing.T) {
	k, err := ParseRoomKey(" vendor:V1 ")
	require.NoError(t, err)
	assert.Equal(t, VendorRoom("V1"), k)

	_, err = ParseRoomKey("customer:")
	assert.ErrorIs(t, err, ErrInvalidRoom)
}

func TestIdentity_Type(t *testing.T) {
	assert.Equal(t, "operator", Identity{Operator: true, VendorID: "V"}.Type())
	assert.Equal(t, "vendor", Identity{VendorID: "V"}.Type())
	assert.Equal(t, "customer", Identity{CustomerID: "C"}.Type())
	assert.Equal(t, "guest", Identity{}.Type())
	assert.True(t, Identity{}.Anonymous())
}

func TestIdentity_CanJoin(t *testing.T) {
	guest := Identity{}
	customer := Identity{CustomerID: "C1"}
	op := Identity{Operator: true}

	assert.NoError(t, guest.CanJoin(VendorRoom("V1")))
	assert.NoError(t, guest.CanJoin(MarketplaceRoom))
	assert.ErrorIs(t, guest.CanJoin(CustomerRoom("C1")), ErrForbiddenRoom)
	assert.ErrorIs(t, guest.CanJoin(OperatorRoom), ErrForbiddenRoom)
	assert.ErrorIs(t, guest.CanJoin("lobby"), ErrInvalidRoom)

	assert.NoError(t, customer.CanJoin(CustomerRoom("C1")))
	assert.ErrorIs(t, customer.CanJoin(CustomerRoom("C2")), ErrForbiddenRoom)

	assert.NoError(t, op.CanJoin(OperatorRoom))
	assert.NoError(t, op.CanJoin(CustomerRoom("C2")))
}

func TestParseFields(t *testing.T) {
	f := ParseFields(json.RawMessage(`{"vendorId":"V","productId":7,"timestamp":"2026-01-01T00:00:00Z","order":{"vendorId":"V","customerId":"C"}}`))
	assert.Equal(t, ID("V"), f.VendorID)
	assert.Equal(t, ID("7"), f.ProductID)
	assert.Equal(t, "2026-01-01T00:00:00Z", f.Timestamp)
	require.NotNil(t, f.Order)
	assert.Equal(t, ID("C"), f.Order.CustomerID)

	assert.Equal(t, Fields{}, ParseFields(json.RawMessage(`"just a string"`)))
	assert.Equal(t, Fields{}, ParseFields(nil))
}

func TestErrIdentityMismatchIsUnknownEvent(t *testing.T) {
	assert.True(t, errors.Is(ErrIdentityMismatch, ErrUnknownEvent))
}

func TestEncodeMessage(t *testing.T) {
	b, err := EncodeMessage(EventProductCreated, json.RawMessage(`{"vendorId":"V"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"product:created","payload":{"vendorId":"V"}}`, string(b))

	b, err = EncodeMessage(TypeWelcome, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"welcome"}`, string(b))
}

func TestIdentity_CanJoinVendorRoom(t *testing.T) {
	vendor := Identity{VendorID: "teva-deli"}
	assert.NoError(t, vendor.CanJoin(VendorRoom("teva-deli")))
	assert.ErrorIs(t, vendor.CanJoin(VendorRoom("queens-cuisine")), ErrForbiddenRoom)
	assert.NoError(t, vendor.CanJoin(MarketplaceRoom))

	assert.NoError(t, Identity{CustomerID: "C1"}.CanJoin(VendorRoom("queens-cuisine")))
	assert.NoError(t, Identity{Operator: true, VendorID: "teva-deli"}.CanJoin(VendorRoom("queens-cuisine")))
}
