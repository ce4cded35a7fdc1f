package saga

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failureEvent() *OrderEvent {
	items := validItems()
	return NewEventWithReason(uuid.New(), uuid.New(), items, ItemsTotal(items),
		StatusPaymentFailed, "Payment declined: amount 349.99 exceeds limit 100", "payment-service")
}

func TestJSONCodecRoundTrip(t *testing.T) {
	codec := JSONCodec{}
	event := failureEvent()

	data, err := codec.Encode(event)
	require.NoError(t, err)

	decoded, err := codec.Decode(data)
	require.NoError(t, err)

	assert.Equal(t, event.EventID, decoded.EventID)
	assert.Equal(t, event.Status, decoded.Status)
	assert.Equal(t, event.Reason, decoded.Reason)
	assert.True(t, event.TotalAmount.Equal(decoded.TotalAmount))
	require.Len(t, decoded.Items, 2)
	assert.True(t, event.Items[0].Price.Equal(decoded.Items[0].Price))
	assert.NoError(t, decoded.Validate())
}

func TestJSONCodecDecimalAsString(t *testing.T) {
	event := failureEvent()
	data, err := JSONCodec{}.Encode(event)
	require.NoError(t, err)

	// Amounts must survive as exact strings, never floats.
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, `"349.99"`, string(raw["totalAmount"]))
}

func TestJSONCodecDecodeGarbage(t *testing.T) {
	_, err := JSONCodec{}.Decode([]byte("not json"))
	assert.Error(t, err)
}

func TestAvroCodecRoundTrip(t *testing.T) {
	codec, err := NewAvroCodec()
	require.NoError(t, err)

	event := failureEvent()
	data, err := codec.Encode(event)
	require.NoError(t, err)

	decoded, err := codec.Decode(data)
	require.NoError(t, err)

	assert.Equal(t, event.EventID, decoded.EventID)
	assert.Equal(t, event.OrderID, decoded.OrderID)
	assert.Equal(t, event.CustomerID, decoded.CustomerID)
	assert.Equal(t, event.Status, decoded.Status)
	assert.Equal(t, event.Reason, decoded.Reason)
	assert.Equal(t, event.Source, decoded.Source)
	assert.Equal(t, event.SchemaVersion, decoded.SchemaVersion)
	assert.True(t, event.CreatedAt.Equal(decoded.CreatedAt))
	assert.True(t, event.TotalAmount.Equal(decoded.TotalAmount))
	require.Len(t, decoded.Items, 2)
	assert.Equal(t, event.Items[0].ProductName, decoded.Items[0].ProductName)
	assert.Equal(t, event.Items[0].Quantity, decoded.Items[0].Quantity)
	assert.True(t, event.Items[0].Price.Equal(decoded.Items[0].Price))
	assert.NoError(t, decoded.Validate())
}

func TestAvroCodecNilReason(t *testing.T) {
	codec, err := NewAvroCodec()
	require.NoError(t, err)

	items := []OrderItem{{
		ProductID:   uuid.New(),
		ProductName: "iPhone 15 Pro",
		Quantity:    1,
		Price:       decimal.RequireFromString("999.00"),
	}}
	event := NewEvent(uuid.New(), uuid.New(), items, ItemsTotal(items), StatusPaid, "payment-service")

	data, err := codec.Encode(event)
	require.NoError(t, err)
	decoded, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Empty(t, decoded.Reason)
}

func TestAvroCodecDecodeGarbage(t *testing.T) {
	codec, err := NewAvroCodec()
	require.NoError(t, err)
	_, err = codec.Decode([]byte{0x01, 0x02, 0x03})
	assert.Error(t, err)
}
