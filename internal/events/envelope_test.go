package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	payload := OrderCreatedEvent{OrderID: "order-1", UserEmail: "buyer@example.com"}

	env := NewEnvelope(MessageTypeOrderCreated, payload, "order-1")

	_, err := uuid.Parse(env.MessageID)
	assert.NoError(t, err, "messageId must be a valid UUID")
	assert.Equal(t, MessageTypeOrderCreated, env.MessageType)
	assert.Equal(t, "order-1", env.Correlation())
	assert.Equal(t, time.UTC, env.Timestamp.Location())
	assert.WithinDuration(t, time.Now().UTC(), env.Timestamp, 5*time.Second)
}

func TestNewEnvelopeGeneratesUniqueMessageIDs(t *testing.T) {
	payload := OrderCreatedEvent{OrderID: "order-1"}

	first := NewEnvelope(MessageTypeOrderCreated, payload, "order-1")
	second := NewEnvelope(MessageTypeOrderCreated, payload, "order-1")

	assert.NotEqual(t, first.MessageID, second.MessageID)
}

func TestNewEnvelopeEmptyCorrelation(t *testing.T) {
	env := NewEnvelope(MessageTypeOrderCreated, OrderCreatedEvent{}, "")

	assert.Nil(t, env.CorrelationID)
	assert.Equal(t, "", env.Correlation())

	body, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"correlationId":null`)
}

func TestEnvelopeWireFormat(t *testing.T) {
	orderDate := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	event := OrderCreatedEvent{
		OrderID:     "11111111-1111-1111-1111-111111111111",
		UserID:      "user-42",
		UserEmail:   "buyer@example.com",
		OrderDate:   orderDate,
		TotalAmount: 199.99,
		ShippingAddress: ShippingAddress{
			Address:    "123 Main St",
			City:       "Springfield",
			Province:   "ON",
			PostalCode: "A1B 2C3",
		},
		LineItems: []OrderLineItem{
			{ProductID: "p1", ProductName: "Widget", Quantity: 2, Price: 50.00},
			{ProductID: "p2", ProductName: "Gadget", Quantity: 1, Price: 99.99},
		},
	}

	env := NewEnvelope(MessageTypeOrderCreated, event, event.OrderID)
	body, err := json.Marshal(env)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &raw))
	for _, key := range []string{"messageId", "timestamp", "messageType", "payload", "correlationId"} {
		assert.Contains(t, raw, key)
	}

	var decoded Envelope[OrderCreatedEvent]
	require.NoError(t, json.Unmarshal(body, &decoded))

	assert.Equal(t, env.MessageID, decoded.MessageID)
	assert.Equal(t, event.OrderID, decoded.Correlation())
	assert.Equal(t, event, decoded.Payload)
	assert.True(t, env.Timestamp.Equal(decoded.Timestamp))
}

func TestOrderCreatedEventWireFormat(t *testing.T) {
	event := OrderCreatedEvent{
		OrderID:     "order-1",
		TotalAmount: 199.99,
		LineItems:   []OrderLineItem{{ProductID: "p1", ProductName: "Widget", Quantity: 2, Price: 50}},
	}

	body, err := json.Marshal(event)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &raw))
	for _, key := range []string{"orderId", "userId", "userEmail", "orderDate", "totalAmount", "shippingAddress", "lineItems"} {
		assert.Contains(t, raw, key)
	}

	var items []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["lineItems"], &items))
	require.Len(t, items, 1)
	for _, key := range []string{"productId", "productName", "quantity", "price"} {
		assert.Contains(t, items[0], key)
	}
}
