package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cartClearedPayload struct {
	OwnerID string `json:"owner_id"`
}

func TestNewEvent_PopulatesEnvelope(t *testing.T) {
	ev, err := NewEvent("cart.cleared", "owner-1", "cart", "cart-service", cartClearedPayload{OwnerID: "owner-1"})
	require.NoError(t, err)

	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, "cart.cleared", ev.EventType)
	assert.Equal(t, "owner-1", ev.AggregateID)
	assert.Equal(t, "cart", ev.AggregateType)
	assert.Equal(t, "cart-service", ev.Source)
	assert.Equal(t, 1, ev.Version)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestEvent_MarshalRoundTrip(t *testing.T) {
	ev, err := NewEvent("cart.updated", "owner-2", "cart", "cart-service", cartClearedPayload{OwnerID: "owner-2"})
	require.NoError(t, err)
	ev.WithRequestID("req-42").WithMetadata("region", "eu-west-1")

	raw, err := ev.Marshal()
	require.NoError(t, err)

	decoded, err := UnmarshalEvent(raw)
	require.NoError(t, err)

	assert.Equal(t, ev.EventID, decoded.EventID)
	assert.Equal(t, "req-42", decoded.RequestID)
	assert.Equal(t, "eu-west-1", decoded.Metadata["region"])

	var payload cartClearedPayload
	require.NoError(t, decoded.UnmarshalData(&payload))
	assert.Equal(t, "owner-2", payload.OwnerID)
}
