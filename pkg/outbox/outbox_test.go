package outbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/allocation-service/pkg/cloudevents"
)

type stubEvent struct {
	OrderID string `json:"orderId"`
	Qty     int    `json:"qty"`
}

func (stubEvent) EventType() string { return "wms.order.allocated" }

func TestNewOutboxEventStagesDomainEvent(t *testing.T) {
	event, err := NewOutboxEvent("ORD-1", "Allocation", "wms.allocation.events", stubEvent{OrderID: "ORD-1", Qty: 3})
	require.NoError(t, err)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "ORD-1", event.AggregateID)
	assert.Equal(t, "Allocation", event.AggregateType)
	assert.Equal(t, "wms.order.allocated", event.EventType)
	assert.Equal(t, "wms.allocation.events", event.Topic)
	assert.JSONEq(t, `{"orderId":"ORD-1","qty":3}`, string(event.Payload))
	assert.False(t, event.CreatedAt.IsZero())
	assert.Nil(t, event.PublishedAt)
	assert.Zero(t, event.RetryCount)
}

func TestCloudEventSurvivesTheOutboxRoundTrip(t *testing.T) {
	factory := cloudevents.NewEventFactory("allocation-service")
	original := factory.CreateIntegrityViolationEvent(context.Background(), cloudevents.IntegrityViolationData{
		WarehouseID: "WH-1",
		BatchID:     "BAT-1",
		Detail:      "aggregate mismatch",
	})

	event, err := NewOutboxEventFromCloudEvent("WH-1:BAT-1", "IntegrityCheck", "wms.inventory.events", original)
	require.NoError(t, err)
	assert.Equal(t, original.Type, event.EventType)

	decoded, err := event.ToCloudEvent()
	require.NoError(t, err)
	assert.Equal(t, original.ID, decoded.ID)
	assert.Equal(t, original.Type, decoded.Type)
	assert.Equal(t, original.Source, decoded.Source)
	assert.Equal(t, original.WarehouseID, decoded.WarehouseID)
	assert.Equal(t, original.BatchID, decoded.BatchID)
}
