package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventFactory creates CloudEvents for allocation domain events
type EventFactory struct {
	source string
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source}
}

// CreateEvent creates a new WMSCloudEvent with the given parameters
func (f *EventFactory) CreateEvent(
	ctx context.Context,
	eventType string,
	subject string,
	data interface{},
) *WMSCloudEvent {
	return &WMSCloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
	}
}

// CreateStockRegisteredEvent creates a StockRegistered event
func (f *EventFactory) CreateStockRegisteredEvent(
	ctx context.Context,
	data StockRegisteredData,
) *WMSCloudEvent {
	event := f.CreateEvent(ctx, StockRegistered, "batch/"+data.BatchID, data)
	return event.WithBatch(data.BatchID).WithWarehouse(data.WarehouseID)
}

// CreateStockMovementEvent creates a reserve, release or consume event for
// one location row
func (f *EventFactory) CreateStockMovementEvent(
	ctx context.Context,
	eventType string,
	data StockMovementData,
) *WMSCloudEvent {
	event := f.CreateEvent(ctx, eventType, "batch/"+data.BatchID, data)
	return event.WithBatch(data.BatchID)
}

// CreateStockAdjustedEvent creates a StockAdjusted event
func (f *EventFactory) CreateStockAdjustedEvent(
	ctx context.Context,
	data StockAdjustedData,
) *WMSCloudEvent {
	event := f.CreateEvent(ctx, StockAdjusted, "batch/"+data.BatchID, data)
	return event.WithBatch(data.BatchID)
}

// CreateOrderAllocatedEvent creates an OrderAllocated event
func (f *EventFactory) CreateOrderAllocatedEvent(
	ctx context.Context,
	data OrderAllocatedData,
) *WMSCloudEvent {
	event := f.CreateEvent(ctx, OrderAllocated, "order/"+data.OrderID, data)
	return event.WithOrder(data.OrderID).WithWarehouse(data.WarehouseID)
}

// CreateAllocationLifecycleEvent creates a confirmed, released or cancelled
// event for a single allocation
func (f *EventFactory) CreateAllocationLifecycleEvent(
	ctx context.Context,
	eventType string,
	data AllocationLifecycleData,
) *WMSCloudEvent {
	event := f.CreateEvent(ctx, eventType, "allocation/"+data.AllocationID, data)
	return event.WithOrder(data.OrderID).WithBatch(data.BatchID)
}

// CreateFulfillmentStartedEvent creates a FulfillmentStarted event
func (f *EventFactory) CreateFulfillmentStartedEvent(
	ctx context.Context,
	data FulfillmentStartedData,
) *WMSCloudEvent {
	event := f.CreateEvent(ctx, FulfillmentStarted, "order/"+data.OrderID, data)
	return event.WithOrder(data.OrderID).WithWarehouse(data.WarehouseID)
}

// CreateIntegrityViolationEvent creates an IntegrityViolation event
func (f *EventFactory) CreateIntegrityViolationEvent(
	ctx context.Context,
	data IntegrityViolationData,
) *WMSCloudEvent {
	event := f.CreateEvent(ctx, IntegrityViolation, "warehouse/"+data.WarehouseID, data)
	return event.WithWarehouse(data.WarehouseID).WithBatch(data.BatchID)
}
