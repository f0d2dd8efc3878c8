package cloudevents

import (
	"time"
)

// EventType constants for allocation engine domain events
const (
	// Stock ledger events
	StockRegistered     = "wms.stock.registered"
	StockReserved       = "wms.stock.reserved"
	ReservationReleased = "wms.stock.reservation-released"
	StockConsumed       = "wms.stock.consumed"
	StockAdjusted       = "wms.stock.adjusted"

	// Allocation lifecycle events
	OrderAllocated      = "wms.order.allocated"
	AllocationConfirmed = "wms.allocation.confirmed"
	AllocationReleased  = "wms.allocation.released"
	AllocationCancelled = "wms.allocation.cancelled"
	FulfillmentStarted  = "wms.fulfillment.started"

	// Integrity events
	IntegrityViolation = "wms.integrity.violation"
)

// Source constants for event sources
const (
	SourceAllocation = "/wms/allocation-service"
	SourceMigrator   = "/wms/allocation-migrator"
	SourceMonitor    = "/wms/allocation-monitor"
)

// CloudEvents extension attribute names
const (
	ExtCorrelationID = "wmscorrelationid"
	ExtWarehouseID   = "wmswarehouseid"
	ExtOrderID       = "wmsorderid"
	ExtBatchID       = "wmsbatchid"
)

// WMSCloudEvent represents a CloudEvents v1.0 compliant event
type WMSCloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`

	// WMS-specific extensions
	CorrelationID string `json:"wmscorrelationid,omitempty"`
	WarehouseID   string `json:"wmswarehouseid,omitempty"`
	OrderID       string `json:"wmsorderid,omitempty"`
	BatchID       string `json:"wmsbatchid,omitempty"`
}

// WithCorrelation sets the correlation ID and returns the event
func (e *WMSCloudEvent) WithCorrelation(correlationID string) *WMSCloudEvent {
	e.CorrelationID = correlationID
	return e
}

// WithWarehouse sets the warehouse extension and returns the event
func (e *WMSCloudEvent) WithWarehouse(warehouseID string) *WMSCloudEvent {
	e.WarehouseID = warehouseID
	return e
}

// WithOrder sets the order extension and returns the event
func (e *WMSCloudEvent) WithOrder(orderID string) *WMSCloudEvent {
	e.OrderID = orderID
	return e
}

// WithBatch sets the batch extension and returns the event
func (e *WMSCloudEvent) WithBatch(batchID string) *WMSCloudEvent {
	e.BatchID = batchID
	return e
}

// StockRegisteredData represents the data payload for StockRegistered events
type StockRegisteredData struct {
	BatchID     string `json:"batchId"`
	ItemRef     string `json:"itemRef"`
	LotNumber   string `json:"lotNumber"`
	LocationID  string `json:"locationId"`
	WarehouseID string `json:"warehouseId"`
	Quantity    int    `json:"quantity"`
	Actor       string `json:"actor"`
}

// StockMovementData represents the data payload for reserve, release and
// consume events on a single location row
type StockMovementData struct {
	BatchID    string `json:"batchId"`
	LocationID string `json:"locationId"`
	Quantity   int    `json:"quantity"`
	Actor      string `json:"actor"`
	Reason     string `json:"reason,omitempty"`
}

// StockAdjustedData represents the data payload for StockAdjusted events
type StockAdjustedData struct {
	BatchID     string `json:"batchId"`
	LocationID  string `json:"locationId"`
	PreviousQty int    `json:"previousQuantity"`
	NewQty      int    `json:"newQuantity"`
	Reason      string `json:"reason,omitempty"`
	Actor       string `json:"actor"`
}

// OrderAllocatedData represents the data payload for OrderAllocated events
type OrderAllocatedData struct {
	OrderID       string   `json:"orderId"`
	WarehouseID   string   `json:"warehouseId"`
	AllocationIDs []string `json:"allocationIds"`
	Strategy      string   `json:"strategy"`
	Actor         string   `json:"actor"`
}

// AllocationLifecycleData represents the data payload for per-allocation
// lifecycle events (confirmed, released, cancelled)
type AllocationLifecycleData struct {
	AllocationID string `json:"allocationId"`
	OrderID      string `json:"orderId"`
	BatchID      string `json:"batchId"`
	LocationID   string `json:"locationId"`
	Quantity     int    `json:"quantity"`
	Reason       string `json:"reason,omitempty"`
	Actor        string `json:"actor"`
}

// FulfillmentStartedData represents the data payload for FulfillmentStarted events
type FulfillmentStartedData struct {
	OrderID     string `json:"orderId"`
	WarehouseID string `json:"warehouseId"`
	Actor       string `json:"actor"`
}

// IntegrityViolationData represents the data payload for IntegrityViolation events
type IntegrityViolationData struct {
	WarehouseID string `json:"warehouseId"`
	BatchID     string `json:"batchId"`
	Detail      string `json:"detail"`
}
