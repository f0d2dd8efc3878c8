package domain

import "time"

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// StockRegisteredEvent is published when a batch is loaded into a location
type StockRegisteredEvent struct {
	BatchID      string    `json:"batchId"`
	ItemRef      string    `json:"itemRef"`
	LotNumber    string    `json:"lotNumber"`
	LocationID   string    `json:"locationId"`
	WarehouseID  string    `json:"warehouseId"`
	Quantity     int       `json:"quantity"`
	RegisteredBy string    `json:"registeredBy"`
	RegisteredAt time.Time `json:"registeredAt"`
}

func (e *StockRegisteredEvent) EventType() string     { return "wms.stock.registered" }
func (e *StockRegisteredEvent) OccurredAt() time.Time { return e.RegisteredAt }

// StockReservedEvent is published when quantity is reserved at a location
type StockReservedEvent struct {
	BatchID    string    `json:"batchId"`
	LocationID string    `json:"locationId"`
	Quantity   int       `json:"quantity"`
	ReservedBy string    `json:"reservedBy"`
	ReservedAt time.Time `json:"reservedAt"`
}

func (e *StockReservedEvent) EventType() string     { return "wms.stock.reserved" }
func (e *StockReservedEvent) OccurredAt() time.Time { return e.ReservedAt }

// ReservationReleasedEvent is published when a reservation is returned to available
type ReservationReleasedEvent struct {
	BatchID    string    `json:"batchId"`
	LocationID string    `json:"locationId"`
	Quantity   int       `json:"quantity"`
	Reason     string    `json:"reason"`
	ReleasedBy string    `json:"releasedBy"`
	ReleasedAt time.Time `json:"releasedAt"`
}

func (e *ReservationReleasedEvent) EventType() string     { return "wms.stock.reservation-released" }
func (e *ReservationReleasedEvent) OccurredAt() time.Time { return e.ReleasedAt }

// StockConsumedEvent is published when reserved quantity is confirmed as consumed
type StockConsumedEvent struct {
	BatchID    string    `json:"batchId"`
	LocationID string    `json:"locationId"`
	Quantity   int       `json:"quantity"`
	ConsumedBy string    `json:"consumedBy"`
	ConsumedAt time.Time `json:"consumedAt"`
}

func (e *StockConsumedEvent) EventType() string     { return "wms.stock.consumed" }
func (e *StockConsumedEvent) OccurredAt() time.Time { return e.ConsumedAt }

// StockAdjustedEvent is published when on-hand quantity is manually corrected
type StockAdjustedEvent struct {
	BatchID     string    `json:"batchId"`
	LocationID  string    `json:"locationId"`
	OldQuantity int       `json:"oldQuantity"`
	NewQuantity int       `json:"newQuantity"`
	Reason      string    `json:"reason"`
	AdjustedBy  string    `json:"adjustedBy"`
	AdjustedAt  time.Time `json:"adjustedAt"`
}

func (e *StockAdjustedEvent) EventType() string     { return "wms.stock.adjusted" }
func (e *StockAdjustedEvent) OccurredAt() time.Time { return e.AdjustedAt }

// OrderAllocatedEvent is published when every line item of an order is reserved
type OrderAllocatedEvent struct {
	OrderID       string    `json:"orderId"`
	WarehouseID   string    `json:"warehouseId"`
	AllocationIDs []string  `json:"allocationIds"`
	Strategy      string    `json:"strategy"`
	AllocatedBy   string    `json:"allocatedBy"`
	AllocatedAt   time.Time `json:"allocatedAt"`
}

func (e *OrderAllocatedEvent) EventType() string     { return "wms.order.allocated" }
func (e *OrderAllocatedEvent) OccurredAt() time.Time { return e.AllocatedAt }

// AllocationConfirmedEvent is published when an allocation's stock is consumed
type AllocationConfirmedEvent struct {
	AllocationID string    `json:"allocationId"`
	OrderID      string    `json:"orderId"`
	BatchID      string    `json:"batchId"`
	LocationID   string    `json:"locationId"`
	Quantity     int       `json:"quantity"`
	ConfirmedBy  string    `json:"confirmedBy"`
	ConfirmedAt  time.Time `json:"confirmedAt"`
}

func (e *AllocationConfirmedEvent) EventType() string     { return "wms.allocation.confirmed" }
func (e *AllocationConfirmedEvent) OccurredAt() time.Time { return e.ConfirmedAt }

// AllocationReleasedEvent is published when an allocation gives its stock back
type AllocationReleasedEvent struct {
	AllocationID string    `json:"allocationId"`
	OrderID      string    `json:"orderId"`
	BatchID      string    `json:"batchId"`
	LocationID   string    `json:"locationId"`
	Quantity     int       `json:"quantity"`
	Reason       string    `json:"reason"`
	ReleasedBy   string    `json:"releasedBy"`
	ReleasedAt   time.Time `json:"releasedAt"`
}

func (e *AllocationReleasedEvent) EventType() string     { return "wms.allocation.released" }
func (e *AllocationReleasedEvent) OccurredAt() time.Time { return e.ReleasedAt }

// FulfillmentStartedEvent is published when a confirmed order is handed to fulfillment
type FulfillmentStartedEvent struct {
	OrderID     string    `json:"orderId"`
	WarehouseID string    `json:"warehouseId"`
	StartedBy   string    `json:"startedBy"`
	StartedAt   time.Time `json:"startedAt"`
}

func (e *FulfillmentStartedEvent) EventType() string     { return "wms.fulfillment.started" }
func (e *FulfillmentStartedEvent) OccurredAt() time.Time { return e.StartedAt }

// IntegrityViolationEvent is published when a consistency check fails
type IntegrityViolationEvent struct {
	WarehouseID string    `json:"warehouseId"`
	BatchID     string    `json:"batchId"`
	Detail      string    `json:"detail"`
	DetectedAt  time.Time `json:"detectedAt"`
}

func (e *IntegrityViolationEvent) EventType() string     { return "wms.integrity.violation" }
func (e *IntegrityViolationEvent) OccurredAt() time.Time { return e.DetectedAt }
