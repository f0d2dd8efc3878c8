package application

import "time"

// AllocationItem is one order line to allocate
type AllocationItem struct {
	OrderItemID string
	ItemRef     string
	Quantity    int
}

// AllocateOrderCommand reserves stock for every line item of an order
type AllocateOrderCommand struct {
	OrderID     string
	WarehouseID string
	Strategy    string
	LocationID  string
	Items       []AllocationItem
	RequestedBy string
}

// ConfirmOrderCommand consumes the reserved stock of an allocated order
type ConfirmOrderCommand struct {
	OrderID     string
	ConfirmedBy string
}

// BeginFulfillmentCommand hands a confirmed order to downstream fulfillment
type BeginFulfillmentCommand struct {
	OrderID   string
	StartedBy string
}

// ReleaseOrderCommand releases every active allocation of an order
type ReleaseOrderCommand struct {
	OrderID    string
	Reason     string
	ReleasedBy string
}

// ReleaseAllocationCommand releases a single allocation by ID
type ReleaseAllocationCommand struct {
	AllocationID string
	Reason       string
	ReleasedBy   string
}

// CancelPendingCommand discards pending allocations that never reached the ledger
type CancelPendingCommand struct {
	OrderID     string
	CancelledBy string
}

// RegisterBatchCommand performs an initial stock load
type RegisterBatchCommand struct {
	ItemRef      string
	ItemType     string
	LotNumber    string
	MfgDate      time.Time
	ExpiryDate   *time.Time
	LocationID   string
	WarehouseID  string
	Quantity     int
	StorageFee   float64
	RegisteredBy string
}

// AdjustStockCommand sets the on-hand quantity to a counted value
type AdjustStockCommand struct {
	BatchID    string
	LocationID string
	NewOnHand  int
	Reason     string
	AdjustedBy string
}

// Query objects

// GetAvailabilityQuery fetches the candidate snapshot for one item
type GetAvailabilityQuery struct {
	ItemRef     string
	WarehouseID string
}

// GetOrderAllocationsQuery lists allocations of one order
type GetOrderAllocationsQuery struct {
	OrderID string
}

// GetAllocationQuery fetches a single allocation
type GetAllocationQuery struct {
	AllocationID string
}

// GetHistoryQuery pages through the audit trail of one target
type GetHistoryQuery struct {
	TargetID string
	Page     int
	PageSize int
}

// VerifyConsistencyQuery checks one warehouse aggregate against its location rows
type VerifyConsistencyQuery struct {
	WarehouseID string
	BatchID     string
}
