package domain

import "context"

// Ledger is the transactional quantity ledger. Each mutation touches one
// location row, its warehouse aggregate and the audit trail in a single
// transaction; concurrent writers to the same row are serialized by a
// version guard and surface as retryable lock timeouts, never as partial
// writes.
type Ledger interface {
	// RegisterBatch performs an initial stock load: batch record, location
	// row, warehouse aggregate and an initial_load history entry.
	RegisterBatch(ctx context.Context, batch *Batch, locationID, warehouseID string, qty int, storageFee float64, actor string) error

	// Reserve earmarks quantity at a location for an allocation.
	Reserve(ctx context.Context, batchID, locationID string, qty int, actor string) error

	// Release returns previously reserved quantity to available.
	Release(ctx context.Context, batchID, locationID string, qty int, actor, reason string) error

	// ConfirmConsumption converts reserved quantity into an on-hand decrement.
	ConfirmConsumption(ctx context.Context, batchID, locationID string, qty int, actor string) error

	// Restock adds consumed quantity back, used when a confirmed allocation
	// is released before the goods leave the warehouse.
	Restock(ctx context.Context, batchID, locationID string, qty int, actor, reason string) error

	// Adjust sets the on-hand quantity to an absolute counted value.
	Adjust(ctx context.Context, batchID, locationID string, newOnHand int, actor, reason string) error

	// VerifyConsistency recomputes the location sum for one warehouse/batch
	// pair and compares it against the materialized aggregate.
	VerifyConsistency(ctx context.Context, warehouseID, batchID string) error
}

// BatchRepository persists immutable batch records
type BatchRepository interface {
	Save(ctx context.Context, batch *Batch) error
	FindByBatchID(ctx context.Context, batchID string) (*Batch, error)
	FindByItemRef(ctx context.Context, itemRef string) ([]*Batch, error)
}

// LocationInventoryRepository reads location rows outside ledger transactions
type LocationInventoryRepository interface {
	FindByBatchAndLocation(ctx context.Context, batchID, locationID string) (*LocationInventory, error)

	// FindCandidates returns the selectable snapshot for one item in one
	// warehouse: in_stock rows joined with batch metadata.
	FindCandidates(ctx context.Context, itemRef, warehouseID string) ([]BatchCandidate, error)
}

// WarehouseInventoryRepository reads the materialized warehouse aggregates
type WarehouseInventoryRepository interface {
	FindByWarehouseAndBatch(ctx context.Context, warehouseID, batchID string) (*WarehouseInventory, error)
	FindByItemRef(ctx context.Context, itemRef string) ([]*WarehouseInventory, error)

	// ListPairs enumerates every aggregate row for consistency scans
	ListPairs(ctx context.Context) ([]WarehouseBatchPair, error)
}

// AllocationRepository persists order allocations
type AllocationRepository interface {
	Save(ctx context.Context, allocation *Allocation) error
	FindByAllocationID(ctx context.Context, allocationID string) (*Allocation, error)
	FindByOrderID(ctx context.Context, orderID string) ([]*Allocation, error)
	FindActiveByOrderID(ctx context.Context, orderID string) ([]*Allocation, error)
}

// HistoryRepository reads the append-only audit trail. Writing happens only
// inside ledger transactions; there is no update or delete path.
type HistoryRepository interface {
	ListByTarget(ctx context.Context, targetID string, page, limit int) ([]*HistoryEntry, int64, error)
}
