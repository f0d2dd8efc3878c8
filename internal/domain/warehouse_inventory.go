package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WarehouseInventory is the materialized warehouse-level aggregate for one
// batch. It must always equal the sum of that batch's location rows inside
// the warehouse; every ledger transaction updates both sides together.
type WarehouseInventory struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	WarehouseID string             `bson:"warehouseId"`
	BatchID     string             `bson:"batchId"`
	ItemRef     string             `bson:"itemRef"`
	TotalQty    int                `bson:"totalQty"`
	ReservedQty int                `bson:"reservedQty"`
	StorageFee  float64            `bson:"storageFee"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

// NewWarehouseInventory creates the aggregate row for an initial load
func NewWarehouseInventory(warehouseID, batchID, itemRef string, qty int, storageFee float64) (*WarehouseInventory, error) {
	if warehouseID == "" {
		return nil, ErrInvalidWarehouse
	}
	if batchID == "" {
		return nil, ErrBatchNotFound
	}
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	now := time.Now()
	return &WarehouseInventory{
		WarehouseID: warehouseID,
		BatchID:     batchID,
		ItemRef:     itemRef,
		TotalQty:    qty,
		ReservedQty: 0,
		StorageFee:  storageFee,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ApplyReserve mirrors a location-level reservation
func (w *WarehouseInventory) ApplyReserve(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if w.ReservedQty+qty > w.TotalQty {
		return ErrInsufficientStock
	}
	w.ReservedQty += qty
	w.UpdatedAt = time.Now()
	return nil
}

// ApplyRelease mirrors a location-level release
func (w *WarehouseInventory) ApplyRelease(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if w.ReservedQty < qty {
		return ErrOverRelease
	}
	w.ReservedQty -= qty
	w.UpdatedAt = time.Now()
	return nil
}

// ApplyConsume mirrors a location-level consumption
func (w *WarehouseInventory) ApplyConsume(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if w.ReservedQty < qty || w.TotalQty < qty {
		return ErrOverRelease
	}
	w.TotalQty -= qty
	w.ReservedQty -= qty
	w.UpdatedAt = time.Now()
	return nil
}

// ApplyDelta mirrors a location-level adjustment or restock
func (w *WarehouseInventory) ApplyDelta(delta int) error {
	if w.TotalQty+delta < 0 {
		return ErrInvalidQuantity
	}
	if w.TotalQty+delta < w.ReservedQty {
		return ErrAdjustBelowReserved
	}
	w.TotalQty += delta
	w.UpdatedAt = time.Now()
	return nil
}

// Available returns the unreserved quantity across the warehouse
func (w *WarehouseInventory) Available() int {
	return w.TotalQty - w.ReservedQty
}

// WarehouseBatchPair identifies one aggregate row, used by consistency scans
type WarehouseBatchPair struct {
	WarehouseID string
	BatchID     string
}

// Matches verifies the aggregate against a freshly computed location sum.
// A mismatch is a fatal integrity error.
func (w *WarehouseInventory) Matches(locationTotal, locationReserved int) error {
	if w.TotalQty != locationTotal || w.ReservedQty != locationReserved {
		return ErrAggregateMismatch
	}
	return nil
}
