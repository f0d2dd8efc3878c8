package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LocationStatus represents the lifecycle status of a location inventory row
type LocationStatus string

const (
	LocationStatusInStock    LocationStatus = "in_stock"
	LocationStatusUnassigned LocationStatus = "unassigned"
	LocationStatusOutOfStock LocationStatus = "out_of_stock"
	LocationStatusSuspended  LocationStatus = "suspended"
)

// IsValid checks if the location status is valid
func (s LocationStatus) IsValid() bool {
	switch s {
	case LocationStatusInStock, LocationStatusUnassigned, LocationStatusOutOfStock, LocationStatusSuspended:
		return true
	}
	return false
}

// locationTransitions is the allowed status transition table
var locationTransitions = map[LocationStatus][]LocationStatus{
	LocationStatusUnassigned: {LocationStatusInStock, LocationStatusSuspended},
	LocationStatusInStock:    {LocationStatusOutOfStock, LocationStatusSuspended},
	LocationStatusOutOfStock: {LocationStatusInStock, LocationStatusSuspended},
	LocationStatusSuspended:  {LocationStatusInStock, LocationStatusOutOfStock},
}

// CanTransitionTo checks the transition table
func (s LocationStatus) CanTransitionTo(target LocationStatus) bool {
	for _, allowed := range locationTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// LocationInventory tracks the quantity of one batch at one physical location.
// It is the locking granule of the ledger: every mutation loads, checks and
// writes exactly one row of this type, guarded by its Version field.
//
// Invariant: 0 <= ReservedQty <= OnHandQty.
type LocationInventory struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	BatchID         string             `bson:"batchId"`
	LocationID      string             `bson:"locationId"`
	WarehouseID     string             `bson:"warehouseId"`
	OnHandQty       int                `bson:"onHandQty"`
	ReservedQty     int                `bson:"reservedQty"`
	Status          LocationStatus     `bson:"status"`
	StatusChangedAt time.Time          `bson:"statusChangedAt"`
	Version         int64              `bson:"version"`
	CreatedAt       time.Time          `bson:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt"`

	DomainEvents []DomainEvent `bson:"-"`
}

// NewLocationInventory creates a stocked row for an initial load
func NewLocationInventory(batchID, locationID, warehouseID string, qty int) (*LocationInventory, error) {
	if batchID == "" {
		return nil, ErrBatchNotFound
	}
	if locationID == "" {
		return nil, ErrInvalidLocation
	}
	if warehouseID == "" {
		return nil, ErrInvalidWarehouse
	}
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	now := time.Now()
	return &LocationInventory{
		BatchID:         batchID,
		LocationID:      locationID,
		WarehouseID:     warehouseID,
		OnHandQty:       qty,
		ReservedQty:     0,
		Status:          LocationStatusInStock,
		StatusChangedAt: now,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
		DomainEvents:    make([]DomainEvent, 0),
	}, nil
}

// Available returns the quantity that can still be reserved
func (l *LocationInventory) Available() int {
	return l.OnHandQty - l.ReservedQty
}

// Reserve earmarks quantity for an allocation without moving stock
func (l *LocationInventory) Reserve(qty int, reservedBy string) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if l.Status != LocationStatusInStock {
		return ErrLocationNotSellable
	}
	if l.Available() < qty {
		return ErrInsufficientStock
	}

	now := time.Now()
	l.ReservedQty += qty
	l.touch(now)

	l.AddDomainEvent(&StockReservedEvent{
		BatchID:    l.BatchID,
		LocationID: l.LocationID,
		Quantity:   qty,
		ReservedBy: reservedBy,
		ReservedAt: now,
	})

	return l.checkInvariant()
}

// Release returns reserved quantity to available
func (l *LocationInventory) Release(qty int, releasedBy, reason string) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if l.ReservedQty < qty {
		return ErrOverRelease
	}

	now := time.Now()
	l.ReservedQty -= qty
	l.touch(now)

	l.AddDomainEvent(&ReservationReleasedEvent{
		BatchID:    l.BatchID,
		LocationID: l.LocationID,
		Quantity:   qty,
		Reason:     reason,
		ReleasedBy: releasedBy,
		ReleasedAt: now,
	})

	return l.checkInvariant()
}

// Consume converts reserved quantity into an on-hand decrement. Used when an
// allocation is confirmed: the stock leaves the sellable pool for good.
func (l *LocationInventory) Consume(qty int, consumedBy string) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if l.ReservedQty < qty {
		return ErrOverRelease
	}

	now := time.Now()
	l.OnHandQty -= qty
	l.ReservedQty -= qty
	l.touch(now)

	if l.OnHandQty == 0 && l.Status == LocationStatusInStock {
		l.Status = LocationStatusOutOfStock
		l.StatusChangedAt = now
	}

	l.AddDomainEvent(&StockConsumedEvent{
		BatchID:    l.BatchID,
		LocationID: l.LocationID,
		Quantity:   qty,
		ConsumedBy: consumedBy,
		ConsumedAt: now,
	})

	return l.checkInvariant()
}

// Restock adds quantity back to on-hand, e.g. when a confirmed allocation is
// released before the goods physically leave the warehouse.
func (l *LocationInventory) Restock(qty int, restockedBy, reason string) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}

	now := time.Now()
	old := l.OnHandQty
	l.OnHandQty += qty
	l.touch(now)

	if l.Status == LocationStatusOutOfStock {
		l.Status = LocationStatusInStock
		l.StatusChangedAt = now
	}

	l.AddDomainEvent(&StockAdjustedEvent{
		BatchID:     l.BatchID,
		LocationID:  l.LocationID,
		OldQuantity: old,
		NewQuantity: l.OnHandQty,
		Reason:      reason,
		AdjustedBy:  restockedBy,
		AdjustedAt:  now,
	})

	return l.checkInvariant()
}

// AdjustTo sets the on-hand quantity to an absolute value after a physical
// count. It refuses to drop on-hand below the outstanding reservations.
func (l *LocationInventory) AdjustTo(newOnHand int, adjustedBy, reason string) (delta int, err error) {
	if newOnHand < 0 {
		return 0, ErrInvalidQuantity
	}
	if newOnHand < l.ReservedQty {
		return 0, ErrAdjustBelowReserved
	}

	now := time.Now()
	old := l.OnHandQty
	delta = newOnHand - old
	l.OnHandQty = newOnHand
	l.touch(now)

	switch {
	case l.OnHandQty == 0 && l.Status == LocationStatusInStock:
		l.Status = LocationStatusOutOfStock
		l.StatusChangedAt = now
	case l.OnHandQty > 0 && l.Status == LocationStatusOutOfStock:
		l.Status = LocationStatusInStock
		l.StatusChangedAt = now
	}

	l.AddDomainEvent(&StockAdjustedEvent{
		BatchID:     l.BatchID,
		LocationID:  l.LocationID,
		OldQuantity: old,
		NewQuantity: newOnHand,
		Reason:      reason,
		AdjustedBy:  adjustedBy,
		AdjustedAt:  now,
	})

	if err := l.checkInvariant(); err != nil {
		return 0, err
	}
	return delta, nil
}

// ChangeStatus applies an explicit status transition (e.g. suspend for audit)
func (l *LocationInventory) ChangeStatus(target LocationStatus) error {
	if !target.IsValid() {
		return &StatusTransitionError{From: l.Status, To: target}
	}
	if l.Status == target {
		return nil
	}
	if !l.Status.CanTransitionTo(target) {
		return &StatusTransitionError{From: l.Status, To: target}
	}

	now := time.Now()
	l.Status = target
	l.StatusChangedAt = now
	l.touch(now)
	return nil
}

func (l *LocationInventory) touch(now time.Time) {
	l.UpdatedAt = now
	l.Version++
}

func (l *LocationInventory) checkInvariant() error {
	if l.ReservedQty < 0 || l.ReservedQty > l.OnHandQty {
		return ErrReservedInvariant
	}
	return nil
}

// AddDomainEvent adds a domain event
func (l *LocationInventory) AddDomainEvent(event DomainEvent) {
	l.DomainEvents = append(l.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (l *LocationInventory) ClearDomainEvents() {
	l.DomainEvents = make([]DomainEvent, 0)
}

// GetDomainEvents returns all domain events
func (l *LocationInventory) GetDomainEvents() []DomainEvent {
	return l.DomainEvents
}
