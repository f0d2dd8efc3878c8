package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AllocationStatus represents the status of an order allocation
type AllocationStatus string

const (
	AllocationStatusPending    AllocationStatus = "pending"
	AllocationStatusAllocated  AllocationStatus = "allocated"
	AllocationStatusConfirmed  AllocationStatus = "confirmed"
	AllocationStatusFulfilling AllocationStatus = "fulfilling"
	AllocationStatusReleased   AllocationStatus = "released"
	AllocationStatusCancelled  AllocationStatus = "cancelled"
)

// IsValid checks if the allocation status is valid
func (s AllocationStatus) IsValid() bool {
	switch s {
	case AllocationStatusPending, AllocationStatusAllocated, AllocationStatusConfirmed,
		AllocationStatusFulfilling, AllocationStatusReleased, AllocationStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are possible
func (s AllocationStatus) IsTerminal() bool {
	return s == AllocationStatusFulfilling || s == AllocationStatusReleased || s == AllocationStatusCancelled
}

// Allocation binds one order line item to reserved quantity of one batch at
// one location. The status field tracks the reservation through its life:
// pending -> allocated -> confirmed -> fulfilling, with releases possible
// from allocated and confirmed, and cancellation only from pending.
type Allocation struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	AllocationID string             `bson:"allocationId"`
	OrderID      string             `bson:"orderId"`
	OrderItemID  string             `bson:"orderItemId"`
	ItemRef      string             `bson:"itemRef"`
	BatchID      string             `bson:"batchId"`
	LotNumber    string             `bson:"lotNumber"`
	LocationID   string             `bson:"locationId"`
	WarehouseID  string             `bson:"warehouseId"`
	Quantity     int                `bson:"quantity"`
	Status       AllocationStatus   `bson:"status"`

	CreatedBy       string     `bson:"createdBy"`
	ReleaseReason   string     `bson:"releaseReason,omitempty"`
	StatusChangedAt time.Time  `bson:"statusChangedAt"`
	ConfirmedAt     *time.Time `bson:"confirmedAt,omitempty"`
	ReleasedAt      *time.Time `bson:"releasedAt,omitempty"`
	CreatedAt       time.Time  `bson:"createdAt"`
	UpdatedAt       time.Time  `bson:"updatedAt"`

	DomainEvents []DomainEvent `bson:"-"`
}

// NewAllocation creates a pending allocation. It becomes effective only after
// the matching ledger reservation commits and MarkAllocated is called.
func NewAllocation(orderID, orderItemID, itemRef, batchID, lotNumber, locationID, warehouseID string, qty int, createdBy string) (*Allocation, error) {
	if orderID == "" || orderItemID == "" {
		return nil, fmt.Errorf("order and order item IDs are required")
	}
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	if batchID == "" {
		return nil, ErrBatchNotFound
	}
	if locationID == "" {
		return nil, ErrInvalidLocation
	}

	now := time.Now()
	return &Allocation{
		AllocationID:    NewAllocationID(),
		OrderID:         orderID,
		OrderItemID:     orderItemID,
		ItemRef:         itemRef,
		BatchID:         batchID,
		LotNumber:       lotNumber,
		LocationID:      locationID,
		WarehouseID:     warehouseID,
		Quantity:        qty,
		Status:          AllocationStatusPending,
		CreatedBy:       createdBy,
		StatusChangedAt: now,
		CreatedAt:       now,
		UpdatedAt:       now,
		DomainEvents:    make([]DomainEvent, 0),
	}, nil
}

// MarkAllocated records that the ledger reservation committed
func (a *Allocation) MarkAllocated() error {
	if a.Status != AllocationStatusPending {
		return ErrAllocationNotPending
	}
	a.transition(AllocationStatusAllocated)
	return nil
}

// Confirm records that the reserved stock was consumed for this order
func (a *Allocation) Confirm(confirmedBy string) error {
	if a.Status != AllocationStatusAllocated {
		return ErrAllocationNotAllocated
	}

	now := a.transition(AllocationStatusConfirmed)
	a.ConfirmedAt = &now

	a.AddDomainEvent(&AllocationConfirmedEvent{
		AllocationID: a.AllocationID,
		OrderID:      a.OrderID,
		BatchID:      a.BatchID,
		LocationID:   a.LocationID,
		Quantity:     a.Quantity,
		ConfirmedBy:  confirmedBy,
		ConfirmedAt:  now,
	})
	return nil
}

// BeginFulfillment hands the confirmed allocation to downstream fulfillment
func (a *Allocation) BeginFulfillment() error {
	if a.Status != AllocationStatusConfirmed {
		return ErrAllocationNotConfirmed
	}
	a.transition(AllocationStatusFulfilling)
	return nil
}

// Release gives the reserved or consumed stock back. Only allocated and
// confirmed allocations can be released; a second release is a state error
// and must leave the ledger untouched.
func (a *Allocation) Release(releasedBy, reason string) error {
	if a.Status != AllocationStatusAllocated && a.Status != AllocationStatusConfirmed {
		if a.Status.IsTerminal() {
			return ErrAllocationTerminal
		}
		return ErrAllocationNotActive
	}

	now := a.transition(AllocationStatusReleased)
	a.ReleasedAt = &now
	a.ReleaseReason = reason

	a.AddDomainEvent(&AllocationReleasedEvent{
		AllocationID: a.AllocationID,
		OrderID:      a.OrderID,
		BatchID:      a.BatchID,
		LocationID:   a.LocationID,
		Quantity:     a.Quantity,
		Reason:       reason,
		ReleasedBy:   releasedBy,
		ReleasedAt:   now,
	})
	return nil
}

// Cancel discards a pending allocation that never reached the ledger
func (a *Allocation) Cancel() error {
	if a.Status != AllocationStatusPending {
		return ErrAllocationNotPending
	}
	a.transition(AllocationStatusCancelled)
	return nil
}

// IsActive reports whether the allocation currently holds ledger quantity
func (a *Allocation) IsActive() bool {
	return a.Status == AllocationStatusAllocated || a.Status == AllocationStatusConfirmed
}

func (a *Allocation) transition(target AllocationStatus) time.Time {
	now := time.Now()
	a.Status = target
	a.StatusChangedAt = now
	a.UpdatedAt = now
	return now
}

// AddDomainEvent adds a domain event
func (a *Allocation) AddDomainEvent(event DomainEvent) {
	a.DomainEvents = append(a.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (a *Allocation) ClearDomainEvents() {
	a.DomainEvents = make([]DomainEvent, 0)
}

// GetDomainEvents returns all domain events
func (a *Allocation) GetDomainEvents() []DomainEvent {
	return a.DomainEvents
}

// NewAllocationID generates a unique allocation identifier
func NewAllocationID() string {
	return fmt.Sprintf("ALC-%d-%s", time.Now().UnixNano(), uuid.New().String()[:8])
}
