package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuantity     = errors.New("quantity must be positive")
	ErrInvalidItemRef      = errors.New("item reference is required")
	ErrInvalidLocation     = errors.New("location ID is required")
	ErrInvalidWarehouse    = errors.New("warehouse ID is required")
	ErrInvalidActor        = errors.New("actor is required")
	ErrBatchNotFound       = errors.New("batch not found")
	ErrLocationNotFound    = errors.New("location inventory not found")
	ErrAllocationNotFound  = errors.New("allocation not found")
	ErrLocationNotSellable = errors.New("location inventory is not in stock")
	ErrInsufficientStock   = errors.New("insufficient available quantity")
	ErrOverRelease         = errors.New("release exceeds reserved quantity")
	ErrAdjustBelowReserved = errors.New("adjustment would drop on-hand below reserved quantity")
	ErrReservedInvariant   = errors.New("reserved quantity outside [0, on-hand] bounds")
	ErrUnknownStrategy     = errors.New("unknown batch selection strategy")

	// State machine violations. No ledger effect when these are returned.
	ErrAllocationNotPending   = errors.New("allocation is not in pending status")
	ErrAllocationNotAllocated = errors.New("allocation is not in allocated status")
	ErrAllocationNotConfirmed = errors.New("allocation is not in confirmed status")
	ErrAllocationNotActive    = errors.New("allocation is not releasable")
	ErrAllocationTerminal     = errors.New("allocation is in a terminal status")

	// Integrity failures are fatal and must never be masked.
	ErrChecksumMismatch  = errors.New("history entry checksum mismatch")
	ErrAggregateMismatch = errors.New("warehouse aggregate does not match location sum")

	ErrLockTimeout = errors.New("inventory row lock timed out")
)

// ShortageError reports an all-or-nothing selection failure for one line item.
type ShortageError struct {
	ItemRef   string
	Requested int
	Available int
}

func (e *ShortageError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.ItemRef, e.Requested, e.Available)
}

func (e *ShortageError) Unwrap() error {
	return ErrInsufficientStock
}

// StatusTransitionError reports an invalid location inventory status change.
type StatusTransitionError struct {
	From LocationStatus
	To   LocationStatus
}

func (e *StatusTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}
