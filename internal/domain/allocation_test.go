package domain

import (
	"errors"
	"testing"
)

func newTestAllocation(t *testing.T) *Allocation {
	t.Helper()
	alloc, err := NewAllocation("ORD-1", "ITEM-1", "SKU-1", "BAT-1", "LOT-1", "LOC-A", "WH-1", 5, "tester")
	if err != nil {
		t.Fatalf("NewAllocation() unexpected error: %v", err)
	}
	return alloc
}

func TestNewAllocationValidation(t *testing.T) {
	tests := []struct {
		name    string
		orderID string
		itemID  string
		batchID string
		locID   string
		qty     int
		wantErr bool
	}{
		{name: "valid", orderID: "ORD-1", itemID: "ITEM-1", batchID: "BAT-1", locID: "LOC-A", qty: 5},
		{name: "missing order", itemID: "ITEM-1", batchID: "BAT-1", locID: "LOC-A", qty: 5, wantErr: true},
		{name: "missing order item", orderID: "ORD-1", batchID: "BAT-1", locID: "LOC-A", qty: 5, wantErr: true},
		{name: "missing batch", orderID: "ORD-1", itemID: "ITEM-1", locID: "LOC-A", qty: 5, wantErr: true},
		{name: "missing location", orderID: "ORD-1", itemID: "ITEM-1", batchID: "BAT-1", qty: 5, wantErr: true},
		{name: "zero quantity", orderID: "ORD-1", itemID: "ITEM-1", batchID: "BAT-1", locID: "LOC-A", qty: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alloc, err := NewAllocation(tt.orderID, tt.itemID, "SKU-1", tt.batchID, "LOT-1", tt.locID, "WH-1", tt.qty, "tester")
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewAllocation() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewAllocation() unexpected error: %v", err)
			}
			if alloc.Status != AllocationStatusPending {
				t.Errorf("Status = %s, want %s", alloc.Status, AllocationStatusPending)
			}
		})
	}
}

func TestAllocationHappyPath(t *testing.T) {
	alloc := newTestAllocation(t)

	if err := alloc.MarkAllocated(); err != nil {
		t.Fatalf("MarkAllocated() unexpected error: %v", err)
	}
	if err := alloc.Confirm("packer"); err != nil {
		t.Fatalf("Confirm() unexpected error: %v", err)
	}
	if alloc.ConfirmedAt == nil {
		t.Error("ConfirmedAt not set after Confirm()")
	}
	if err := alloc.BeginFulfillment(); err != nil {
		t.Fatalf("BeginFulfillment() unexpected error: %v", err)
	}
	if alloc.Status != AllocationStatusFulfilling {
		t.Errorf("Status = %s, want %s", alloc.Status, AllocationStatusFulfilling)
	}
	if !alloc.Status.IsTerminal() {
		t.Error("fulfilling status should be terminal")
	}
}

func TestAllocationInvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(*Allocation)
		act     func(*Allocation) error
		wantErr error
	}{
		{
			name:    "confirm before allocated",
			prepare: func(a *Allocation) {},
			act:     func(a *Allocation) error { return a.Confirm("x") },
			wantErr: ErrAllocationNotAllocated,
		},
		{
			name:    "fulfill before confirmed",
			prepare: func(a *Allocation) { _ = a.MarkAllocated() },
			act:     func(a *Allocation) error { return a.BeginFulfillment() },
			wantErr: ErrAllocationNotConfirmed,
		},
		{
			name:    "mark allocated twice",
			prepare: func(a *Allocation) { _ = a.MarkAllocated() },
			act:     func(a *Allocation) error { return a.MarkAllocated() },
			wantErr: ErrAllocationNotPending,
		},
		{
			name:    "release pending",
			prepare: func(a *Allocation) {},
			act:     func(a *Allocation) error { return a.Release("x", "r") },
			wantErr: ErrAllocationNotActive,
		},
		{
			name: "release twice",
			prepare: func(a *Allocation) {
				_ = a.MarkAllocated()
				_ = a.Release("x", "r")
			},
			act:     func(a *Allocation) error { return a.Release("x", "r") },
			wantErr: ErrAllocationTerminal,
		},
		{
			name: "release after fulfillment",
			prepare: func(a *Allocation) {
				_ = a.MarkAllocated()
				_ = a.Confirm("x")
				_ = a.BeginFulfillment()
			},
			act:     func(a *Allocation) error { return a.Release("x", "r") },
			wantErr: ErrAllocationTerminal,
		},
		{
			name:    "cancel after allocated",
			prepare: func(a *Allocation) { _ = a.MarkAllocated() },
			act:     func(a *Allocation) error { return a.Cancel() },
			wantErr: ErrAllocationNotPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alloc := newTestAllocation(t)
			tt.prepare(alloc)
			before := alloc.Status

			if err := tt.act(alloc); !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if alloc.Status != before {
				t.Errorf("Status = %s changed on rejected transition, want %s", alloc.Status, before)
			}
		})
	}
}

func TestAllocationReleaseFromConfirmed(t *testing.T) {
	alloc := newTestAllocation(t)
	_ = alloc.MarkAllocated()
	_ = alloc.Confirm("packer")

	if err := alloc.Release("supervisor", "order cancelled"); err != nil {
		t.Fatalf("Release() unexpected error: %v", err)
	}
	if alloc.Status != AllocationStatusReleased {
		t.Errorf("Status = %s, want %s", alloc.Status, AllocationStatusReleased)
	}
	if alloc.ReleaseReason != "order cancelled" {
		t.Errorf("ReleaseReason = %q, want %q", alloc.ReleaseReason, "order cancelled")
	}
	if alloc.ReleasedAt == nil {
		t.Error("ReleasedAt not set after Release()")
	}
}

func TestAllocationCancelPending(t *testing.T) {
	alloc := newTestAllocation(t)

	if err := alloc.Cancel(); err != nil {
		t.Fatalf("Cancel() unexpected error: %v", err)
	}
	if alloc.Status != AllocationStatusCancelled {
		t.Errorf("Status = %s, want %s", alloc.Status, AllocationStatusCancelled)
	}
	if alloc.IsActive() {
		t.Error("cancelled allocation reported active")
	}
}
