package domain

import (
	"errors"
	"testing"
)

func newTestWarehouse(t *testing.T, total, reserved int) *WarehouseInventory {
	t.Helper()
	w, err := NewWarehouseInventory("WH-1", "BAT-1", "WIDGET-001", total, 0.25)
	if err != nil {
		t.Fatalf("NewWarehouseInventory() unexpected error: %v", err)
	}
	w.ReservedQty = reserved
	return w
}

func TestNewWarehouseInventory(t *testing.T) {
	tests := []struct {
		name        string
		warehouseID string
		batchID     string
		qty         int
		wantErr     error
	}{
		{name: "valid", warehouseID: "WH-1", batchID: "BAT-1", qty: 100},
		{name: "missing warehouse", batchID: "BAT-1", qty: 100, wantErr: ErrInvalidWarehouse},
		{name: "missing batch", warehouseID: "WH-1", qty: 100, wantErr: ErrBatchNotFound},
		{name: "zero quantity", warehouseID: "WH-1", batchID: "BAT-1", qty: 0, wantErr: ErrInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewWarehouseInventory(tt.warehouseID, tt.batchID, "WIDGET-001", tt.qty, 0)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewWarehouseInventory() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewWarehouseInventory() unexpected error: %v", err)
			}
			if w.TotalQty != tt.qty || w.ReservedQty != 0 {
				t.Fatalf("NewWarehouseInventory() = total %d reserved %d, want %d/0", w.TotalQty, w.ReservedQty, tt.qty)
			}
		})
	}
}

func TestWarehouseInventoryApplyReserve(t *testing.T) {
	tests := []struct {
		name         string
		total        int
		reserved     int
		qty          int
		wantErr      error
		wantReserved int
	}{
		{name: "reserve within capacity", total: 100, reserved: 20, qty: 30, wantReserved: 50},
		{name: "reserve to full", total: 100, reserved: 80, qty: 20, wantReserved: 100},
		{name: "over capacity", total: 100, reserved: 90, qty: 20, wantErr: ErrInsufficientStock},
		{name: "zero quantity", total: 100, reserved: 0, qty: 0, wantErr: ErrInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWarehouse(t, tt.total, tt.reserved)
			err := w.ApplyReserve(tt.qty)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ApplyReserve() error = %v, want %v", err, tt.wantErr)
				}
				if w.ReservedQty != tt.reserved {
					t.Fatalf("ApplyReserve() mutated reserved to %d on failure", w.ReservedQty)
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyReserve() unexpected error: %v", err)
			}
			if w.ReservedQty != tt.wantReserved {
				t.Fatalf("ApplyReserve() reserved = %d, want %d", w.ReservedQty, tt.wantReserved)
			}
		})
	}
}

func TestWarehouseInventoryApplyConsume(t *testing.T) {
	w := newTestWarehouse(t, 100, 30)

	if err := w.ApplyConsume(30); err != nil {
		t.Fatalf("ApplyConsume() unexpected error: %v", err)
	}
	if w.TotalQty != 70 || w.ReservedQty != 0 {
		t.Fatalf("ApplyConsume() = total %d reserved %d, want 70/0", w.TotalQty, w.ReservedQty)
	}

	if err := w.ApplyConsume(10); !errors.Is(err, ErrOverRelease) {
		t.Fatalf("ApplyConsume() beyond reserved error = %v, want %v", err, ErrOverRelease)
	}
}

func TestWarehouseInventoryApplyRelease(t *testing.T) {
	w := newTestWarehouse(t, 100, 30)

	if err := w.ApplyRelease(30); err != nil {
		t.Fatalf("ApplyRelease() unexpected error: %v", err)
	}
	if w.ReservedQty != 0 {
		t.Fatalf("ApplyRelease() reserved = %d, want 0", w.ReservedQty)
	}

	if err := w.ApplyRelease(1); !errors.Is(err, ErrOverRelease) {
		t.Fatalf("ApplyRelease() without reservation error = %v, want %v", err, ErrOverRelease)
	}
}

func TestWarehouseInventoryApplyDelta(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		reserved  int
		delta     int
		wantErr   error
		wantTotal int
	}{
		{name: "restock", total: 70, reserved: 0, delta: 30, wantTotal: 100},
		{name: "count down", total: 100, reserved: 20, delta: -50, wantTotal: 50},
		{name: "below reserved", total: 100, reserved: 60, delta: -50, wantErr: ErrAdjustBelowReserved},
		{name: "below zero", total: 10, reserved: 0, delta: -20, wantErr: ErrInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWarehouse(t, tt.total, tt.reserved)
			err := w.ApplyDelta(tt.delta)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ApplyDelta() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyDelta() unexpected error: %v", err)
			}
			if w.TotalQty != tt.wantTotal {
				t.Fatalf("ApplyDelta() total = %d, want %d", w.TotalQty, tt.wantTotal)
			}
		})
	}
}

func TestWarehouseInventoryMatches(t *testing.T) {
	w := newTestWarehouse(t, 100, 30)

	if err := w.Matches(100, 30); err != nil {
		t.Fatalf("Matches() unexpected error: %v", err)
	}
	if err := w.Matches(99, 30); !errors.Is(err, ErrAggregateMismatch) {
		t.Fatalf("Matches() total drift error = %v, want %v", err, ErrAggregateMismatch)
	}
	if err := w.Matches(100, 31); !errors.Is(err, ErrAggregateMismatch) {
		t.Fatalf("Matches() reserved drift error = %v, want %v", err, ErrAggregateMismatch)
	}
}
