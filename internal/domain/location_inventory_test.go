package domain

import (
	"errors"
	"testing"
)

func newTestLocation(t *testing.T, onHand, reserved int) *LocationInventory {
	t.Helper()
	loc, err := NewLocationInventory("BAT-1", "LOC-A", "WH-1", onHand)
	if err != nil {
		t.Fatalf("NewLocationInventory() unexpected error: %v", err)
	}
	loc.ReservedQty = reserved
	loc.ClearDomainEvents()
	return loc
}

func TestNewLocationInventory(t *testing.T) {
	tests := []struct {
		name        string
		batchID     string
		locationID  string
		warehouseID string
		qty         int
		wantErr     error
	}{
		{name: "valid", batchID: "BAT-1", locationID: "LOC-A", warehouseID: "WH-1", qty: 10},
		{name: "missing batch", locationID: "LOC-A", warehouseID: "WH-1", qty: 10, wantErr: ErrBatchNotFound},
		{name: "missing location", batchID: "BAT-1", warehouseID: "WH-1", qty: 10, wantErr: ErrInvalidLocation},
		{name: "missing warehouse", batchID: "BAT-1", locationID: "LOC-A", qty: 10, wantErr: ErrInvalidWarehouse},
		{name: "zero quantity", batchID: "BAT-1", locationID: "LOC-A", warehouseID: "WH-1", qty: 0, wantErr: ErrInvalidQuantity},
		{name: "negative quantity", batchID: "BAT-1", locationID: "LOC-A", warehouseID: "WH-1", qty: -5, wantErr: ErrInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := NewLocationInventory(tt.batchID, tt.locationID, tt.warehouseID, tt.qty)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewLocationInventory() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewLocationInventory() unexpected error: %v", err)
			}
			if loc.Status != LocationStatusInStock {
				t.Errorf("Status = %s, want %s", loc.Status, LocationStatusInStock)
			}
			if loc.Available() != tt.qty {
				t.Errorf("Available() = %d, want %d", loc.Available(), tt.qty)
			}
		})
	}
}

func TestLocationInventoryReserve(t *testing.T) {
	tests := []struct {
		name         string
		onHand       int
		reserved     int
		status       LocationStatus
		qty          int
		wantErr      error
		wantReserved int
	}{
		{name: "reserves available quantity", onHand: 10, reserved: 0, qty: 4, wantReserved: 4},
		{name: "reserves up to on-hand", onHand: 10, reserved: 6, qty: 4, wantReserved: 10},
		{name: "rejects beyond available", onHand: 10, reserved: 6, qty: 5, wantErr: ErrInsufficientStock, wantReserved: 6},
		{name: "rejects zero", onHand: 10, qty: 0, wantErr: ErrInvalidQuantity},
		{name: "rejects negative", onHand: 10, qty: -1, wantErr: ErrInvalidQuantity},
		{name: "rejects suspended row", onHand: 10, status: LocationStatusSuspended, qty: 1, wantErr: ErrLocationNotSellable},
		{name: "rejects out-of-stock row", onHand: 10, status: LocationStatusOutOfStock, qty: 1, wantErr: ErrLocationNotSellable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := newTestLocation(t, tt.onHand, tt.reserved)
			if tt.status != "" {
				loc.Status = tt.status
			}

			err := loc.Reserve(tt.qty, "tester")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Reserve() error = %v, want %v", err, tt.wantErr)
				}
				if len(loc.GetDomainEvents()) != 0 {
					t.Errorf("Reserve() emitted %d events on failure", len(loc.GetDomainEvents()))
				}
				return
			}
			if err != nil {
				t.Fatalf("Reserve() unexpected error: %v", err)
			}
			if loc.ReservedQty != tt.wantReserved {
				t.Errorf("ReservedQty = %d, want %d", loc.ReservedQty, tt.wantReserved)
			}
			if loc.OnHandQty != tt.onHand {
				t.Errorf("OnHandQty = %d, want unchanged %d", loc.OnHandQty, tt.onHand)
			}
			if len(loc.GetDomainEvents()) != 1 {
				t.Fatalf("Reserve() emitted %d events, want 1", len(loc.GetDomainEvents()))
			}
			if _, ok := loc.GetDomainEvents()[0].(*StockReservedEvent); !ok {
				t.Errorf("event type = %T, want *StockReservedEvent", loc.GetDomainEvents()[0])
			}
		})
	}
}

func TestLocationInventoryRelease(t *testing.T) {
	tests := []struct {
		name         string
		onHand       int
		reserved     int
		qty          int
		wantErr      error
		wantReserved int
	}{
		{name: "releases partial", onHand: 10, reserved: 6, qty: 4, wantReserved: 2},
		{name: "releases all", onHand: 10, reserved: 6, qty: 6, wantReserved: 0},
		{name: "rejects over-release", onHand: 10, reserved: 3, qty: 4, wantErr: ErrOverRelease},
		{name: "rejects release with nothing reserved", onHand: 10, reserved: 0, qty: 1, wantErr: ErrOverRelease},
		{name: "rejects zero", onHand: 10, reserved: 5, qty: 0, wantErr: ErrInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := newTestLocation(t, tt.onHand, tt.reserved)

			err := loc.Release(tt.qty, "tester", "order cancelled")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Release() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Release() unexpected error: %v", err)
			}
			if loc.ReservedQty != tt.wantReserved {
				t.Errorf("ReservedQty = %d, want %d", loc.ReservedQty, tt.wantReserved)
			}
			if loc.OnHandQty != tt.onHand {
				t.Errorf("OnHandQty = %d, want unchanged %d", loc.OnHandQty, tt.onHand)
			}
		})
	}
}

func TestLocationInventoryConsume(t *testing.T) {
	loc := newTestLocation(t, 10, 6)

	if err := loc.Consume(6, "picker"); err != nil {
		t.Fatalf("Consume() unexpected error: %v", err)
	}
	if loc.OnHandQty != 4 || loc.ReservedQty != 0 {
		t.Errorf("after Consume: onHand=%d reserved=%d, want 4/0", loc.OnHandQty, loc.ReservedQty)
	}

	if err := loc.Consume(1, "picker"); !errors.Is(err, ErrOverRelease) {
		t.Errorf("Consume() beyond reserved error = %v, want %v", err, ErrOverRelease)
	}
}

func TestLocationInventoryConsumeToZeroFlipsStatus(t *testing.T) {
	loc := newTestLocation(t, 5, 5)

	if err := loc.Consume(5, "picker"); err != nil {
		t.Fatalf("Consume() unexpected error: %v", err)
	}
	if loc.Status != LocationStatusOutOfStock {
		t.Errorf("Status = %s, want %s", loc.Status, LocationStatusOutOfStock)
	}
}

func TestLocationInventoryAdjustTo(t *testing.T) {
	tests := []struct {
		name      string
		onHand    int
		reserved  int
		newOnHand int
		wantErr   error
		wantDelta int
	}{
		{name: "count up", onHand: 10, reserved: 2, newOnHand: 14, wantDelta: 4},
		{name: "count down above reserved", onHand: 10, reserved: 2, newOnHand: 2, wantDelta: -8},
		{name: "rejects below reserved", onHand: 10, reserved: 5, newOnHand: 4, wantErr: ErrAdjustBelowReserved},
		{name: "rejects negative", onHand: 10, reserved: 0, newOnHand: -1, wantErr: ErrInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := newTestLocation(t, tt.onHand, tt.reserved)

			delta, err := loc.AdjustTo(tt.newOnHand, "counter", "cycle count")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("AdjustTo() error = %v, want %v", err, tt.wantErr)
				}
				if loc.OnHandQty != tt.onHand {
					t.Errorf("OnHandQty = %d changed on failure, want %d", loc.OnHandQty, tt.onHand)
				}
				return
			}
			if err != nil {
				t.Fatalf("AdjustTo() unexpected error: %v", err)
			}
			if delta != tt.wantDelta {
				t.Errorf("delta = %d, want %d", delta, tt.wantDelta)
			}
			if loc.OnHandQty != tt.newOnHand {
				t.Errorf("OnHandQty = %d, want %d", loc.OnHandQty, tt.newOnHand)
			}
		})
	}
}

func TestLocationInventoryAdjustToZeroFlipsStatus(t *testing.T) {
	loc := newTestLocation(t, 10, 0)

	if _, err := loc.AdjustTo(0, "counter", "shrinkage"); err != nil {
		t.Fatalf("AdjustTo() unexpected error: %v", err)
	}
	if loc.Status != LocationStatusOutOfStock {
		t.Errorf("Status = %s, want %s", loc.Status, LocationStatusOutOfStock)
	}

	if _, err := loc.AdjustTo(7, "counter", "found stock"); err != nil {
		t.Fatalf("AdjustTo() unexpected error: %v", err)
	}
	if loc.Status != LocationStatusInStock {
		t.Errorf("Status = %s, want %s", loc.Status, LocationStatusInStock)
	}
}

func TestLocationStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    LocationStatus
		to      LocationStatus
		wantErr bool
	}{
		{name: "unassigned to in_stock", from: LocationStatusUnassigned, to: LocationStatusInStock},
		{name: "in_stock to suspended", from: LocationStatusInStock, to: LocationStatusSuspended},
		{name: "suspended back to in_stock", from: LocationStatusSuspended, to: LocationStatusInStock},
		{name: "out_of_stock to in_stock", from: LocationStatusOutOfStock, to: LocationStatusInStock},
		{name: "in_stock to unassigned rejected", from: LocationStatusInStock, to: LocationStatusUnassigned, wantErr: true},
		{name: "out_of_stock to unassigned rejected", from: LocationStatusOutOfStock, to: LocationStatusUnassigned, wantErr: true},
		{name: "unknown target rejected", from: LocationStatusInStock, to: LocationStatus("archived"), wantErr: true},
		{name: "same status is a no-op", from: LocationStatusInStock, to: LocationStatusInStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := newTestLocation(t, 10, 0)
			loc.Status = tt.from

			err := loc.ChangeStatus(tt.to)
			if tt.wantErr {
				var transitionErr *StatusTransitionError
				if !errors.As(err, &transitionErr) {
					t.Fatalf("ChangeStatus() error = %v, want *StatusTransitionError", err)
				}
				if loc.Status != tt.from {
					t.Errorf("Status = %s changed on failure, want %s", loc.Status, tt.from)
				}
				return
			}
			if err != nil {
				t.Fatalf("ChangeStatus() unexpected error: %v", err)
			}
			if loc.Status != tt.to {
				t.Errorf("Status = %s, want %s", loc.Status, tt.to)
			}
		})
	}
}

func TestWarehouseInventoryMirrorsLedger(t *testing.T) {
	wh, err := NewWarehouseInventory("WH-1", "BAT-1", "SKU-1", 30, 0.15)
	if err != nil {
		t.Fatalf("NewWarehouseInventory() unexpected error: %v", err)
	}

	if err := wh.ApplyReserve(10); err != nil {
		t.Fatalf("ApplyReserve() unexpected error: %v", err)
	}
	if err := wh.ApplyConsume(4); err != nil {
		t.Fatalf("ApplyConsume() unexpected error: %v", err)
	}
	if err := wh.ApplyRelease(6); err != nil {
		t.Fatalf("ApplyRelease() unexpected error: %v", err)
	}

	if wh.TotalQty != 26 || wh.ReservedQty != 0 {
		t.Errorf("aggregate = %d/%d, want 26/0", wh.TotalQty, wh.ReservedQty)
	}

	if err := wh.ApplyRelease(1); !errors.Is(err, ErrOverRelease) {
		t.Errorf("ApplyRelease() error = %v, want %v", err, ErrOverRelease)
	}
	if err := wh.ApplyReserve(27); !errors.Is(err, ErrInsufficientStock) {
		t.Errorf("ApplyReserve() error = %v, want %v", err, ErrInsufficientStock)
	}

	if err := wh.Matches(26, 0); err != nil {
		t.Errorf("Matches() unexpected error: %v", err)
	}
	if err := wh.Matches(25, 0); !errors.Is(err, ErrAggregateMismatch) {
		t.Errorf("Matches() error = %v, want %v", err, ErrAggregateMismatch)
	}
}
