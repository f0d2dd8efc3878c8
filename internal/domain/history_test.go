package domain

import (
	"errors"
	"testing"
)

func TestNewHistoryEntry(t *testing.T) {
	tests := []struct {
		name     string
		targetID string
		action   HistoryActionType
		prev     int
		delta    int
		next     int
		actor    string
		wantErr  bool
	}{
		{name: "allocate entry", targetID: "LOC-A", action: HistoryActionAllocate, prev: 10, delta: 5, next: 15, actor: "coordinator"},
		{name: "negative delta", targetID: "LOC-A", action: HistoryActionConfirm, prev: 10, delta: -4, next: 6, actor: "picker"},
		{name: "unbalanced quantities", targetID: "LOC-A", action: HistoryActionAllocate, prev: 10, delta: 5, next: 16, actor: "x", wantErr: true},
		{name: "missing target", action: HistoryActionAllocate, prev: 0, delta: 1, next: 1, actor: "x", wantErr: true},
		{name: "missing actor", targetID: "LOC-A", action: HistoryActionAllocate, prev: 0, delta: 1, next: 1, wantErr: true},
		{name: "unknown action", targetID: "LOC-A", action: HistoryActionType("merge"), prev: 0, delta: 1, next: 1, actor: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := NewHistoryEntry(HistoryTargetLocation, tt.targetID, tt.action, tt.prev, tt.delta, tt.next, tt.actor, "", nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewHistoryEntry() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewHistoryEntry() unexpected error: %v", err)
			}
			if entry.Checksum == "" {
				t.Error("Checksum not set")
			}
			if err := entry.Verify(); err != nil {
				t.Errorf("Verify() on fresh entry: %v", err)
			}
		})
	}
}

func TestHistoryEntryVerifyDetectsTampering(t *testing.T) {
	entry, err := NewHistoryEntry(HistoryTargetLocation, "LOC-A", HistoryActionAllocate, 10, 5, 15, "coordinator", "", nil)
	if err != nil {
		t.Fatalf("NewHistoryEntry() unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		tamper func(*HistoryEntry)
	}{
		{name: "quantity rewritten", tamper: func(e *HistoryEntry) { e.NewQty = 14 }},
		{name: "delta rewritten", tamper: func(e *HistoryEntry) { e.Delta = 4 }},
		{name: "actor rewritten", tamper: func(e *HistoryEntry) { e.Actor = "intruder" }},
		{name: "action rewritten", tamper: func(e *HistoryEntry) { e.ActionType = HistoryActionManualAdjust }},
		{name: "checksum rewritten", tamper: func(e *HistoryEntry) { e.Checksum = "deadbeef" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tampered := *entry
			tt.tamper(&tampered)
			if err := tampered.Verify(); !errors.Is(err, ErrChecksumMismatch) {
				t.Errorf("Verify() error = %v, want %v", err, ErrChecksumMismatch)
			}
		})
	}
}

func TestHistoryEntryChecksumIgnoresAnnotations(t *testing.T) {
	entry, err := NewHistoryEntry(HistoryTargetWarehouse, "WH-1:BAT-1", HistoryActionRelease, 20, 3, 23, "workflow", "order cancelled", map[string]string{"orderId": "ORD-1"})
	if err != nil {
		t.Fatalf("NewHistoryEntry() unexpected error: %v", err)
	}

	entry.Reason = "rewritten"
	entry.Metadata["orderId"] = "ORD-2"

	if err := entry.Verify(); err != nil {
		t.Errorf("Verify() after annotation change: %v", err)
	}
}
