package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HistoryTargetType identifies which ledger row a history entry describes
type HistoryTargetType string

const (
	HistoryTargetLocation  HistoryTargetType = "location"
	HistoryTargetWarehouse HistoryTargetType = "warehouse"
)

// HistoryActionType classifies the ledger mutation behind a history entry
type HistoryActionType string

const (
	HistoryActionInitialLoad  HistoryActionType = "initial_load"
	HistoryActionAllocate     HistoryActionType = "allocate"
	HistoryActionRelease      HistoryActionType = "release"
	HistoryActionConfirm      HistoryActionType = "confirm"
	HistoryActionManualAdjust HistoryActionType = "manual_adjust"
)

// IsValid checks if the action type is valid
func (a HistoryActionType) IsValid() bool {
	switch a {
	case HistoryActionInitialLoad, HistoryActionAllocate, HistoryActionRelease,
		HistoryActionConfirm, HistoryActionManualAdjust:
		return true
	}
	return false
}

// HistoryEntry is an append-only audit record of one ledger mutation. It is
// written in the same transaction as the mutation itself, so the trail can
// never disagree with the quantities. The checksum seals the immutable
// fields; Verify detects after-the-fact tampering.
type HistoryEntry struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	EntryID    string             `bson:"entryId"`
	TargetType HistoryTargetType  `bson:"targetType"`
	TargetID   string             `bson:"targetId"`
	ActionType HistoryActionType  `bson:"actionType"`
	PrevQty    int                `bson:"prevQty"`
	Delta      int                `bson:"delta"`
	NewQty     int                `bson:"newQty"`
	Actor      string             `bson:"actor"`
	Reason     string             `bson:"reason,omitempty"`
	Metadata   map[string]string  `bson:"metadata,omitempty"`
	OccurredAt time.Time          `bson:"occurredAt"`
	Checksum   string             `bson:"checksum"`
}

// NewHistoryEntry builds a sealed audit record for a ledger mutation
func NewHistoryEntry(targetType HistoryTargetType, targetID string, action HistoryActionType, prevQty, delta, newQty int, actor, reason string, metadata map[string]string) (*HistoryEntry, error) {
	if targetID == "" {
		return nil, fmt.Errorf("history target ID is required")
	}
	if !action.IsValid() {
		return nil, fmt.Errorf("invalid history action type: %s", action)
	}
	if actor == "" {
		return nil, ErrInvalidActor
	}
	if prevQty+delta != newQty {
		return nil, fmt.Errorf("history quantities do not balance: %d%+d != %d", prevQty, delta, newQty)
	}

	entry := &HistoryEntry{
		EntryID:    fmt.Sprintf("HIS-%d-%s", time.Now().UnixNano(), uuid.New().String()[:8]),
		TargetType: targetType,
		TargetID:   targetID,
		ActionType: action,
		PrevQty:    prevQty,
		Delta:      delta,
		NewQty:     newQty,
		Actor:      actor,
		Reason:     reason,
		Metadata:   metadata,
		OccurredAt: time.Now().UTC(),
	}
	entry.Checksum = entry.computeChecksum()
	return entry, nil
}

// Verify recomputes the checksum over the immutable fields
func (h *HistoryEntry) Verify() error {
	if h.computeChecksum() != h.Checksum {
		return ErrChecksumMismatch
	}
	return nil
}

// computeChecksum hashes the immutable tuple. Metadata and reason are
// deliberately excluded: they are annotations, not quantities.
func (h *HistoryEntry) computeChecksum() string {
	payload := fmt.Sprintf("%s|%s|%s|%s|%d|%d|%d|%s|%d",
		h.EntryID, h.TargetType, h.TargetID, h.ActionType,
		h.PrevQty, h.Delta, h.NewQty, h.Actor, h.OccurredAt.UnixNano())
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
