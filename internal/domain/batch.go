package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ItemType distinguishes sellable products from packaging materials
type ItemType string

const (
	ItemTypeProduct   ItemType = "product"
	ItemTypePackaging ItemType = "packaging_material"
)

// IsValid checks if the item type is valid
func (t ItemType) IsValid() bool {
	return t == ItemTypeProduct || t == ItemTypePackaging
}

// Batch represents a received lot of a single item. Batches are immutable;
// quantities live on the location and warehouse inventory rows.
type Batch struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	BatchID    string             `bson:"batchId"`
	ItemRef    string             `bson:"itemRef"`
	ItemType   ItemType           `bson:"itemType"`
	LotNumber  string             `bson:"lotNumber"`
	MfgDate    time.Time          `bson:"mfgDate"`
	ExpiryDate *time.Time         `bson:"expiryDate,omitempty"`
	ReceivedAt time.Time          `bson:"receivedAt"`
	CreatedAt  time.Time          `bson:"createdAt"`
}

// NewBatch creates a batch record for an initial stock load
func NewBatch(itemRef string, itemType ItemType, lotNumber string, mfgDate time.Time, expiryDate *time.Time) (*Batch, error) {
	if itemRef == "" {
		return nil, ErrInvalidItemRef
	}
	if !itemType.IsValid() {
		return nil, fmt.Errorf("invalid item type: %s", itemType)
	}
	if expiryDate != nil && expiryDate.Before(mfgDate) {
		return nil, fmt.Errorf("expiry date %s precedes manufacturing date %s",
			expiryDate.Format(time.DateOnly), mfgDate.Format(time.DateOnly))
	}

	now := time.Now()
	return &Batch{
		BatchID:    NewBatchID(),
		ItemRef:    itemRef,
		ItemType:   itemType,
		LotNumber:  lotNumber,
		MfgDate:    mfgDate,
		ExpiryDate: expiryDate,
		ReceivedAt: now,
		CreatedAt:  now,
	}, nil
}

// IsExpiredAt reports whether the batch is past its expiry date.
// Batches without an expiry date never expire.
func (b *Batch) IsExpiredAt(t time.Time) bool {
	return b.ExpiryDate != nil && b.ExpiryDate.Before(t)
}

// NewBatchID generates a unique batch identifier
func NewBatchID() string {
	return fmt.Sprintf("BAT-%d-%s", time.Now().UnixNano(), uuid.New().String()[:8])
}
