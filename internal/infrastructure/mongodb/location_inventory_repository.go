package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wms-platform/allocation-service/internal/domain"
)

// LocationInventoryRepository reads location rows outside ledger transactions
type LocationInventoryRepository struct {
	collection *mongo.Collection
}

// NewLocationInventoryRepository creates a new LocationInventoryRepository
func NewLocationInventoryRepository(db *mongo.Database) *LocationInventoryRepository {
	return &LocationInventoryRepository{collection: db.Collection(collLocations)}
}

func (r *LocationInventoryRepository) FindByBatchAndLocation(ctx context.Context, batchID, locationID string) (*domain.LocationInventory, error) {
	var row domain.LocationInventory
	err := r.collection.FindOne(ctx, bson.M{"batchId": batchID, "locationId": locationID}).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrLocationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find location row: %w", err)
	}
	return &row, nil
}

// candidateDoc is the shape produced by the candidate aggregation: an
// in_stock location row joined with its batch metadata.
type candidateDoc struct {
	BatchID     string     `bson:"batchId"`
	LocationID  string     `bson:"locationId"`
	OnHandQty   int        `bson:"onHandQty"`
	ReservedQty int        `bson:"reservedQty"`
	Batch       struct {
		ItemRef    string     `bson:"itemRef"`
		LotNumber  string     `bson:"lotNumber"`
		MfgDate    time.Time  `bson:"mfgDate"`
		ExpiryDate *time.Time `bson:"expiryDate"`
		ReceivedAt time.Time  `bson:"receivedAt"`
	} `bson:"batch"`
}

// FindCandidates returns the selectable snapshot for one item in one
// warehouse: in_stock rows joined with their batch metadata. The snapshot is
// immutable; the ledger re-checks quantities when reservations commit.
func (r *LocationInventoryRepository) FindCandidates(ctx context.Context, itemRef, warehouseID string) ([]domain.BatchCandidate, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"warehouseId": warehouseID,
			"status":      string(domain.LocationStatusInStock),
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         collBatches,
			"localField":   "batchId",
			"foreignField": "batchId",
			"as":           "batch",
		}}},
		{{Key: "$unwind", Value: "$batch"}},
		{{Key: "$match", Value: bson.M{"batch.itemRef": itemRef}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []candidateDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode candidates: %w", err)
	}

	candidates := make([]domain.BatchCandidate, 0, len(docs))
	for _, doc := range docs {
		available := doc.OnHandQty - doc.ReservedQty
		if available <= 0 {
			continue
		}
		candidates = append(candidates, domain.BatchCandidate{
			BatchID:    doc.BatchID,
			ItemRef:    doc.Batch.ItemRef,
			LotNumber:  doc.Batch.LotNumber,
			LocationID: doc.LocationID,
			MfgDate:    doc.Batch.MfgDate,
			ExpiryDate: doc.Batch.ExpiryDate,
			ReceivedAt: doc.Batch.ReceivedAt,
			Available:  available,
		})
	}
	return candidates, nil
}
