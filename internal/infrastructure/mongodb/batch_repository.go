package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wms-platform/allocation-service/internal/domain"
)

// BatchRepository persists immutable batch records
type BatchRepository struct {
	collection *mongo.Collection
}

// NewBatchRepository creates a new BatchRepository
func NewBatchRepository(db *mongo.Database) *BatchRepository {
	return &BatchRepository{collection: db.Collection(collBatches)}
}

func (r *BatchRepository) Save(ctx context.Context, batch *domain.Batch) error {
	if _, err := r.collection.InsertOne(ctx, batch); err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}
	return nil
}

func (r *BatchRepository) FindByBatchID(ctx context.Context, batchID string) (*domain.Batch, error) {
	var batch domain.Batch
	err := r.collection.FindOne(ctx, bson.M{"batchId": batchID}).Decode(&batch)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find batch: %w", err)
	}
	return &batch, nil
}

func (r *BatchRepository) FindByItemRef(ctx context.Context, itemRef string) ([]*domain.Batch, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"itemRef": itemRef})
	if err != nil {
		return nil, fmt.Errorf("failed to find batches: %w", err)
	}
	defer cursor.Close(ctx)

	var batches []*domain.Batch
	if err := cursor.All(ctx, &batches); err != nil {
		return nil, err
	}
	return batches, nil
}
