package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wms-platform/allocation-service/internal/domain"
)

// WarehouseInventoryRepository reads the materialized warehouse aggregates
type WarehouseInventoryRepository struct {
	collection *mongo.Collection
}

// NewWarehouseInventoryRepository creates a new WarehouseInventoryRepository
func NewWarehouseInventoryRepository(db *mongo.Database) *WarehouseInventoryRepository {
	return &WarehouseInventoryRepository{collection: db.Collection(collWarehouses)}
}

func (r *WarehouseInventoryRepository) FindByWarehouseAndBatch(ctx context.Context, warehouseID, batchID string) (*domain.WarehouseInventory, error) {
	var warehouse domain.WarehouseInventory
	err := r.collection.FindOne(ctx, bson.M{"warehouseId": warehouseID, "batchId": batchID}).Decode(&warehouse)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrLocationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find warehouse aggregate: %w", err)
	}
	return &warehouse, nil
}

func (r *WarehouseInventoryRepository) FindByItemRef(ctx context.Context, itemRef string) ([]*domain.WarehouseInventory, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"itemRef": itemRef})
	if err != nil {
		return nil, fmt.Errorf("failed to find warehouse aggregates: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []*domain.WarehouseInventory
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListPairs returns every (warehouseId, batchId) pair, used by the
// consistency monitor to scan the whole fleet.
func (r *WarehouseInventoryRepository) ListPairs(ctx context.Context) ([]domain.WarehouseBatchPair, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list warehouse aggregates: %w", err)
	}
	defer cursor.Close(ctx)

	var pairs []domain.WarehouseBatchPair
	for cursor.Next(ctx) {
		var row domain.WarehouseInventory
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		pairs = append(pairs, domain.WarehouseBatchPair{WarehouseID: row.WarehouseID, BatchID: row.BatchID})
	}
	return pairs, cursor.Err()
}
