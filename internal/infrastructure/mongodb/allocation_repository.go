package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/allocation-service/internal/domain"
)

const collAllocations = "allocations"

// AllocationRepository persists order allocation lines
type AllocationRepository struct {
	collection *mongo.Collection
}

// NewAllocationRepository creates a new AllocationRepository
func NewAllocationRepository(db *mongo.Database) *AllocationRepository {
	return &AllocationRepository{collection: db.Collection(collAllocations)}
}

// Save upserts by allocationId so state transitions overwrite the stored line
func (r *AllocationRepository) Save(ctx context.Context, allocation *domain.Allocation) error {
	filter := bson.M{"allocationId": allocation.AllocationID}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, filter, allocation, opts); err != nil {
		return fmt.Errorf("failed to save allocation: %w", err)
	}
	return nil
}

func (r *AllocationRepository) FindByAllocationID(ctx context.Context, allocationID string) (*domain.Allocation, error) {
	var allocation domain.Allocation
	err := r.collection.FindOne(ctx, bson.M{"allocationId": allocationID}).Decode(&allocation)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrAllocationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find allocation: %w", err)
	}
	return &allocation, nil
}

func (r *AllocationRepository) FindByOrderID(ctx context.Context, orderID string) ([]*domain.Allocation, error) {
	return r.findAll(ctx, bson.M{"orderId": orderID})
}

func (r *AllocationRepository) FindActiveByOrderID(ctx context.Context, orderID string) ([]*domain.Allocation, error) {
	filter := bson.M{
		"orderId": orderID,
		"status": bson.M{"$in": []domain.AllocationStatus{
			domain.AllocationStatusAllocated,
			domain.AllocationStatusConfirmed,
		}},
	}
	return r.findAll(ctx, filter)
}

func (r *AllocationRepository) findAll(ctx context.Context, filter bson.M) ([]*domain.Allocation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find allocations: %w", err)
	}
	defer cursor.Close(ctx)

	var allocations []*domain.Allocation
	if err := cursor.All(ctx, &allocations); err != nil {
		return nil, err
	}
	return allocations, nil
}

// EnsureIndexes creates the allocation collection indexes
func (r *AllocationRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "allocationId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "orderId", Value: 1}, {Key: "status", Value: 1}},
		},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create allocation indexes: %w", err)
	}
	return nil
}
