package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/allocation-service/internal/domain"
)

// HistoryRepository reads the append-only audit trail. Entries are written
// only inside ledger transactions, so this repository has no write path.
type HistoryRepository struct {
	collection *mongo.Collection
}

// NewHistoryRepository creates a new HistoryRepository
func NewHistoryRepository(db *mongo.Database) *HistoryRepository {
	return &HistoryRepository{collection: db.Collection(collHistory)}
}

func (r *HistoryRepository) ListByTarget(ctx context.Context, targetID string, page, limit int) ([]*domain.HistoryEntry, int64, error) {
	filter := bson.M{"targetId": targetID}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count history entries: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "occurredAt", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find history entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*domain.HistoryEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
