package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoRepo "github.com/wms-platform/allocation-service/internal/infrastructure/mongodb"
	"github.com/wms-platform/allocation-service/pkg/cloudevents"
)

// Migration tool for the allocation ledger: creates the collection indexes
// and optionally rebuilds the warehouse aggregates from the location rows.

var (
	mongoURI  = flag.String("mongo-uri", "mongodb://localhost:27017", "MongoDB connection URI")
	dbName    = flag.String("db", "allocation_db", "Database name")
	rebuild   = flag.Bool("rebuild-aggregates", false, "Recompute warehouse aggregates from location rows")
	dryRun    = flag.Bool("dry-run", true, "Dry run mode (no actual writes)")
	timeoutMs = flag.Int("timeout-ms", 60000, "Overall timeout in milliseconds")
)

func main() {
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeoutMs)*time.Millisecond)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(*mongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(ctx)

	if err := client.Ping(ctx, nil); err != nil {
		log.Fatalf("Failed to ping MongoDB: %v", err)
	}
	db := client.Database(*dbName)

	log.Printf("Connected to %s/%s (dry-run=%v)", *mongoURI, *dbName, *dryRun)

	if *dryRun {
		log.Println("Dry run: indexes would be created for batches, location_inventory, warehouse_inventory, inventory_history, allocations, outbox_events")
	} else {
		store := mongoRepo.NewLedgerStore(db, cloudevents.NewEventFactory("allocation-migrate"))
		if err := store.EnsureIndexes(ctx); err != nil {
			log.Fatalf("Failed to create ledger indexes: %v", err)
		}
		if err := mongoRepo.NewAllocationRepository(db).EnsureIndexes(ctx); err != nil {
			log.Fatalf("Failed to create allocation indexes: %v", err)
		}
		log.Println("Indexes created")
	}

	if *rebuild {
		if err := rebuildAggregates(ctx, db, *dryRun); err != nil {
			log.Fatalf("Aggregate rebuild failed: %v", err)
		}
	}

	log.Println("Migration complete")
}

// rebuildAggregates recomputes every warehouse aggregate from the location
// rows. Run it only while the API is stopped; it bypasses the ledger
// transactions.
func rebuildAggregates(ctx context.Context, db *mongo.Database, dryRun bool) error {
	cursor, err := db.Collection("location_inventory").Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":      bson.M{"warehouseId": "$warehouseId", "batchId": "$batchId"},
			"onHand":   bson.M{"$sum": "$onHandQty"},
			"reserved": bson.M{"$sum": "$reservedQty"},
		}}},
	})
	if err != nil {
		return fmt.Errorf("failed to sum location rows: %w", err)
	}
	defer cursor.Close(ctx)

	type groupRow struct {
		ID struct {
			WarehouseID string `bson:"warehouseId"`
			BatchID     string `bson:"batchId"`
		} `bson:"_id"`
		OnHand   int `bson:"onHand"`
		Reserved int `bson:"reserved"`
	}

	rebuilt := 0
	for cursor.Next(ctx) {
		var row groupRow
		if err := cursor.Decode(&row); err != nil {
			return fmt.Errorf("failed to decode group row: %w", err)
		}

		if dryRun {
			log.Printf("Would set warehouse %s batch %s to totalQty=%d reservedQty=%d",
				row.ID.WarehouseID, row.ID.BatchID, row.OnHand, row.Reserved)
			continue
		}

		res, err := db.Collection("warehouse_inventory").UpdateOne(ctx,
			bson.M{"warehouseId": row.ID.WarehouseID, "batchId": row.ID.BatchID},
			bson.M{"$set": bson.M{
				"totalQty":    row.OnHand,
				"reservedQty": row.Reserved,
				"updatedAt":   time.Now(),
			}})
		if err != nil {
			return fmt.Errorf("failed to update aggregate %s/%s: %w", row.ID.WarehouseID, row.ID.BatchID, err)
		}
		if res.MatchedCount == 0 {
			log.Printf("WARNING: no aggregate row for warehouse %s batch %s, location rows are orphaned",
				row.ID.WarehouseID, row.ID.BatchID)
			continue
		}
		rebuilt++
	}
	if err := cursor.Err(); err != nil {
		return err
	}

	log.Printf("Rebuilt %d warehouse aggregates", rebuilt)
	return nil
}
