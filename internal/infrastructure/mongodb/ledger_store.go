package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/wms-platform/allocation-service/internal/domain"
	"github.com/wms-platform/allocation-service/pkg/cloudevents"
	"github.com/wms-platform/allocation-service/pkg/kafka"
	pkgmongo "github.com/wms-platform/allocation-service/pkg/mongodb"
	"github.com/wms-platform/allocation-service/pkg/outbox"
	outboxMongo "github.com/wms-platform/allocation-service/pkg/outbox/mongodb"
)

const (
	collBatches    = "batches"
	collLocations  = "location_inventory"
	collWarehouses = "warehouse_inventory"
	collHistory    = "inventory_history"
)

// LedgerStore is the transactional quantity ledger. Every mutation runs in a
// single MongoDB multi-document transaction covering the location row, the
// warehouse aggregate, the history entry and the outbox events. The location
// update is guarded by the row version loaded at the start of the
// transaction; a guard miss or write conflict surfaces as a retryable lock
// timeout and never as a partial write.
type LedgerStore struct {
	db           *mongo.Database
	batches      *mongo.Collection
	locations    *mongo.Collection
	warehouses   *mongo.Collection
	history      *mongo.Collection
	outboxRepo   *outboxMongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
}

// NewLedgerStore creates a ledger store on the given database
func NewLedgerStore(db *mongo.Database, eventFactory *cloudevents.EventFactory) *LedgerStore {
	return &LedgerStore{
		db:           db,
		batches:      db.Collection(collBatches),
		locations:    db.Collection(collLocations),
		warehouses:   db.Collection(collWarehouses),
		history:      db.Collection(collHistory),
		outboxRepo:   outboxMongo.NewOutboxRepository(db),
		eventFactory: eventFactory,
	}
}

// RegisterBatch performs an initial stock load: batch record, location row,
// warehouse aggregate and the initial_load audit entry in one transaction.
func (s *LedgerStore) RegisterBatch(ctx context.Context, batch *domain.Batch, locationID, warehouseID string, qty int, storageFee float64, actor string) error {
	row, err := domain.NewLocationInventory(batch.BatchID, locationID, warehouseID, qty)
	if err != nil {
		return err
	}
	warehouse, err := domain.NewWarehouseInventory(warehouseID, batch.BatchID, batch.ItemRef, qty, storageFee)
	if err != nil {
		return err
	}
	if actor == "" {
		return domain.ErrInvalidActor
	}

	return s.withTxn(ctx, func(sessCtx mongo.SessionContext) error {
		if _, err := s.batches.InsertOne(sessCtx, batch); err != nil {
			return fmt.Errorf("failed to insert batch: %w", err)
		}
		if _, err := s.locations.InsertOne(sessCtx, row); err != nil {
			return fmt.Errorf("failed to insert location row: %w", err)
		}
		if _, err := s.warehouses.InsertOne(sessCtx, warehouse); err != nil {
			return fmt.Errorf("failed to insert warehouse aggregate: %w", err)
		}

		entry, err := domain.NewHistoryEntry(domain.HistoryTargetLocation, historyTarget(batch.BatchID, locationID),
			domain.HistoryActionInitialLoad, 0, qty, qty, actor, "",
			map[string]string{"field": "onHandQty", "warehouseId": warehouseID, "itemRef": batch.ItemRef})
		if err != nil {
			return err
		}
		if err := s.appendHistory(sessCtx, entry); err != nil {
			return err
		}

		event := s.eventFactory.CreateStockRegisteredEvent(sessCtx, cloudevents.StockRegisteredData{
			BatchID:     batch.BatchID,
			ItemRef:     batch.ItemRef,
			LotNumber:   batch.LotNumber,
			LocationID:  locationID,
			WarehouseID: warehouseID,
			Quantity:    qty,
			Actor:       actor,
		})
		return s.saveCloudEvent(sessCtx, batch.BatchID, event)
	})
}

// Reserve earmarks quantity at a location for an allocation
func (s *LedgerStore) Reserve(ctx context.Context, batchID, locationID string, qty int, actor string) error {
	return s.withTxn(ctx, func(sessCtx mongo.SessionContext) error {
		row, version, err := s.loadRow(sessCtx, batchID, locationID)
		if err != nil {
			return err
		}
		prevReserved := row.ReservedQty
		if err := row.Reserve(qty, actor); err != nil {
			return err
		}

		warehouse, err := s.loadWarehouse(sessCtx, row.WarehouseID, batchID)
		if err != nil {
			return err
		}
		if err := warehouse.ApplyReserve(qty); err != nil {
			return err
		}

		if err := s.commitPair(sessCtx, row, version, warehouse); err != nil {
			return err
		}

		entry, err := domain.NewHistoryEntry(domain.HistoryTargetLocation, historyTarget(batchID, locationID),
			domain.HistoryActionAllocate, prevReserved, qty, row.ReservedQty, actor, "",
			map[string]string{"field": "reservedQty", "warehouseId": row.WarehouseID})
		if err != nil {
			return err
		}
		if err := s.appendHistory(sessCtx, entry); err != nil {
			return err
		}

		return s.saveRowEvents(sessCtx, row)
	})
}

// Release returns previously reserved quantity to available
func (s *LedgerStore) Release(ctx context.Context, batchID, locationID string, qty int, actor, reason string) error {
	return s.withTxn(ctx, func(sessCtx mongo.SessionContext) error {
		row, version, err := s.loadRow(sessCtx, batchID, locationID)
		if err != nil {
			return err
		}
		prevReserved := row.ReservedQty
		if err := row.Release(qty, actor, reason); err != nil {
			return err
		}

		warehouse, err := s.loadWarehouse(sessCtx, row.WarehouseID, batchID)
		if err != nil {
			return err
		}
		if err := warehouse.ApplyRelease(qty); err != nil {
			return err
		}

		if err := s.commitPair(sessCtx, row, version, warehouse); err != nil {
			return err
		}

		entry, err := domain.NewHistoryEntry(domain.HistoryTargetLocation, historyTarget(batchID, locationID),
			domain.HistoryActionRelease, prevReserved, -qty, row.ReservedQty, actor, reason,
			map[string]string{"field": "reservedQty", "warehouseId": row.WarehouseID})
		if err != nil {
			return err
		}
		if err := s.appendHistory(sessCtx, entry); err != nil {
			return err
		}

		return s.saveRowEvents(sessCtx, row)
	})
}

// ConfirmConsumption converts reserved quantity into an on-hand decrement
func (s *LedgerStore) ConfirmConsumption(ctx context.Context, batchID, locationID string, qty int, actor string) error {
	return s.withTxn(ctx, func(sessCtx mongo.SessionContext) error {
		row, version, err := s.loadRow(sessCtx, batchID, locationID)
		if err != nil {
			return err
		}
		prevOnHand := row.OnHandQty
		if err := row.Consume(qty, actor); err != nil {
			return err
		}

		warehouse, err := s.loadWarehouse(sessCtx, row.WarehouseID, batchID)
		if err != nil {
			return err
		}
		if err := warehouse.ApplyConsume(qty); err != nil {
			return err
		}

		if err := s.commitPair(sessCtx, row, version, warehouse); err != nil {
			return err
		}

		entry, err := domain.NewHistoryEntry(domain.HistoryTargetLocation, historyTarget(batchID, locationID),
			domain.HistoryActionConfirm, prevOnHand, -qty, row.OnHandQty, actor, "",
			map[string]string{"field": "onHandQty", "warehouseId": row.WarehouseID})
		if err != nil {
			return err
		}
		if err := s.appendHistory(sessCtx, entry); err != nil {
			return err
		}

		return s.saveRowEvents(sessCtx, row)
	})
}

// Restock adds consumed quantity back to on-hand
func (s *LedgerStore) Restock(ctx context.Context, batchID, locationID string, qty int, actor, reason string) error {
	return s.withTxn(ctx, func(sessCtx mongo.SessionContext) error {
		row, version, err := s.loadRow(sessCtx, batchID, locationID)
		if err != nil {
			return err
		}
		prevOnHand := row.OnHandQty
		if err := row.Restock(qty, actor, reason); err != nil {
			return err
		}

		warehouse, err := s.loadWarehouse(sessCtx, row.WarehouseID, batchID)
		if err != nil {
			return err
		}
		if err := warehouse.ApplyDelta(qty); err != nil {
			return err
		}

		if err := s.commitPair(sessCtx, row, version, warehouse); err != nil {
			return err
		}

		entry, err := domain.NewHistoryEntry(domain.HistoryTargetLocation, historyTarget(batchID, locationID),
			domain.HistoryActionManualAdjust, prevOnHand, qty, row.OnHandQty, actor, reason,
			map[string]string{"field": "onHandQty", "warehouseId": row.WarehouseID})
		if err != nil {
			return err
		}
		if err := s.appendHistory(sessCtx, entry); err != nil {
			return err
		}

		return s.saveRowEvents(sessCtx, row)
	})
}

// Adjust sets the on-hand quantity to an absolute counted value
func (s *LedgerStore) Adjust(ctx context.Context, batchID, locationID string, newOnHand int, actor, reason string) error {
	return s.withTxn(ctx, func(sessCtx mongo.SessionContext) error {
		row, version, err := s.loadRow(sessCtx, batchID, locationID)
		if err != nil {
			return err
		}
		prevOnHand := row.OnHandQty
		delta, err := row.AdjustTo(newOnHand, actor, reason)
		if err != nil {
			return err
		}

		warehouse, err := s.loadWarehouse(sessCtx, row.WarehouseID, batchID)
		if err != nil {
			return err
		}
		if err := warehouse.ApplyDelta(delta); err != nil {
			return err
		}

		if err := s.commitPair(sessCtx, row, version, warehouse); err != nil {
			return err
		}

		entry, err := domain.NewHistoryEntry(domain.HistoryTargetLocation, historyTarget(batchID, locationID),
			domain.HistoryActionManualAdjust, prevOnHand, delta, row.OnHandQty, actor, reason,
			map[string]string{"field": "onHandQty", "warehouseId": row.WarehouseID})
		if err != nil {
			return err
		}
		if err := s.appendHistory(sessCtx, entry); err != nil {
			return err
		}

		return s.saveRowEvents(sessCtx, row)
	})
}

// VerifyConsistency recomputes the location sum for one warehouse/batch pair
// and compares it against the materialized aggregate. The reads run inside a
// transaction so a concurrent mutation cannot produce a false mismatch.
func (s *LedgerStore) VerifyConsistency(ctx context.Context, warehouseID, batchID string) error {
	return s.withTxn(ctx, func(sessCtx mongo.SessionContext) error {
		warehouse, err := s.loadWarehouse(sessCtx, warehouseID, batchID)
		if err != nil {
			return err
		}

		cursor, err := s.locations.Aggregate(sessCtx, mongo.Pipeline{
			{{Key: "$match", Value: bson.M{"warehouseId": warehouseID, "batchId": batchID}}},
			{{Key: "$group", Value: bson.M{
				"_id":      nil,
				"onHand":   bson.M{"$sum": "$onHandQty"},
				"reserved": bson.M{"$sum": "$reservedQty"},
			}}},
		})
		if err != nil {
			return fmt.Errorf("failed to sum location rows: %w", err)
		}
		defer cursor.Close(sessCtx)

		var totals struct {
			OnHand   int `bson:"onHand"`
			Reserved int `bson:"reserved"`
		}
		if cursor.Next(sessCtx) {
			if err := cursor.Decode(&totals); err != nil {
				return fmt.Errorf("failed to decode location sum: %w", err)
			}
		}

		if err := warehouse.Matches(totals.OnHand, totals.Reserved); err != nil {
			return fmt.Errorf("warehouse %s batch %s: aggregate %d/%d vs location sum %d/%d: %w",
				warehouseID, batchID, warehouse.TotalQty, warehouse.ReservedQty, totals.OnHand, totals.Reserved, err)
		}
		return nil
	})
}

// EnsureIndexes creates the ledger indexes, including the uniqueness guards
// on batches and location rows
func (s *LedgerStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.batches.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "batchId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "itemRef", Value: 1}}},
	})
	if err != nil {
		return err
	}

	_, err = s.locations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "batchId", Value: 1}, {Key: "locationId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "warehouseId", Value: 1}, {Key: "batchId", Value: 1}}},
		{Keys: bson.D{{Key: "warehouseId", Value: 1}, {Key: "status", Value: 1}}},
	})
	if err != nil {
		return err
	}

	_, err = s.warehouses.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "warehouseId", Value: 1}, {Key: "batchId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "itemRef", Value: 1}}},
	})
	if err != nil {
		return err
	}

	_, err = s.history.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "targetId", Value: 1}, {Key: "occurredAt", Value: -1}}},
		{Keys: bson.D{{Key: "entryId", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return err
	}

	return s.outboxRepo.EnsureIndexes(ctx)
}

// OutboxRepository exposes the outbox store sharing this ledger's database
func (s *LedgerStore) OutboxRepository() *outboxMongo.OutboxRepository {
	return s.outboxRepo
}

// HistoryCollection exposes the raw audit collection for integrity scans
func (s *LedgerStore) HistoryCollection() *mongo.Collection {
	return s.history
}

func (s *LedgerStore) withTxn(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	session, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Majority()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	}, txnOpts)
	if err != nil {
		if pkgmongo.IsWriteConflict(err) || pkgmongo.IsDeadlineExceeded(err) {
			return domain.ErrLockTimeout
		}
		return err
	}
	return nil
}

// loadRow fetches one location row and returns the version the guard must
// match on commit.
func (s *LedgerStore) loadRow(sessCtx mongo.SessionContext, batchID, locationID string) (*domain.LocationInventory, int64, error) {
	var row domain.LocationInventory
	err := s.locations.FindOne(sessCtx, bson.M{"batchId": batchID, "locationId": locationID}).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, 0, domain.ErrLocationNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load location row: %w", err)
	}
	return &row, row.Version, nil
}

func (s *LedgerStore) loadWarehouse(sessCtx mongo.SessionContext, warehouseID, batchID string) (*domain.WarehouseInventory, error) {
	var warehouse domain.WarehouseInventory
	err := s.warehouses.FindOne(sessCtx, bson.M{"warehouseId": warehouseID, "batchId": batchID}).Decode(&warehouse)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("warehouse aggregate %s/%s is missing: %w", warehouseID, batchID, domain.ErrAggregateMismatch)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load warehouse aggregate: %w", err)
	}
	return &warehouse, nil
}

// commitPair writes the mutated location row and warehouse aggregate. The
// location write is conditional on the version loaded at transaction start;
// a miss means another writer got there first.
func (s *LedgerStore) commitPair(sessCtx mongo.SessionContext, row *domain.LocationInventory, expectedVersion int64, warehouse *domain.WarehouseInventory) error {
	res, err := s.locations.UpdateOne(sessCtx,
		bson.M{"batchId": row.BatchID, "locationId": row.LocationID, "version": expectedVersion},
		bson.M{"$set": row})
	if err != nil {
		return fmt.Errorf("failed to update location row: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrLockTimeout
	}

	_, err = s.warehouses.UpdateOne(sessCtx,
		bson.M{"warehouseId": warehouse.WarehouseID, "batchId": warehouse.BatchID},
		bson.M{"$set": warehouse})
	if err != nil {
		return fmt.Errorf("failed to update warehouse aggregate: %w", err)
	}
	return nil
}

func (s *LedgerStore) appendHistory(sessCtx mongo.SessionContext, entry *domain.HistoryEntry) error {
	if _, err := s.history.InsertOne(sessCtx, entry); err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

// saveRowEvents converts the row's domain events into CloudEvents and stores
// them in the outbox inside the same transaction.
func (s *LedgerStore) saveRowEvents(sessCtx mongo.SessionContext, row *domain.LocationInventory) error {
	events := row.GetDomainEvents()
	if len(events) == 0 {
		return nil
	}

	outboxEvents := make([]*outbox.OutboxEvent, 0, len(events))
	for _, event := range events {
		var cloudEvent *cloudevents.WMSCloudEvent
		switch e := event.(type) {
		case *domain.StockReservedEvent:
			cloudEvent = s.eventFactory.CreateStockMovementEvent(sessCtx, e.EventType(), cloudevents.StockMovementData{
				BatchID: e.BatchID, LocationID: e.LocationID, Quantity: e.Quantity, Actor: e.ReservedBy,
			})
		case *domain.ReservationReleasedEvent:
			cloudEvent = s.eventFactory.CreateStockMovementEvent(sessCtx, e.EventType(), cloudevents.StockMovementData{
				BatchID: e.BatchID, LocationID: e.LocationID, Quantity: e.Quantity, Actor: e.ReleasedBy, Reason: e.Reason,
			})
		case *domain.StockConsumedEvent:
			cloudEvent = s.eventFactory.CreateStockMovementEvent(sessCtx, e.EventType(), cloudevents.StockMovementData{
				BatchID: e.BatchID, LocationID: e.LocationID, Quantity: e.Quantity, Actor: e.ConsumedBy,
			})
		case *domain.StockAdjustedEvent:
			cloudEvent = s.eventFactory.CreateStockAdjustedEvent(sessCtx, cloudevents.StockAdjustedData{
				BatchID: e.BatchID, LocationID: e.LocationID, PreviousQty: e.OldQuantity, NewQty: e.NewQuantity,
				Reason: e.Reason, Actor: e.AdjustedBy,
			})
		default:
			continue
		}

		outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(row.BatchID, "LocationInventory", kafka.Topics.InventoryEvents, cloudEvent)
		if err != nil {
			return fmt.Errorf("failed to create outbox event: %w", err)
		}
		outboxEvents = append(outboxEvents, outboxEvent)
	}

	if err := s.outboxRepo.SaveAll(sessCtx, outboxEvents); err != nil {
		return fmt.Errorf("failed to save outbox events: %w", err)
	}
	row.ClearDomainEvents()
	return nil
}

func (s *LedgerStore) saveCloudEvent(sessCtx mongo.SessionContext, aggregateID string, event *cloudevents.WMSCloudEvent) error {
	outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(aggregateID, "LocationInventory", kafka.Topics.InventoryEvents, event)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	if err := s.outboxRepo.Save(sessCtx, outboxEvent); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}
	return nil
}

func historyTarget(batchID, locationID string) string {
	return batchID + ":" + locationID
}
