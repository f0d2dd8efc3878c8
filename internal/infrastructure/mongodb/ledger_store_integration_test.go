package mongodb

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wms-platform/allocation-service/internal/domain"
	"github.com/wms-platform/allocation-service/pkg/cloudevents"
	pkgtesting "github.com/wms-platform/allocation-service/pkg/testing"
)

type LedgerStoreIntegrationTestSuite struct {
	suite.Suite
	mongoContainer *pkgtesting.MongoDBContainer
	client         *mongo.Client
	db             *mongo.Database
	store          *LedgerStore
	batchRepo      *BatchRepository
	locationRepo   *LocationInventoryRepository
	warehouseRepo  *WarehouseInventoryRepository
	allocationRepo *AllocationRepository
	historyRepo    *HistoryRepository
	ctx            context.Context
}

func (s *LedgerStoreIntegrationTestSuite) SetupSuite() {
	s.ctx = context.Background()

	// Multi-document transactions need a replica set; the helper starts a
	// single-node one and waits until it is ready
	container, err := pkgtesting.NewMongoDBContainer(s.ctx)
	s.Require().NoError(err)
	s.mongoContainer = container

	client, err := container.GetClient(s.ctx)
	s.Require().NoError(err)
	s.client = client

	s.db = client.Database("allocation_test")

	eventFactory := cloudevents.NewEventFactory("allocation-service")
	s.store = NewLedgerStore(s.db, eventFactory)
	s.Require().NoError(s.store.EnsureIndexes(s.ctx))

	s.batchRepo = NewBatchRepository(s.db)
	s.locationRepo = NewLocationInventoryRepository(s.db)
	s.warehouseRepo = NewWarehouseInventoryRepository(s.db)
	s.allocationRepo = NewAllocationRepository(s.db)
	s.historyRepo = NewHistoryRepository(s.db)
}

func (s *LedgerStoreIntegrationTestSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Disconnect(s.ctx)
	}
	if s.mongoContainer != nil {
		s.Require().NoError(s.mongoContainer.Close(s.ctx))
	}
}

func (s *LedgerStoreIntegrationTestSuite) TearDownTest() {
	for _, name := range []string{collBatches, collLocations, collWarehouses, collHistory, collAllocations, "outbox_events"} {
		s.db.Collection(name).DeleteMany(s.ctx, bson.M{})
	}
}

func TestLedgerStoreIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	suite.Run(t, new(LedgerStoreIntegrationTestSuite))
}

// registerBatch loads qty units of a fresh batch at the given location and
// returns the generated batch ID.
func (s *LedgerStoreIntegrationTestSuite) registerBatch(itemRef, locationID, warehouseID string, qty int) string {
	expiry := time.Now().AddDate(1, 0, 0)
	batch, err := domain.NewBatch(itemRef, domain.ItemTypeProduct, "LOT-"+itemRef, time.Now().AddDate(0, -1, 0), &expiry)
	s.Require().NoError(err)

	err = s.store.RegisterBatch(s.ctx, batch, locationID, warehouseID, qty, 0.25, "tester")
	s.Require().NoError(err)
	return batch.BatchID
}

func (s *LedgerStoreIntegrationTestSuite) TestRegisterBatch_CreatesRowAggregateAndAudit() {
	batchID := s.registerBatch("WIDGET-001", "A-01-01", "WH-EAST", 100)

	batch, err := s.batchRepo.FindByBatchID(s.ctx, batchID)
	s.Require().NoError(err)
	s.Equal("WIDGET-001", batch.ItemRef)

	row, err := s.locationRepo.FindByBatchAndLocation(s.ctx, batchID, "A-01-01")
	s.Require().NoError(err)
	s.Equal(100, row.OnHandQty)
	s.Equal(0, row.ReservedQty)
	s.Equal(domain.LocationStatusInStock, row.Status)
	s.Equal(int64(1), row.Version)

	warehouse, err := s.warehouseRepo.FindByWarehouseAndBatch(s.ctx, "WH-EAST", batchID)
	s.Require().NoError(err)
	s.Equal(100, warehouse.TotalQty)
	s.Equal(0, warehouse.ReservedQty)

	entries, total, err := s.historyRepo.ListByTarget(s.ctx, batchID+":A-01-01", 1, 10)
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Equal(domain.HistoryActionInitialLoad, entries[0].ActionType)
	s.NoError(entries[0].Verify())

	outboxCount, err := s.db.Collection("outbox_events").CountDocuments(s.ctx, bson.M{})
	s.Require().NoError(err)
	s.Greater(outboxCount, int64(0), "Expected an outbox event for the registration")
}

func (s *LedgerStoreIntegrationTestSuite) TestRegisterBatch_DuplicateBatchIDRejected() {
	expiry := time.Now().AddDate(1, 0, 0)
	batch, err := domain.NewBatch("WIDGET-002", domain.ItemTypeProduct, "LOT-A", time.Now().AddDate(0, -1, 0), &expiry)
	s.Require().NoError(err)

	err = s.store.RegisterBatch(s.ctx, batch, "A-01-01", "WH-EAST", 50, 0.25, "tester")
	s.Require().NoError(err)

	err = s.store.RegisterBatch(s.ctx, batch, "A-01-02", "WH-EAST", 50, 0.25, "tester")
	s.Error(err, "Unique index on batchId should reject the second load")
}

func (s *LedgerStoreIntegrationTestSuite) TestReserve_MovesAvailableToReserved() {
	batchID := s.registerBatch("WIDGET-003", "A-01-01", "WH-EAST", 100)

	err := s.store.Reserve(s.ctx, batchID, "A-01-01", 30, "picker-1")
	s.Require().NoError(err)

	row, err := s.locationRepo.FindByBatchAndLocation(s.ctx, batchID, "A-01-01")
	s.Require().NoError(err)
	s.Equal(100, row.OnHandQty)
	s.Equal(30, row.ReservedQty)
	s.Equal(70, row.Available())
	s.Greater(row.Version, int64(1), "Mutation should bump the row version")

	warehouse, err := s.warehouseRepo.FindByWarehouseAndBatch(s.ctx, "WH-EAST", batchID)
	s.Require().NoError(err)
	s.Equal(30, warehouse.ReservedQty)

	s.NoError(s.store.VerifyConsistency(s.ctx, "WH-EAST", batchID))
}

func (s *LedgerStoreIntegrationTestSuite) TestReserve_InsufficientStock() {
	batchID := s.registerBatch("WIDGET-004", "A-01-01", "WH-EAST", 10)

	err := s.store.Reserve(s.ctx, batchID, "A-01-01", 25, "picker-1")
	s.ErrorIs(err, domain.ErrInsufficientStock)

	// The failed transaction must leave nothing behind
	row, err := s.locationRepo.FindByBatchAndLocation(s.ctx, batchID, "A-01-01")
	s.Require().NoError(err)
	s.Equal(0, row.ReservedQty)

	_, total, err := s.historyRepo.ListByTarget(s.ctx, batchID+":A-01-01", 1, 10)
	s.Require().NoError(err)
	s.Equal(int64(1), total, "Only the initial_load entry should exist")
}

func (s *LedgerStoreIntegrationTestSuite) TestReserve_UnknownRow() {
	err := s.store.Reserve(s.ctx, "BAT-MISSING", "A-01-01", 5, "picker-1")
	s.ErrorIs(err, domain.ErrLocationNotFound)
}

func (s *LedgerStoreIntegrationTestSuite) TestRelease_ReturnsReservedQuantity() {
	batchID := s.registerBatch("WIDGET-005", "A-01-01", "WH-EAST", 100)
	s.Require().NoError(s.store.Reserve(s.ctx, batchID, "A-01-01", 40, "picker-1"))

	err := s.store.Release(s.ctx, batchID, "A-01-01", 40, "picker-1", "order cancelled")
	s.Require().NoError(err)

	row, err := s.locationRepo.FindByBatchAndLocation(s.ctx, batchID, "A-01-01")
	s.Require().NoError(err)
	s.Equal(100, row.OnHandQty)
	s.Equal(0, row.ReservedQty)

	warehouse, err := s.warehouseRepo.FindByWarehouseAndBatch(s.ctx, "WH-EAST", batchID)
	s.Require().NoError(err)
	s.Equal(0, warehouse.ReservedQty)
}

func (s *LedgerStoreIntegrationTestSuite) TestConfirmAndRestock_RoundTrip() {
	batchID := s.registerBatch("WIDGET-006", "A-01-01", "WH-EAST", 100)
	s.Require().NoError(s.store.Reserve(s.ctx, batchID, "A-01-01", 30, "picker-1"))

	err := s.store.ConfirmConsumption(s.ctx, batchID, "A-01-01", 30, "packer-1")
	s.Require().NoError(err)

	row, err := s.locationRepo.FindByBatchAndLocation(s.ctx, batchID, "A-01-01")
	s.Require().NoError(err)
	s.Equal(70, row.OnHandQty)
	s.Equal(0, row.ReservedQty)

	warehouse, err := s.warehouseRepo.FindByWarehouseAndBatch(s.ctx, "WH-EAST", batchID)
	s.Require().NoError(err)
	s.Equal(70, warehouse.TotalQty)
	s.Equal(0, warehouse.ReservedQty)

	err = s.store.Restock(s.ctx, batchID, "A-01-01", 30, "packer-1", "fulfillment aborted")
	s.Require().NoError(err)

	row, err = s.locationRepo.FindByBatchAndLocation(s.ctx, batchID, "A-01-01")
	s.Require().NoError(err)
	s.Equal(100, row.OnHandQty)

	s.NoError(s.store.VerifyConsistency(s.ctx, "WH-EAST", batchID))
}

func (s *LedgerStoreIntegrationTestSuite) TestAdjust_SetsAbsoluteQuantity() {
	batchID := s.registerBatch("WIDGET-007", "A-01-01", "WH-EAST", 100)

	err := s.store.Adjust(s.ctx, batchID, "A-01-01", 80, "auditor", "cycle count")
	s.Require().NoError(err)

	row, err := s.locationRepo.FindByBatchAndLocation(s.ctx, batchID, "A-01-01")
	s.Require().NoError(err)
	s.Equal(80, row.OnHandQty)

	warehouse, err := s.warehouseRepo.FindByWarehouseAndBatch(s.ctx, "WH-EAST", batchID)
	s.Require().NoError(err)
	s.Equal(80, warehouse.TotalQty)

	entries, _, err := s.historyRepo.ListByTarget(s.ctx, batchID+":A-01-01", 1, 10)
	s.Require().NoError(err)
	s.Equal(domain.HistoryActionManualAdjust, entries[0].ActionType)
	s.Equal("cycle count", entries[0].Reason)
}

func (s *LedgerStoreIntegrationTestSuite) TestAdjust_BelowReservedRejected() {
	batchID := s.registerBatch("WIDGET-008", "A-01-01", "WH-EAST", 100)
	s.Require().NoError(s.store.Reserve(s.ctx, batchID, "A-01-01", 60, "picker-1"))

	err := s.store.Adjust(s.ctx, batchID, "A-01-01", 50, "auditor", "cycle count")
	s.ErrorIs(err, domain.ErrAdjustBelowReserved)

	row, err := s.locationRepo.FindByBatchAndLocation(s.ctx, batchID, "A-01-01")
	s.Require().NoError(err)
	s.Equal(100, row.OnHandQty)
}

func (s *LedgerStoreIntegrationTestSuite) TestHistory_EveryMutationLeavesAVerifiableEntry() {
	batchID := s.registerBatch("WIDGET-009", "A-01-01", "WH-EAST", 100)
	s.Require().NoError(s.store.Reserve(s.ctx, batchID, "A-01-01", 20, "picker-1"))
	s.Require().NoError(s.store.Release(s.ctx, batchID, "A-01-01", 20, "picker-1", "reallocated"))
	s.Require().NoError(s.store.Reserve(s.ctx, batchID, "A-01-01", 10, "picker-2"))
	s.Require().NoError(s.store.ConfirmConsumption(s.ctx, batchID, "A-01-01", 10, "packer-1"))
	s.Require().NoError(s.store.Adjust(s.ctx, batchID, "A-01-01", 85, "auditor", "cycle count"))

	entries, total, err := s.historyRepo.ListByTarget(s.ctx, batchID+":A-01-01", 1, 50)
	s.Require().NoError(err)
	s.Equal(int64(6), total)
	for _, entry := range entries {
		s.NoError(entry.Verify(), "entry %s should carry a valid checksum", entry.ActionType)
	}
}

func (s *LedgerStoreIntegrationTestSuite) TestHistoryRepository_Pagination() {
	batchID := s.registerBatch("WIDGET-010", "A-01-01", "WH-EAST", 100)
	for i := 0; i < 4; i++ {
		s.Require().NoError(s.store.Reserve(s.ctx, batchID, "A-01-01", 1, "picker-1"))
	}

	page1, total, err := s.historyRepo.ListByTarget(s.ctx, batchID+":A-01-01", 1, 3)
	s.Require().NoError(err)
	s.Equal(int64(5), total)
	s.Len(page1, 3)

	page2, _, err := s.historyRepo.ListByTarget(s.ctx, batchID+":A-01-01", 2, 3)
	s.Require().NoError(err)
	s.Len(page2, 2)

	// Newest first across pages
	s.True(!page1[0].OccurredAt.Before(page2[len(page2)-1].OccurredAt))
}

func (s *LedgerStoreIntegrationTestSuite) TestConcurrentReservations_NeverOversell() {
	batchID := s.registerBatch("WIDGET-011", "A-01-01", "WH-EAST", 100)

	const workers = 8
	const perWorker = 20

	var wg sync.WaitGroup
	successes := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Retry on lock timeouts; give up on real shortages
			for attempt := 0; attempt < 20; attempt++ {
				err := s.store.Reserve(context.Background(), batchID, "A-01-01", perWorker, "picker")
				if err == nil {
					successes <- struct{}{}
					return
				}
				if errors.Is(err, domain.ErrInsufficientStock) {
					return
				}
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}
	wg.Wait()
	close(successes)

	won := 0
	for range successes {
		won++
	}
	s.Equal(5, won, "Exactly 100/20 reservations should succeed")

	row, err := s.locationRepo.FindByBatchAndLocation(s.ctx, batchID, "A-01-01")
	s.Require().NoError(err)
	s.Equal(100, row.ReservedQty)
	s.Equal(0, row.Available())

	s.NoError(s.store.VerifyConsistency(s.ctx, "WH-EAST", batchID))
}

func (s *LedgerStoreIntegrationTestSuite) TestVerifyConsistency_DetectsTamperedAggregate() {
	batchID := s.registerBatch("WIDGET-012", "A-01-01", "WH-EAST", 100)

	_, err := s.db.Collection(collWarehouses).UpdateOne(s.ctx,
		bson.M{"warehouseId": "WH-EAST", "batchId": batchID},
		bson.M{"$inc": bson.M{"totalQty": 7}})
	s.Require().NoError(err)

	err = s.store.VerifyConsistency(s.ctx, "WH-EAST", batchID)
	s.ErrorIs(err, domain.ErrAggregateMismatch)
}

func (s *LedgerStoreIntegrationTestSuite) TestLocationRepository_FindCandidates() {
	batchA := s.registerBatch("WIDGET-013", "A-01-01", "WH-EAST", 30)
	batchB := s.registerBatch("WIDGET-013", "A-01-02", "WH-EAST", 50)
	s.registerBatch("OTHER-ITEM", "A-01-03", "WH-EAST", 10)
	s.registerBatch("WIDGET-013", "B-01-01", "WH-WEST", 40)

	s.Require().NoError(s.store.Reserve(s.ctx, batchB, "A-01-02", 15, "picker-1"))

	candidates, err := s.locationRepo.FindCandidates(s.ctx, "WIDGET-013", "WH-EAST")
	s.Require().NoError(err)
	s.Require().Len(candidates, 2)

	byBatch := map[string]domain.BatchCandidate{}
	for _, c := range candidates {
		byBatch[c.BatchID] = c
		s.Equal("WIDGET-013", c.ItemRef)
		s.NotNil(c.ExpiryDate)
	}
	s.Equal(30, byBatch[batchA].Available)
	s.Equal(35, byBatch[batchB].Available, "Reserved quantity must not be selectable")
}

func (s *LedgerStoreIntegrationTestSuite) TestAllocationRepository_SaveIsUpsert() {
	allocation, err := domain.NewAllocation("ORD-100", "ITEM-1", "WIDGET-014", "BAT-1", "LOT-A", "A-01-01", "WH-EAST", 5, "tester")
	s.Require().NoError(err)
	s.Require().NoError(allocation.MarkAllocated())

	s.Require().NoError(s.allocationRepo.Save(s.ctx, allocation))

	s.Require().NoError(allocation.Confirm("tester"))
	s.Require().NoError(s.allocationRepo.Save(s.ctx, allocation))

	count, err := s.db.Collection(collAllocations).CountDocuments(s.ctx, bson.M{"orderId": "ORD-100"})
	s.Require().NoError(err)
	s.Equal(int64(1), count, "Saving twice must not duplicate the line")

	stored, err := s.allocationRepo.FindByAllocationID(s.ctx, allocation.AllocationID)
	s.Require().NoError(err)
	s.Equal(domain.AllocationStatusConfirmed, stored.Status)
}

func (s *LedgerStoreIntegrationTestSuite) TestAllocationRepository_FindActiveFiltersTerminalStates() {
	active, err := domain.NewAllocation("ORD-101", "ITEM-1", "WIDGET-015", "BAT-1", "LOT-A", "A-01-01", "WH-EAST", 5, "tester")
	s.Require().NoError(err)
	s.Require().NoError(active.MarkAllocated())
	s.Require().NoError(s.allocationRepo.Save(s.ctx, active))

	released, err := domain.NewAllocation("ORD-101", "ITEM-2", "WIDGET-015", "BAT-2", "LOT-B", "A-01-02", "WH-EAST", 3, "tester")
	s.Require().NoError(err)
	s.Require().NoError(released.MarkAllocated())
	s.Require().NoError(released.Release("tester", "shortage"))
	s.Require().NoError(s.allocationRepo.Save(s.ctx, released))

	all, err := s.allocationRepo.FindByOrderID(s.ctx, "ORD-101")
	s.Require().NoError(err)
	s.Len(all, 2)

	activeOnly, err := s.allocationRepo.FindActiveByOrderID(s.ctx, "ORD-101")
	s.Require().NoError(err)
	s.Require().Len(activeOnly, 1)
	s.Equal(active.AllocationID, activeOnly[0].AllocationID)
}

func (s *LedgerStoreIntegrationTestSuite) TestAllocationRepository_FindByAllocationID_NotFound() {
	_, err := s.allocationRepo.FindByAllocationID(s.ctx, "ALC-MISSING")
	s.ErrorIs(err, domain.ErrAllocationNotFound)
}
