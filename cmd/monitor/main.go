package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/wms-platform/allocation-service/internal/domain"
	mongoRepo "github.com/wms-platform/allocation-service/internal/infrastructure/mongodb"
	"github.com/wms-platform/allocation-service/pkg/cloudevents"
	"github.com/wms-platform/allocation-service/pkg/kafka"
	"github.com/wms-platform/allocation-service/pkg/logging"
	"github.com/wms-platform/allocation-service/pkg/metrics"
	"github.com/wms-platform/allocation-service/pkg/mongodb"
	"github.com/wms-platform/allocation-service/pkg/outbox"
	"github.com/wms-platform/allocation-service/pkg/resilience"
)

const serviceName = "allocation-monitor"

// Integrity monitor: periodically checks every warehouse aggregate against
// its location rows and verifies audit-trail checksums. Violations are
// counted, logged and pushed to the outbox as integrity events.

func main() {
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting allocation integrity monitor")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New(metrics.DefaultConfig(serviceName))

	mongoConfig := &mongodb.Config{
		URI:                getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		Database:           getEnv("MONGODB_DATABASE", "allocation_db"),
		ConnectTimeout:     10 * time.Second,
		MaxPoolSize:        10,
		MinPoolSize:        1,
		TransactionTimeout: 5 * time.Second,
	}
	mongoClient, err := mongodb.NewProductionClient(ctx, mongoConfig, m, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(ctx)

	db := mongoClient.Database()
	eventFactory := cloudevents.NewEventFactory(serviceName)
	ledgerStore := mongoRepo.NewLedgerStore(db, eventFactory)
	warehouseRepo := mongoRepo.NewWarehouseInventoryRepository(db)

	interval, err := time.ParseDuration(getEnv("SCAN_INTERVAL", "5m"))
	if err != nil {
		logger.WithError(err).Error("Invalid SCAN_INTERVAL")
		os.Exit(1)
	}
	historyWindow, err := time.ParseDuration(getEnv("HISTORY_WINDOW", "24h"))
	if err != nil {
		logger.WithError(err).Error("Invalid HISTORY_WINDOW")
		os.Exit(1)
	}

	mon := &monitor{
		ledger:        ledgerStore,
		warehouses:    warehouseRepo,
		eventFactory:  eventFactory,
		logger:        logger,
		metrics:       m,
		historyWindow: historyWindow,
	}

	// Metrics endpoint for scrapes
	metricsSrv := &http.Server{
		Addr:    getEnv("METRICS_ADDR", ":9010"),
		Handler: m.Handler(),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server error", "error", err)
		}
	}()
	logger.Info("Metrics server started", "addr", metricsSrv.Addr)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	mon.scan(ctx)
	for {
		select {
		case <-ticker.C:
			mon.scan(ctx)
		case <-quit:
			logger.Info("Shutting down monitor")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			metricsSrv.Shutdown(shutdownCtx)
			return
		}
	}
}

type monitor struct {
	ledger        *mongoRepo.LedgerStore
	warehouses    *mongoRepo.WarehouseInventoryRepository
	eventFactory  *cloudevents.EventFactory
	logger        *logging.Logger
	metrics       *metrics.Metrics
	historyWindow time.Duration
}

func (mon *monitor) scan(ctx context.Context) {
	start := time.Now()
	mon.logger.Info("Integrity scan started")

	pairs, err := mon.warehouses.ListPairs(ctx)
	if err != nil {
		mon.logger.WithError(err).Error("Failed to list warehouse pairs")
		return
	}

	violations := 0
	for _, pair := range pairs {
		if err := mon.checkPair(ctx, pair); err != nil {
			violations++
		}
	}

	tampered := mon.scanHistory(ctx)

	mon.logger.Info("Integrity scan finished",
		"pairs", len(pairs),
		"aggregateViolations", violations,
		"tamperedEntries", tampered,
		"duration", time.Since(start))
}

// checkPair verifies one aggregate, retrying lock timeouts caused by
// concurrent ledger traffic. A mismatch is a finding, not a transient
// failure, so it is captured rather than retried.
func (mon *monitor) checkPair(ctx context.Context, pair domain.WarehouseBatchPair) error {
	var verifyErr error
	err := resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() error {
		verifyErr = mon.ledger.VerifyConsistency(ctx, pair.WarehouseID, pair.BatchID)
		if errors.Is(verifyErr, domain.ErrLockTimeout) {
			return verifyErr
		}
		return nil
	})
	if err != nil {
		mon.logger.WithError(err).Warn("Consistency check did not complete",
			"warehouseId", pair.WarehouseID, "batchId", pair.BatchID)
		return nil
	}
	if verifyErr == nil {
		return nil
	}
	if !errors.Is(verifyErr, domain.ErrAggregateMismatch) {
		mon.logger.WithError(verifyErr).Warn("Consistency check failed",
			"warehouseId", pair.WarehouseID, "batchId", pair.BatchID)
		return nil
	}

	mon.metrics.RecordIntegrityFailure("aggregate")
	mon.logger.Error("Warehouse aggregate mismatch",
		"warehouseId", pair.WarehouseID, "batchId", pair.BatchID, "detail", verifyErr.Error())
	mon.reportViolation(ctx, pair.WarehouseID, pair.BatchID, verifyErr.Error())
	return verifyErr
}

// scanHistory re-verifies the checksums of recent audit entries
func (mon *monitor) scanHistory(ctx context.Context) int {
	cutoff := time.Now().Add(-mon.historyWindow)
	cursor, err := mon.ledger.HistoryCollection().Find(ctx, bson.M{"occurredAt": bson.M{"$gte": cutoff}})
	if err != nil {
		mon.logger.WithError(err).Error("Failed to scan history entries")
		return 0
	}
	defer cursor.Close(ctx)

	tampered := 0
	for cursor.Next(ctx) {
		var entry domain.HistoryEntry
		if err := cursor.Decode(&entry); err != nil {
			mon.logger.WithError(err).Error("Failed to decode history entry")
			continue
		}
		if err := entry.Verify(); err != nil {
			tampered++
			mon.metrics.RecordIntegrityFailure("checksum")
			mon.logger.Error("History entry failed checksum verification",
				"entryId", entry.EntryID, "targetId", entry.TargetID, "action", entry.ActionType)
			mon.reportViolation(ctx, "", entry.TargetID, "history checksum mismatch: "+entry.EntryID)
		}
	}
	return tampered
}

func (mon *monitor) reportViolation(ctx context.Context, warehouseID, targetID, detail string) {
	event := mon.eventFactory.CreateIntegrityViolationEvent(ctx, cloudevents.IntegrityViolationData{
		WarehouseID: warehouseID,
		BatchID:     targetID,
		Detail:      detail,
	})
	outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(targetID, "IntegrityCheck", kafka.Topics.InventoryEvents, event)
	if err != nil {
		mon.logger.WithError(err).Error("Failed to build integrity event")
		return
	}
	if err := mon.ledger.OutboxRepository().Save(ctx, outboxEvent); err != nil {
		mon.logger.WithError(err).Error("Failed to save integrity event")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
