package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wms-platform/allocation-service/internal/domain"
	apperrors "github.com/wms-platform/allocation-service/pkg/errors"
	"github.com/wms-platform/allocation-service/pkg/logging"
	"github.com/wms-platform/allocation-service/pkg/metrics"
)

// StockService handles stock-side use cases: initial loads, manual
// adjustments, availability views, the audit trail and consistency checks.
// Ledger mutations run transactionally in the ledger itself; this service
// validates, maps errors and records outcomes.
type StockService struct {
	ledger     domain.Ledger
	batches    domain.BatchRepository
	locations  domain.LocationInventoryRepository
	warehouses domain.WarehouseInventoryRepository
	history    domain.HistoryRepository
	logger     *logging.Logger
	metrics    *metrics.Metrics
}

// NewStockService creates a new StockService
func NewStockService(
	ledger domain.Ledger,
	batches domain.BatchRepository,
	locations domain.LocationInventoryRepository,
	warehouses domain.WarehouseInventoryRepository,
	history domain.HistoryRepository,
	logger *logging.Logger,
	m *metrics.Metrics,
) *StockService {
	return &StockService{
		ledger:     ledger,
		batches:    batches,
		locations:  locations,
		warehouses: warehouses,
		history:    history,
		logger:     logger,
		metrics:    m,
	}
}

// RegisterBatch performs an initial stock load: batch record, location row,
// warehouse aggregate and the initial_load audit entry in one transaction.
func (s *StockService) RegisterBatch(ctx context.Context, cmd RegisterBatchCommand) (*RegisterBatchResultDTO, error) {
	if cmd.LocationID == "" {
		return nil, apperrors.ErrValidation("location ID is required")
	}
	if cmd.WarehouseID == "" {
		return nil, apperrors.ErrValidation("warehouse ID is required")
	}
	if cmd.RegisteredBy == "" {
		return nil, apperrors.ErrValidation("registeredBy is required")
	}
	if cmd.Quantity <= 0 {
		return nil, apperrors.ErrValidation("quantity must be positive")
	}

	itemType := domain.ItemType(cmd.ItemType)
	if cmd.ItemType == "" {
		itemType = domain.ItemTypeProduct
	}
	if !itemType.IsValid() {
		return nil, apperrors.ErrValidation(fmt.Sprintf("invalid item type: %s", cmd.ItemType))
	}

	batch, err := domain.NewBatch(cmd.ItemRef, itemType, cmd.LotNumber, cmd.MfgDate, cmd.ExpiryDate)
	if err != nil {
		return nil, apperrors.ErrValidation(err.Error()).Wrap(err)
	}

	start := time.Now()
	err = s.ledger.RegisterBatch(ctx, batch, cmd.LocationID, cmd.WarehouseID, cmd.Quantity, cmd.StorageFee, cmd.RegisteredBy)
	s.metrics.RecordLedgerMutation("register", err == nil, time.Since(start))
	if err != nil {
		s.logger.WithError(err).Error("Failed to register batch",
			"itemRef", cmd.ItemRef, "locationId", cmd.LocationID, "warehouseId", cmd.WarehouseID)
		return nil, mapDomainError(err)
	}

	s.logger.Info("Batch registered",
		"batchId", batch.BatchID,
		"itemRef", batch.ItemRef,
		"locationId", cmd.LocationID,
		"warehouseId", cmd.WarehouseID,
		"quantity", cmd.Quantity,
	)

	return &RegisterBatchResultDTO{
		Batch:       ToBatchDTO(batch),
		LocationID:  cmd.LocationID,
		WarehouseID: cmd.WarehouseID,
		Quantity:    cmd.Quantity,
	}, nil
}

// AdjustStock sets the on-hand quantity of one location row to a counted
// value and returns the row after the adjustment.
func (s *StockService) AdjustStock(ctx context.Context, cmd AdjustStockCommand) (*LocationInventoryDTO, error) {
	if cmd.BatchID == "" {
		return nil, apperrors.ErrValidation("batch ID is required")
	}
	if cmd.LocationID == "" {
		return nil, apperrors.ErrValidation("location ID is required")
	}
	if cmd.AdjustedBy == "" {
		return nil, apperrors.ErrValidation("adjustedBy is required")
	}
	if cmd.Reason == "" {
		return nil, apperrors.ErrValidation("adjustment reason is required")
	}
	if cmd.NewOnHand < 0 {
		return nil, apperrors.ErrValidation("on-hand quantity cannot be negative")
	}

	start := time.Now()
	err := s.ledger.Adjust(ctx, cmd.BatchID, cmd.LocationID, cmd.NewOnHand, cmd.AdjustedBy, cmd.Reason)
	s.metrics.RecordLedgerMutation("manual_adjust", err == nil, time.Since(start))
	if err != nil {
		if errors.Is(err, domain.ErrLockTimeout) {
			s.metrics.RecordLockTimeout()
		}
		return nil, mapDomainError(err)
	}

	s.logger.Info("Stock adjusted",
		"batchId", cmd.BatchID,
		"locationId", cmd.LocationID,
		"newOnHand", cmd.NewOnHand,
		"reason", cmd.Reason,
	)

	row, err := s.locations.FindByBatchAndLocation(ctx, cmd.BatchID, cmd.LocationID)
	if err != nil {
		return nil, mapDomainError(err)
	}
	return ToLocationInventoryDTO(row), nil
}

// GetAvailability returns the candidate snapshot for one item in one warehouse
func (s *StockService) GetAvailability(ctx context.Context, query GetAvailabilityQuery) (*AvailabilityDTO, error) {
	if query.ItemRef == "" {
		return nil, apperrors.ErrValidation("item reference is required")
	}
	if query.WarehouseID == "" {
		return nil, apperrors.ErrValidation("warehouse ID is required")
	}

	candidates, err := s.locations.FindCandidates(ctx, query.ItemRef, query.WarehouseID)
	if err != nil {
		return nil, mapDomainError(err)
	}

	total := 0
	for _, c := range candidates {
		total += c.Available
	}

	return &AvailabilityDTO{
		ItemRef:        query.ItemRef,
		WarehouseID:    query.WarehouseID,
		TotalAvailable: total,
		Candidates:     ToCandidateDTOs(candidates),
	}, nil
}

// GetBatch fetches one batch record
func (s *StockService) GetBatch(ctx context.Context, batchID string) (*BatchDTO, error) {
	if batchID == "" {
		return nil, apperrors.ErrValidation("batch ID is required")
	}

	batch, err := s.batches.FindByBatchID(ctx, batchID)
	if err != nil {
		return nil, mapDomainError(err)
	}
	dto := ToBatchDTO(batch)
	return &dto, nil
}

// GetItemStock lists the warehouse aggregates holding one item
func (s *StockService) GetItemStock(ctx context.Context, itemRef string) ([]WarehouseInventoryDTO, error) {
	if itemRef == "" {
		return nil, apperrors.ErrValidation("item reference is required")
	}

	rows, err := s.warehouses.FindByItemRef(ctx, itemRef)
	if err != nil {
		return nil, mapDomainError(err)
	}

	dtos := make([]WarehouseInventoryDTO, len(rows))
	for i, w := range rows {
		dtos[i] = ToWarehouseInventoryDTO(w)
	}
	return dtos, nil
}

// ListHistory pages through the audit trail of one target, newest first.
// Every returned entry has its checksum verified; a mismatch is a fatal
// integrity failure, never silently skipped.
func (s *StockService) ListHistory(ctx context.Context, query GetHistoryQuery) (*HistoryPageDTO, error) {
	if query.TargetID == "" {
		return nil, apperrors.ErrValidation("target ID is required")
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	entries, total, err := s.history.ListByTarget(ctx, query.TargetID, page, pageSize)
	if err != nil {
		return nil, mapDomainError(err)
	}

	dtos := make([]HistoryEntryDTO, len(entries))
	for i, entry := range entries {
		if err := entry.Verify(); err != nil {
			s.metrics.RecordIntegrityFailure("checksum")
			s.logger.Error("History entry failed checksum verification",
				"entryId", entry.EntryID, "targetId", entry.TargetID)
			return nil, mapDomainError(err)
		}
		dtos[i] = ToHistoryEntryDTO(entry)
	}

	return &HistoryPageDTO{
		Entries:    dtos,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	}, nil
}

// VerifyConsistency checks one warehouse aggregate against the sum of its
// location rows. An inconsistent pair is reported, counted and logged but
// returned as a report so periodic monitors can keep scanning.
func (s *StockService) VerifyConsistency(ctx context.Context, query VerifyConsistencyQuery) (*ConsistencyReportDTO, error) {
	if query.WarehouseID == "" {
		return nil, apperrors.ErrValidation("warehouse ID is required")
	}
	if query.BatchID == "" {
		return nil, apperrors.ErrValidation("batch ID is required")
	}

	report := &ConsistencyReportDTO{
		WarehouseID: query.WarehouseID,
		BatchID:     query.BatchID,
		Consistent:  true,
		CheckedAt:   time.Now().UTC(),
	}

	err := s.ledger.VerifyConsistency(ctx, query.WarehouseID, query.BatchID)
	if err == nil {
		return report, nil
	}
	if !errors.Is(err, domain.ErrAggregateMismatch) {
		return nil, mapDomainError(err)
	}

	report.Consistent = false
	report.Detail = err.Error()
	s.metrics.RecordIntegrityFailure("aggregate")
	s.logger.Error("Warehouse aggregate is inconsistent with location rows",
		"warehouseId", query.WarehouseID, "batchId", query.BatchID, "detail", err.Error())
	return report, nil
}
