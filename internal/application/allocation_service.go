package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wms-platform/allocation-service/internal/domain"
	apperrors "github.com/wms-platform/allocation-service/pkg/errors"
	"github.com/wms-platform/allocation-service/pkg/kafka"
	"github.com/wms-platform/allocation-service/pkg/logging"
	"github.com/wms-platform/allocation-service/pkg/metrics"
	"github.com/wms-platform/allocation-service/pkg/outbox"
)

// AllocationService coordinates order allocation: batch selection, ledger
// reservations and the allocation state machine. A failed run rolls back
// every reservation it made; allocation rows never survive a partial run.
type AllocationService struct {
	ledger      domain.Ledger
	allocations domain.AllocationRepository
	locations   domain.LocationInventoryRepository
	outboxRepo  outbox.Repository
	logger      *logging.Logger
	metrics     *metrics.Metrics
}

// NewAllocationService creates a new AllocationService
func NewAllocationService(
	ledger domain.Ledger,
	allocations domain.AllocationRepository,
	locations domain.LocationInventoryRepository,
	outboxRepo outbox.Repository,
	logger *logging.Logger,
	m *metrics.Metrics,
) *AllocationService {
	return &AllocationService{
		ledger:      ledger,
		allocations: allocations,
		locations:   locations,
		outboxRepo:  outboxRepo,
		logger:      logger,
		metrics:     m,
	}
}

// AllocateOrder reserves stock for every line item of an order. Allocating an
// order that already holds allocations releases them first and re-allocates
// from the current snapshot.
func (s *AllocationService) AllocateOrder(ctx context.Context, cmd AllocateOrderCommand) (*AllocationResultDTO, error) {
	if cmd.OrderID == "" {
		return nil, apperrors.ErrValidation("order ID is required")
	}
	if cmd.WarehouseID == "" {
		return nil, apperrors.ErrValidation("warehouse ID is required")
	}
	if cmd.RequestedBy == "" {
		return nil, apperrors.ErrValidation("requestedBy is required")
	}
	if len(cmd.Items) == 0 {
		return nil, apperrors.ErrValidation("at least one line item is required")
	}
	for _, item := range cmd.Items {
		if item.OrderItemID == "" || item.ItemRef == "" {
			return nil, apperrors.ErrValidation("order item ID and item reference are required")
		}
		if item.Quantity <= 0 {
			return nil, apperrors.ErrValidation(fmt.Sprintf("quantity for %s must be positive", item.ItemRef))
		}
	}

	strategy, err := domain.StrategyFor(cmd.Strategy, cmd.LocationID)
	if err != nil {
		return nil, mapDomainError(err)
	}

	if err := s.releaseExisting(ctx, cmd.OrderID, cmd.RequestedBy); err != nil {
		return nil, mapDomainError(err)
	}

	// Reserve draw by draw. reserved tracks committed ledger reservations so
	// any failure can undo all of them before surfacing.
	var reserved []*domain.Allocation
	for _, item := range cmd.Items {
		candidates, err := s.locations.FindCandidates(ctx, item.ItemRef, cmd.WarehouseID)
		if err != nil {
			s.rollbackReservations(ctx, reserved, cmd.RequestedBy)
			return nil, fmt.Errorf("failed to load candidates for %s: %w", item.ItemRef, err)
		}

		draws, err := strategy.Select(candidates, item.ItemRef, item.Quantity)
		if err != nil {
			s.rollbackReservations(ctx, reserved, cmd.RequestedBy)
			var shortage *domain.ShortageError
			if errors.As(err, &shortage) {
				s.metrics.RecordShortage(shortage.ItemRef)
				s.metrics.RecordAllocation(strategy.Name(), "shortage")
				s.logger.Warn("Allocation shortage",
					"orderId", cmd.OrderID,
					"itemRef", shortage.ItemRef,
					"requested", shortage.Requested,
					"available", shortage.Available,
				)
			}
			return nil, mapDomainError(err)
		}

		for _, draw := range draws {
			alloc, err := domain.NewAllocation(cmd.OrderID, item.OrderItemID, item.ItemRef,
				draw.BatchID, draw.LotNumber, draw.LocationID, cmd.WarehouseID, draw.Quantity, cmd.RequestedBy)
			if err != nil {
				s.rollbackReservations(ctx, reserved, cmd.RequestedBy)
				return nil, mapDomainError(err)
			}

			if err := s.ledger.Reserve(ctx, draw.BatchID, draw.LocationID, draw.Quantity, cmd.RequestedBy); err != nil {
				s.rollbackReservations(ctx, reserved, cmd.RequestedBy)
				s.metrics.RecordAllocation(strategy.Name(), "failed")
				return nil, mapDomainError(err)
			}
			reserved = append(reserved, alloc)
		}
	}

	for i, alloc := range reserved {
		if err := alloc.MarkAllocated(); err != nil {
			s.rollbackReservations(ctx, reserved, cmd.RequestedBy)
			return nil, mapDomainError(err)
		}
		if err := s.allocations.Save(ctx, alloc); err != nil {
			s.rollbackReservations(ctx, reserved, cmd.RequestedBy)
			s.discardSaved(ctx, reserved[:i], cmd.RequestedBy)
			return nil, fmt.Errorf("failed to save allocation %s: %w", alloc.AllocationID, err)
		}
	}

	ids := make([]string, len(reserved))
	for i, alloc := range reserved {
		ids[i] = alloc.AllocationID
	}
	s.recordOutboxEvent(ctx, cmd.OrderID, "order", kafka.Topics.AllocationEvents, &domain.OrderAllocatedEvent{
		OrderID:       cmd.OrderID,
		WarehouseID:   cmd.WarehouseID,
		AllocationIDs: ids,
		Strategy:      strategy.Name(),
		AllocatedBy:   cmd.RequestedBy,
		AllocatedAt:   time.Now(),
	})

	s.metrics.RecordAllocation(strategy.Name(), "allocated")
	s.logger.Info("Order allocated",
		"orderId", cmd.OrderID,
		"warehouseId", cmd.WarehouseID,
		"strategy", strategy.Name(),
		"allocations", len(reserved),
	)

	return &AllocationResultDTO{
		OrderID:     cmd.OrderID,
		WarehouseID: cmd.WarehouseID,
		Strategy:    strategy.Name(),
		Allocations: ToAllocationDTOs(reserved),
	}, nil
}

// ConfirmOrder consumes the reserved stock of every allocation of an order.
// The order is rejected wholesale when any open allocation is outside the
// allocated status; the ledger is untouched in that case.
func (s *AllocationService) ConfirmOrder(ctx context.Context, cmd ConfirmOrderCommand) ([]AllocationDTO, error) {
	if cmd.OrderID == "" {
		return nil, apperrors.ErrValidation("order ID is required")
	}
	if cmd.ConfirmedBy == "" {
		return nil, apperrors.ErrValidation("confirmedBy is required")
	}

	open, err := s.openAllocations(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	var offenders []string
	for _, a := range open {
		if a.Status != domain.AllocationStatusAllocated {
			offenders = append(offenders, a.AllocationID)
		}
	}
	if len(offenders) > 0 {
		return nil, apperrors.ErrStateConflict("order has allocations outside the allocated status").
			WithDetail("orderId", cmd.OrderID).
			WithDetail("allocationIds", strings.Join(offenders, ","))
	}

	// Ledger first, state second. Consumption removes both on-hand and
	// reserved quantity, so undoing a partial run needs a restock and a
	// fresh reservation per already-consumed allocation.
	for i, a := range open {
		if err := s.ledger.ConfirmConsumption(ctx, a.BatchID, a.LocationID, a.Quantity, cmd.ConfirmedBy); err != nil {
			s.restoreReservations(ctx, open[:i], cmd.ConfirmedBy)
			s.metrics.RecordRollback()
			return nil, mapDomainError(err)
		}
	}

	for i, a := range open {
		if err := a.Confirm(cmd.ConfirmedBy); err != nil {
			s.restoreReservations(ctx, open[i:], cmd.ConfirmedBy)
			s.metrics.RecordRollback()
			return nil, mapDomainError(err)
		}
		if err := s.allocations.Save(ctx, a); err != nil {
			// Allocations saved before this point are consistent. This one
			// and every later one are still persisted as allocated, so the
			// consumed quantity must return to a reserved state.
			s.restoreReservations(ctx, open[i:], cmd.ConfirmedBy)
			s.metrics.RecordRollback()
			return nil, fmt.Errorf("failed to save allocation %s: %w", a.AllocationID, err)
		}
		s.publishDomainEvents(ctx, a)
	}

	s.logger.Info("Order confirmed", "orderId", cmd.OrderID, "allocations", len(open))
	return ToAllocationDTOs(open), nil
}

// restoreReservations puts consumed quantity back and re-reserves it for
// allocations whose persisted status still reads allocated. Newest first,
// failures are logged and skipped so the remaining allocations still get
// their reservation back.
func (s *AllocationService) restoreReservations(ctx context.Context, pending []*domain.Allocation, actor string) {
	for i := len(pending) - 1; i >= 0; i-- {
		p := pending[i]
		if err := s.ledger.Restock(ctx, p.BatchID, p.LocationID, p.Quantity, actor, "confirmation rollback"); err != nil {
			s.logger.WithError(err).Error("Failed to restock during confirmation rollback",
				"allocationId", p.AllocationID, "batchId", p.BatchID, "locationId", p.LocationID)
			continue
		}
		if err := s.ledger.Reserve(ctx, p.BatchID, p.LocationID, p.Quantity, actor); err != nil {
			s.logger.WithError(err).Error("Failed to re-reserve during confirmation rollback",
				"allocationId", p.AllocationID, "batchId", p.BatchID, "locationId", p.LocationID)
		}
	}
}

// BeginFulfillment marks every confirmed allocation of an order as handed to
// fulfillment. Pure state transition, no ledger effect.
func (s *AllocationService) BeginFulfillment(ctx context.Context, cmd BeginFulfillmentCommand) ([]AllocationDTO, error) {
	if cmd.OrderID == "" {
		return nil, apperrors.ErrValidation("order ID is required")
	}
	if cmd.StartedBy == "" {
		return nil, apperrors.ErrValidation("startedBy is required")
	}

	open, err := s.openAllocations(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	var offenders []string
	for _, a := range open {
		if a.Status != domain.AllocationStatusConfirmed {
			offenders = append(offenders, a.AllocationID)
		}
	}
	if len(offenders) > 0 {
		return nil, apperrors.ErrStateConflict("order has allocations outside the confirmed status").
			WithDetail("orderId", cmd.OrderID).
			WithDetail("allocationIds", strings.Join(offenders, ","))
	}

	warehouseID := open[0].WarehouseID
	for _, a := range open {
		if err := a.BeginFulfillment(); err != nil {
			return nil, mapDomainError(err)
		}
		if err := s.allocations.Save(ctx, a); err != nil {
			return nil, fmt.Errorf("failed to save allocation %s: %w", a.AllocationID, err)
		}
	}

	s.recordOutboxEvent(ctx, cmd.OrderID, "order", kafka.Topics.AllocationEvents, &domain.FulfillmentStartedEvent{
		OrderID:     cmd.OrderID,
		WarehouseID: warehouseID,
		StartedBy:   cmd.StartedBy,
		StartedAt:   time.Now(),
	})

	s.logger.Info("Fulfillment started", "orderId", cmd.OrderID, "allocations", len(open))
	return ToAllocationDTOs(open), nil
}

// ReleaseOrder gives back the stock held by every active allocation of an order
func (s *AllocationService) ReleaseOrder(ctx context.Context, cmd ReleaseOrderCommand) ([]AllocationDTO, error) {
	if cmd.OrderID == "" {
		return nil, apperrors.ErrValidation("order ID is required")
	}
	if cmd.ReleasedBy == "" {
		return nil, apperrors.ErrValidation("releasedBy is required")
	}

	allocs, err := s.allocations.FindByOrderID(ctx, cmd.OrderID)
	if err != nil {
		return nil, mapDomainError(err)
	}

	var targets []*domain.Allocation
	for _, a := range allocs {
		if a.IsActive() {
			targets = append(targets, a)
		}
	}
	if len(targets) == 0 {
		if len(allocs) == 0 {
			return nil, apperrors.ErrNotFound("allocation").WithDetail("orderId", cmd.OrderID)
		}
		return nil, apperrors.ErrStateConflict("order has no releasable allocations").
			WithDetail("orderId", cmd.OrderID)
	}

	for _, a := range targets {
		if err := s.releaseOne(ctx, a, cmd.Reason, cmd.ReleasedBy); err != nil {
			return nil, mapDomainError(err)
		}
	}

	s.logger.Info("Order released",
		"orderId", cmd.OrderID,
		"allocations", len(targets),
		"reason", cmd.Reason,
	)
	return ToAllocationDTOs(targets), nil
}

// ReleaseAllocation gives back the stock held by a single allocation
func (s *AllocationService) ReleaseAllocation(ctx context.Context, cmd ReleaseAllocationCommand) (*AllocationDTO, error) {
	if cmd.AllocationID == "" {
		return nil, apperrors.ErrValidation("allocation ID is required")
	}
	if cmd.ReleasedBy == "" {
		return nil, apperrors.ErrValidation("releasedBy is required")
	}

	alloc, err := s.allocations.FindByAllocationID(ctx, cmd.AllocationID)
	if err != nil {
		return nil, mapDomainError(err)
	}

	if err := s.releaseOne(ctx, alloc, cmd.Reason, cmd.ReleasedBy); err != nil {
		return nil, mapDomainError(err)
	}

	s.logger.Info("Allocation released",
		"allocationId", alloc.AllocationID,
		"orderId", alloc.OrderID,
		"reason", cmd.Reason,
	)
	return ToAllocationDTO(alloc), nil
}

// CancelPending discards pending allocations of an order that never reached
// the ledger. No ledger effect.
func (s *AllocationService) CancelPending(ctx context.Context, cmd CancelPendingCommand) ([]AllocationDTO, error) {
	if cmd.OrderID == "" {
		return nil, apperrors.ErrValidation("order ID is required")
	}

	allocs, err := s.allocations.FindByOrderID(ctx, cmd.OrderID)
	if err != nil {
		return nil, mapDomainError(err)
	}

	var cancelled []*domain.Allocation
	for _, a := range allocs {
		if a.Status != domain.AllocationStatusPending {
			continue
		}
		if err := a.Cancel(); err != nil {
			return nil, mapDomainError(err)
		}
		if err := s.allocations.Save(ctx, a); err != nil {
			return nil, fmt.Errorf("failed to save allocation %s: %w", a.AllocationID, err)
		}
		cancelled = append(cancelled, a)
	}

	s.logger.Info("Pending allocations cancelled", "orderId", cmd.OrderID, "count", len(cancelled))
	return ToAllocationDTOs(cancelled), nil
}

// GetOrderAllocations lists every allocation of an order
func (s *AllocationService) GetOrderAllocations(ctx context.Context, query GetOrderAllocationsQuery) ([]AllocationDTO, error) {
	if query.OrderID == "" {
		return nil, apperrors.ErrValidation("order ID is required")
	}

	allocs, err := s.allocations.FindByOrderID(ctx, query.OrderID)
	if err != nil {
		return nil, mapDomainError(err)
	}
	return ToAllocationDTOs(allocs), nil
}

// GetAllocation fetches a single allocation by ID
func (s *AllocationService) GetAllocation(ctx context.Context, query GetAllocationQuery) (*AllocationDTO, error) {
	if query.AllocationID == "" {
		return nil, apperrors.ErrValidation("allocation ID is required")
	}

	alloc, err := s.allocations.FindByAllocationID(ctx, query.AllocationID)
	if err != nil {
		return nil, mapDomainError(err)
	}
	return ToAllocationDTO(alloc), nil
}

// releaseExisting releases or cancels every non-terminal allocation of an
// order before a re-allocation run.
func (s *AllocationService) releaseExisting(ctx context.Context, orderID, actor string) error {
	existing, err := s.allocations.FindByOrderID(ctx, orderID)
	if err != nil {
		return err
	}

	released := 0
	for _, a := range existing {
		switch {
		case a.Status == domain.AllocationStatusPending:
			if err := a.Cancel(); err != nil {
				return err
			}
			if err := s.allocations.Save(ctx, a); err != nil {
				return fmt.Errorf("failed to save allocation %s: %w", a.AllocationID, err)
			}
			released++
		case a.IsActive():
			if err := s.releaseOne(ctx, a, "re-allocation", actor); err != nil {
				return err
			}
			released++
		}
	}

	if released > 0 {
		s.logger.Info("Released existing allocations before re-allocation",
			"orderId", orderID, "count", released)
	}
	return nil
}

// releaseOne returns one allocation's quantity to the ledger and moves it to
// released. Allocated quantity goes back to available; confirmed quantity was
// already consumed and is restocked instead.
func (s *AllocationService) releaseOne(ctx context.Context, a *domain.Allocation, reason, actor string) error {
	switch a.Status {
	case domain.AllocationStatusAllocated:
		if err := s.ledger.Release(ctx, a.BatchID, a.LocationID, a.Quantity, actor, reason); err != nil {
			return err
		}
	case domain.AllocationStatusConfirmed:
		if err := s.ledger.Restock(ctx, a.BatchID, a.LocationID, a.Quantity, actor, reason); err != nil {
			return err
		}
	default:
		if a.Status.IsTerminal() {
			return domain.ErrAllocationTerminal
		}
		return domain.ErrAllocationNotActive
	}

	if err := a.Release(actor, reason); err != nil {
		return err
	}
	if err := s.allocations.Save(ctx, a); err != nil {
		return fmt.Errorf("failed to save allocation %s: %w", a.AllocationID, err)
	}
	s.publishDomainEvents(ctx, a)
	return nil
}

// rollbackReservations undoes every ledger reservation of a failed run,
// newest first. Failures are logged and skipped so the remaining
// reservations still get released.
func (s *AllocationService) rollbackReservations(ctx context.Context, reserved []*domain.Allocation, actor string) {
	for i := len(reserved) - 1; i >= 0; i-- {
		a := reserved[i]
		if err := s.ledger.Release(ctx, a.BatchID, a.LocationID, a.Quantity, actor, "allocation rollback"); err != nil {
			s.logger.WithError(err).Error("Failed to roll back reservation",
				"batchId", a.BatchID, "locationId", a.LocationID, "quantity", a.Quantity)
		}
	}
	if len(reserved) > 0 {
		s.metrics.RecordRollback()
	}
}

// discardSaved moves already-persisted rows of a failed run to released so no
// allocation rows survive. Their reservations are rolled back separately.
func (s *AllocationService) discardSaved(ctx context.Context, saved []*domain.Allocation, actor string) {
	for _, a := range saved {
		if err := a.Release(actor, "allocation rollback"); err != nil {
			continue
		}
		a.ClearDomainEvents()
		if err := s.allocations.Save(ctx, a); err != nil {
			s.logger.WithError(err).Error("Failed to discard allocation after rollback",
				"allocationId", a.AllocationID)
		}
	}
}

func (s *AllocationService) publishDomainEvents(ctx context.Context, a *domain.Allocation) {
	for _, event := range a.GetDomainEvents() {
		s.recordOutboxEvent(ctx, a.AllocationID, "allocation", kafka.Topics.AllocationEvents, event)
	}
	a.ClearDomainEvents()
}

func (s *AllocationService) recordOutboxEvent(ctx context.Context, aggregateID, aggregateType, topic string, event outbox.DomainEvent) {
	entry, err := outbox.NewOutboxEvent(aggregateID, aggregateType, topic, event)
	if err == nil {
		err = s.outboxRepo.Save(ctx, entry)
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to record outbox event",
			"eventType", event.EventType(), "aggregateId", aggregateID)
	}
}

// openAllocations loads the non-terminal allocations of an order, failing
// with not-found when the order has none at all.
func (s *AllocationService) openAllocations(ctx context.Context, orderID string) ([]*domain.Allocation, error) {
	allocs, err := s.allocations.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, mapDomainError(err)
	}

	var open []*domain.Allocation
	for _, a := range allocs {
		if a.Status == domain.AllocationStatusReleased || a.Status == domain.AllocationStatusCancelled {
			continue
		}
		open = append(open, a)
	}
	if len(open) == 0 {
		return nil, apperrors.ErrNotFound("allocation").WithDetail("orderId", orderID)
	}
	return open, nil
}
