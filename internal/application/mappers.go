package application

import (
	"github.com/wms-platform/allocation-service/internal/domain"
)

// ToAllocationDTO converts a domain allocation to a DTO
func ToAllocationDTO(a *domain.Allocation) *AllocationDTO {
	return &AllocationDTO{
		AllocationID:  a.AllocationID,
		OrderID:       a.OrderID,
		OrderItemID:   a.OrderItemID,
		ItemRef:       a.ItemRef,
		BatchID:       a.BatchID,
		LotNumber:     a.LotNumber,
		LocationID:    a.LocationID,
		WarehouseID:   a.WarehouseID,
		Quantity:      a.Quantity,
		Status:        string(a.Status),
		ReleaseReason: a.ReleaseReason,
		ConfirmedAt:   a.ConfirmedAt,
		ReleasedAt:    a.ReleasedAt,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// ToAllocationDTOs converts a slice of domain allocations
func ToAllocationDTOs(allocations []*domain.Allocation) []AllocationDTO {
	dtos := make([]AllocationDTO, len(allocations))
	for i, a := range allocations {
		dtos[i] = *ToAllocationDTO(a)
	}
	return dtos
}

// ToBatchDTO converts a domain batch to a DTO
func ToBatchDTO(b *domain.Batch) BatchDTO {
	return BatchDTO{
		BatchID:    b.BatchID,
		ItemRef:    b.ItemRef,
		ItemType:   string(b.ItemType),
		LotNumber:  b.LotNumber,
		MfgDate:    b.MfgDate,
		ExpiryDate: b.ExpiryDate,
		ReceivedAt: b.ReceivedAt,
	}
}

// ToLocationInventoryDTO converts a location row to a DTO
func ToLocationInventoryDTO(l *domain.LocationInventory) *LocationInventoryDTO {
	return &LocationInventoryDTO{
		BatchID:     l.BatchID,
		LocationID:  l.LocationID,
		WarehouseID: l.WarehouseID,
		OnHandQty:   l.OnHandQty,
		ReservedQty: l.ReservedQty,
		Available:   l.Available(),
		Status:      string(l.Status),
		UpdatedAt:   l.UpdatedAt,
	}
}

// ToWarehouseInventoryDTO converts a warehouse aggregate to a DTO
func ToWarehouseInventoryDTO(w *domain.WarehouseInventory) WarehouseInventoryDTO {
	return WarehouseInventoryDTO{
		WarehouseID: w.WarehouseID,
		BatchID:     w.BatchID,
		ItemRef:     w.ItemRef,
		TotalQty:    w.TotalQty,
		ReservedQty: w.ReservedQty,
		Available:   w.Available(),
		StorageFee:  w.StorageFee,
		UpdatedAt:   w.UpdatedAt,
	}
}

// ToCandidateDTOs converts a candidate snapshot to DTOs
func ToCandidateDTOs(candidates []domain.BatchCandidate) []CandidateDTO {
	dtos := make([]CandidateDTO, len(candidates))
	for i, c := range candidates {
		dtos[i] = CandidateDTO{
			BatchID:    c.BatchID,
			LotNumber:  c.LotNumber,
			LocationID: c.LocationID,
			MfgDate:    c.MfgDate,
			ExpiryDate: c.ExpiryDate,
			ReceivedAt: c.ReceivedAt,
			Available:  c.Available,
		}
	}
	return dtos
}

// ToHistoryEntryDTO converts an audit entry to a DTO
func ToHistoryEntryDTO(e *domain.HistoryEntry) HistoryEntryDTO {
	return HistoryEntryDTO{
		EntryID:    e.EntryID,
		TargetType: string(e.TargetType),
		TargetID:   e.TargetID,
		ActionType: string(e.ActionType),
		PrevQty:    e.PrevQty,
		Delta:      e.Delta,
		NewQty:     e.NewQty,
		Actor:      e.Actor,
		Reason:     e.Reason,
		Metadata:   e.Metadata,
		OccurredAt: e.OccurredAt,
	}
}
