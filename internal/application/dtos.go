package application

import "time"

// AllocationDTO represents an order allocation in API responses
type AllocationDTO struct {
	AllocationID  string     `json:"allocationId"`
	OrderID       string     `json:"orderId"`
	OrderItemID   string     `json:"orderItemId"`
	ItemRef       string     `json:"itemRef"`
	BatchID       string     `json:"batchId"`
	LotNumber     string     `json:"lotNumber,omitempty"`
	LocationID    string     `json:"locationId"`
	WarehouseID   string     `json:"warehouseId"`
	Quantity      int        `json:"quantity"`
	Status        string     `json:"status"`
	ReleaseReason string     `json:"releaseReason,omitempty"`
	ConfirmedAt   *time.Time `json:"confirmedAt,omitempty"`
	ReleasedAt    *time.Time `json:"releasedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// AllocationResultDTO is the outcome of a successful order allocation
type AllocationResultDTO struct {
	OrderID     string          `json:"orderId"`
	WarehouseID string          `json:"warehouseId"`
	Strategy    string          `json:"strategy"`
	Allocations []AllocationDTO `json:"allocations"`
}

// BatchDTO represents a received batch
type BatchDTO struct {
	BatchID    string     `json:"batchId"`
	ItemRef    string     `json:"itemRef"`
	ItemType   string     `json:"itemType"`
	LotNumber  string     `json:"lotNumber,omitempty"`
	MfgDate    time.Time  `json:"mfgDate"`
	ExpiryDate *time.Time `json:"expiryDate,omitempty"`
	ReceivedAt time.Time  `json:"receivedAt"`
}

// RegisterBatchResultDTO is the outcome of an initial stock load
type RegisterBatchResultDTO struct {
	Batch       BatchDTO `json:"batch"`
	LocationID  string   `json:"locationId"`
	WarehouseID string   `json:"warehouseId"`
	Quantity    int      `json:"quantity"`
}

// LocationInventoryDTO represents one location row
type LocationInventoryDTO struct {
	BatchID     string    `json:"batchId"`
	LocationID  string    `json:"locationId"`
	WarehouseID string    `json:"warehouseId"`
	OnHandQty   int       `json:"onHandQty"`
	ReservedQty int       `json:"reservedQty"`
	Available   int       `json:"available"`
	Status      string    `json:"status"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// WarehouseInventoryDTO is the warehouse-level aggregate for one batch
type WarehouseInventoryDTO struct {
	WarehouseID string    `json:"warehouseId"`
	BatchID     string    `json:"batchId"`
	ItemRef     string    `json:"itemRef"`
	TotalQty    int       `json:"totalQty"`
	ReservedQty int       `json:"reservedQty"`
	Available   int       `json:"available"`
	StorageFee  float64   `json:"storageFee"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CandidateDTO is one selectable location row in an availability view
type CandidateDTO struct {
	BatchID    string     `json:"batchId"`
	LotNumber  string     `json:"lotNumber,omitempty"`
	LocationID string     `json:"locationId"`
	MfgDate    time.Time  `json:"mfgDate"`
	ExpiryDate *time.Time `json:"expiryDate,omitempty"`
	ReceivedAt time.Time  `json:"receivedAt"`
	Available  int        `json:"available"`
}

// AvailabilityDTO is the candidate snapshot for one item in one warehouse
type AvailabilityDTO struct {
	ItemRef        string         `json:"itemRef"`
	WarehouseID    string         `json:"warehouseId"`
	TotalAvailable int            `json:"totalAvailable"`
	Candidates     []CandidateDTO `json:"candidates"`
}

// HistoryEntryDTO represents one audit trail entry
type HistoryEntryDTO struct {
	EntryID    string            `json:"entryId"`
	TargetType string            `json:"targetType"`
	TargetID   string            `json:"targetId"`
	ActionType string            `json:"actionType"`
	PrevQty    int               `json:"prevQty"`
	Delta      int               `json:"delta"`
	NewQty     int               `json:"newQty"`
	Actor      string            `json:"actor"`
	Reason     string            `json:"reason,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// HistoryPageDTO is a newest-first page of audit entries
type HistoryPageDTO struct {
	Entries    []HistoryEntryDTO `json:"entries"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	TotalCount int64             `json:"totalCount"`
}

// ConsistencyReportDTO is the outcome of one aggregate consistency check
type ConsistencyReportDTO struct {
	WarehouseID string    `json:"warehouseId"`
	BatchID     string    `json:"batchId"`
	Consistent  bool      `json:"consistent"`
	Detail      string    `json:"detail,omitempty"`
	CheckedAt   time.Time `json:"checkedAt"`
}
