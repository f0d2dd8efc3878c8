package domain

import (
	"sort"
	"time"
)

// BatchCandidate is an immutable snapshot of one selectable location row,
// joined with its batch metadata. Selection never mutates candidates; the
// ledger re-checks quantities when the reservation is committed.
type BatchCandidate struct {
	BatchID    string
	ItemRef    string
	LotNumber  string
	LocationID string
	MfgDate    time.Time
	ExpiryDate *time.Time
	ReceivedAt time.Time
	Available  int
}

// BatchDraw is one slice of a selection result: take Quantity units of
// BatchID from LocationID.
type BatchDraw struct {
	BatchID    string
	LocationID string
	LotNumber  string
	Quantity   int
}

// SelectionStrategy picks batches to satisfy one line item. Implementations
// must be deterministic: identical candidate snapshots yield identical draws.
// Selection is all-or-nothing; a shortfall returns *ShortageError and no draws.
type SelectionStrategy interface {
	Name() string
	Select(candidates []BatchCandidate, itemRef string, required int) ([]BatchDraw, error)
}

const (
	StrategyFEFO          = "fefo"
	StrategyLIFO          = "lifo"
	StrategyFixedLocation = "fixed_location"
)

// StrategyFor resolves a strategy key. An empty key selects FEFO, the
// engine default. FixedLocation additionally needs the requested location.
func StrategyFor(key, locationID string) (SelectionStrategy, error) {
	switch key {
	case "", StrategyFEFO:
		return FEFOStrategy{}, nil
	case StrategyLIFO:
		return LIFOStrategy{}, nil
	case StrategyFixedLocation:
		if locationID == "" {
			return nil, ErrInvalidLocation
		}
		return FixedLocationStrategy{LocationID: locationID}, nil
	default:
		return nil, ErrUnknownStrategy
	}
}

// FEFOStrategy drains batches first-expired-first-out. Batches without an
// expiry date sort last; ties break on manufacturing date, then batch ID,
// then location ID, which keeps the ordering total and repeatable.
type FEFOStrategy struct{}

func (FEFOStrategy) Name() string { return StrategyFEFO }

func (FEFOStrategy) Select(candidates []BatchCandidate, itemRef string, required int) ([]BatchDraw, error) {
	pool := selectable(candidates)
	sort.SliceStable(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		switch {
		case a.ExpiryDate == nil && b.ExpiryDate != nil:
			return false
		case a.ExpiryDate != nil && b.ExpiryDate == nil:
			return true
		case a.ExpiryDate != nil && b.ExpiryDate != nil && !a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.ExpiryDate.Before(*b.ExpiryDate)
		}
		if !a.MfgDate.Equal(b.MfgDate) {
			return a.MfgDate.Before(b.MfgDate)
		}
		if a.BatchID != b.BatchID {
			return a.BatchID < b.BatchID
		}
		return a.LocationID < b.LocationID
	})
	return drain(pool, itemRef, required)
}

// LIFOStrategy drains the most recently received batches first. Used for
// items where freshness on the outbound side matters more than rotation.
type LIFOStrategy struct{}

func (LIFOStrategy) Name() string { return StrategyLIFO }

func (LIFOStrategy) Select(candidates []BatchCandidate, itemRef string, required int) ([]BatchDraw, error) {
	pool := selectable(candidates)
	sort.SliceStable(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if !a.ReceivedAt.Equal(b.ReceivedAt) {
			return a.ReceivedAt.After(b.ReceivedAt)
		}
		if a.BatchID != b.BatchID {
			return a.BatchID < b.BatchID
		}
		return a.LocationID < b.LocationID
	})
	return drain(pool, itemRef, required)
}

// FixedLocationStrategy restricts selection to a single location and falls
// back to FEFO ordering among the batches stored there.
type FixedLocationStrategy struct {
	LocationID string
}

func (FixedLocationStrategy) Name() string { return StrategyFixedLocation }

func (s FixedLocationStrategy) Select(candidates []BatchCandidate, itemRef string, required int) ([]BatchDraw, error) {
	restricted := make([]BatchCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.LocationID == s.LocationID {
			restricted = append(restricted, c)
		}
	}
	return FEFOStrategy{}.Select(restricted, itemRef, required)
}

func selectable(candidates []BatchCandidate) []BatchCandidate {
	pool := make([]BatchCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Available > 0 {
			pool = append(pool, c)
		}
	}
	return pool
}

// drain walks the ordered pool and accumulates draws until the requirement
// is met. The total is checked first so a shortfall never yields partial draws.
func drain(pool []BatchCandidate, itemRef string, required int) ([]BatchDraw, error) {
	if required <= 0 {
		return nil, ErrInvalidQuantity
	}

	total := 0
	for _, c := range pool {
		total += c.Available
	}
	if total < required {
		return nil, &ShortageError{ItemRef: itemRef, Requested: required, Available: total}
	}

	draws := make([]BatchDraw, 0, 2)
	remaining := required
	for _, c := range pool {
		if remaining == 0 {
			break
		}
		take := c.Available
		if take > remaining {
			take = remaining
		}
		draws = append(draws, BatchDraw{
			BatchID:    c.BatchID,
			LocationID: c.LocationID,
			LotNumber:  c.LotNumber,
			Quantity:   take,
		})
		remaining -= take
	}
	return draws, nil
}
