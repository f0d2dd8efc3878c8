package domain

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFEFOSelect(t *testing.T) {
	tests := []struct {
		name       string
		candidates []BatchCandidate
		required   int
		want       []BatchDraw
		wantErr    error
	}{
		{
			name: "splits across two batches by expiry",
			candidates: []BatchCandidate{
				{BatchID: "BAT-2", LocationID: "LOC-B", ExpiryDate: datePtr(2025, 6, 1), MfgDate: date(2024, 5, 1), Available: 20},
				{BatchID: "BAT-1", LocationID: "LOC-A", ExpiryDate: datePtr(2025, 1, 1), MfgDate: date(2024, 1, 1), Available: 10},
			},
			required: 15,
			want: []BatchDraw{
				{BatchID: "BAT-1", LocationID: "LOC-A", Quantity: 10},
				{BatchID: "BAT-2", LocationID: "LOC-B", Quantity: 5},
			},
		},
		{
			name: "exact fit from earliest batch",
			candidates: []BatchCandidate{
				{BatchID: "BAT-1", LocationID: "LOC-A", ExpiryDate: datePtr(2025, 1, 1), Available: 10},
				{BatchID: "BAT-2", LocationID: "LOC-B", ExpiryDate: datePtr(2025, 6, 1), Available: 20},
			},
			required: 10,
			want: []BatchDraw{
				{BatchID: "BAT-1", LocationID: "LOC-A", Quantity: 10},
			},
		},
		{
			name: "nil expiry sorts last",
			candidates: []BatchCandidate{
				{BatchID: "BAT-NOEXP", LocationID: "LOC-A", ExpiryDate: nil, Available: 50},
				{BatchID: "BAT-EXP", LocationID: "LOC-B", ExpiryDate: datePtr(2026, 1, 1), Available: 5},
			},
			required: 8,
			want: []BatchDraw{
				{BatchID: "BAT-EXP", LocationID: "LOC-B", Quantity: 5},
				{BatchID: "BAT-NOEXP", LocationID: "LOC-A", Quantity: 3},
			},
		},
		{
			name: "equal expiry breaks tie on mfg date",
			candidates: []BatchCandidate{
				{BatchID: "BAT-NEW", LocationID: "LOC-A", ExpiryDate: datePtr(2025, 6, 1), MfgDate: date(2024, 6, 1), Available: 10},
				{BatchID: "BAT-OLD", LocationID: "LOC-B", ExpiryDate: datePtr(2025, 6, 1), MfgDate: date(2024, 1, 1), Available: 10},
			},
			required: 5,
			want: []BatchDraw{
				{BatchID: "BAT-OLD", LocationID: "LOC-B", Quantity: 5},
			},
		},
		{
			name: "equal expiry and mfg breaks tie on batch ID",
			candidates: []BatchCandidate{
				{BatchID: "BAT-B", LocationID: "LOC-1", ExpiryDate: datePtr(2025, 6, 1), MfgDate: date(2024, 1, 1), Available: 10},
				{BatchID: "BAT-A", LocationID: "LOC-2", ExpiryDate: datePtr(2025, 6, 1), MfgDate: date(2024, 1, 1), Available: 10},
			},
			required: 5,
			want: []BatchDraw{
				{BatchID: "BAT-A", LocationID: "LOC-2", Quantity: 5},
			},
		},
		{
			name: "shortfall yields no draws",
			candidates: []BatchCandidate{
				{BatchID: "BAT-1", LocationID: "LOC-A", ExpiryDate: datePtr(2025, 1, 1), Available: 30},
			},
			required: 50,
			wantErr:  ErrInsufficientStock,
		},
		{
			name:       "empty pool",
			candidates: nil,
			required:   1,
			wantErr:    ErrInsufficientStock,
		},
		{
			name: "zero available rows are skipped",
			candidates: []BatchCandidate{
				{BatchID: "BAT-EMPTY", LocationID: "LOC-A", ExpiryDate: datePtr(2025, 1, 1), Available: 0},
				{BatchID: "BAT-FULL", LocationID: "LOC-B", ExpiryDate: datePtr(2025, 6, 1), Available: 10},
			},
			required: 3,
			want: []BatchDraw{
				{BatchID: "BAT-FULL", LocationID: "LOC-B", Quantity: 3},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FEFOStrategy{}.Select(tt.candidates, "SKU-1", tt.required)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Select() error = %v, want %v", err, tt.wantErr)
				}
				if len(got) != 0 {
					t.Errorf("Select() returned %d draws on failure, want 0", len(got))
				}
				return
			}
			if err != nil {
				t.Fatalf("Select() unexpected error: %v", err)
			}

			stripLots(got)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Select() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFEFOSelectDeterministic(t *testing.T) {
	candidates := []BatchCandidate{
		{BatchID: "BAT-3", LocationID: "LOC-C", ExpiryDate: nil, Available: 40},
		{BatchID: "BAT-1", LocationID: "LOC-A", ExpiryDate: datePtr(2025, 1, 1), Available: 10},
		{BatchID: "BAT-2", LocationID: "LOC-B", ExpiryDate: datePtr(2025, 6, 1), Available: 20},
	}

	first, err := FEFOStrategy{}.Select(candidates, "SKU-1", 35)
	if err != nil {
		t.Fatalf("Select() unexpected error: %v", err)
	}

	for i := 0; i < 20; i++ {
		got, err := FEFOStrategy{}.Select(candidates, "SKU-1", 35)
		if err != nil {
			t.Fatalf("Select() run %d unexpected error: %v", i, err)
		}
		if !reflect.DeepEqual(got, first) {
			t.Fatalf("Select() run %d = %+v, differs from first run %+v", i, got, first)
		}
	}
}

func TestShortageErrorDetail(t *testing.T) {
	candidates := []BatchCandidate{
		{BatchID: "BAT-1", LocationID: "LOC-A", Available: 30},
	}

	_, err := FEFOStrategy{}.Select(candidates, "SKU-9", 50)

	var shortage *ShortageError
	if !errors.As(err, &shortage) {
		t.Fatalf("Select() error = %v, want *ShortageError", err)
	}
	if shortage.ItemRef != "SKU-9" || shortage.Requested != 50 || shortage.Available != 30 {
		t.Errorf("ShortageError = %+v, want {SKU-9 50 30}", shortage)
	}
}

func TestLIFOSelect(t *testing.T) {
	candidates := []BatchCandidate{
		{BatchID: "BAT-OLD", LocationID: "LOC-A", ReceivedAt: date(2025, 1, 1), Available: 10},
		{BatchID: "BAT-NEW", LocationID: "LOC-B", ReceivedAt: date(2025, 3, 1), Available: 10},
	}

	got, err := LIFOStrategy{}.Select(candidates, "SKU-1", 12)
	if err != nil {
		t.Fatalf("Select() unexpected error: %v", err)
	}

	want := []BatchDraw{
		{BatchID: "BAT-NEW", LocationID: "LOC-B", Quantity: 10},
		{BatchID: "BAT-OLD", LocationID: "LOC-A", Quantity: 2},
	}
	stripLots(got)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Select() = %+v, want %+v", got, want)
	}
}

func TestFixedLocationSelect(t *testing.T) {
	candidates := []BatchCandidate{
		{BatchID: "BAT-1", LocationID: "LOC-A", ExpiryDate: datePtr(2025, 1, 1), Available: 10},
		{BatchID: "BAT-2", LocationID: "LOC-B", ExpiryDate: datePtr(2025, 6, 1), Available: 20},
	}

	got, err := FixedLocationStrategy{LocationID: "LOC-B"}.Select(candidates, "SKU-1", 15)
	if err != nil {
		t.Fatalf("Select() unexpected error: %v", err)
	}
	want := []BatchDraw{{BatchID: "BAT-2", LocationID: "LOC-B", Quantity: 15}}
	stripLots(got)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Select() = %+v, want %+v", got, want)
	}

	// Other locations must not plug a shortfall.
	_, err = FixedLocationStrategy{LocationID: "LOC-A"}.Select(candidates, "SKU-1", 15)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Errorf("Select() error = %v, want %v", err, ErrInsufficientStock)
	}
}

func TestStrategyFor(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		locationID string
		wantName   string
		wantErr    error
	}{
		{name: "empty key defaults to fefo", key: "", wantName: StrategyFEFO},
		{name: "fefo", key: "fefo", wantName: StrategyFEFO},
		{name: "lifo", key: "lifo", wantName: StrategyLIFO},
		{name: "fixed location", key: "fixed_location", locationID: "LOC-1", wantName: StrategyFixedLocation},
		{name: "fixed location without location", key: "fixed_location", wantErr: ErrInvalidLocation},
		{name: "unknown key", key: "random", wantErr: ErrUnknownStrategy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StrategyFor(tt.key, tt.locationID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("StrategyFor() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("StrategyFor() unexpected error: %v", err)
			}
			if got.Name() != tt.wantName {
				t.Errorf("StrategyFor() = %s, want %s", got.Name(), tt.wantName)
			}
		})
	}
}

func stripLots(draws []BatchDraw) {
	for i := range draws {
		draws[i].LotNumber = ""
	}
}
