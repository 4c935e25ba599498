package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"viklyst/internal/domain"
	"viklyst/internal/storage"
)

func day(s string) time.Time {
	t, err := domain.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestBarStore_InsertBulkAndGet(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	bars := []*domain.Bar{
		{Symbol: "AAPL", Day: day("2025-01-02"), Close: 100},
		{Symbol: "AAPL", Day: day("2025-01-03"), Close: 102},
		{Symbol: "MSFT", Day: day("2025-01-02"), Close: 400},
	}

	if err := store.InsertBulk(ctx, bars); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetBySymbolRange(ctx, "AAPL", day("2025-01-01"), day("2025-01-31"))
	if err != nil {
		t.Fatalf("GetBySymbolRange failed: %v", err)
	}

	if len(result) != 2 {
		t.Fatalf("Expected 2 bars, got %d", len(result))
	}
	if !result[0].Day.Before(result[1].Day) {
		t.Errorf("Expected bars ordered by day ASC, got %v then %v", result[0].Day, result[1].Day)
	}
}

func TestBarStore_RangeIsInclusive(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	bars := []*domain.Bar{
		{Symbol: "AAPL", Day: day("2025-01-02"), Close: 100},
		{Symbol: "AAPL", Day: day("2025-01-03"), Close: 102},
		{Symbol: "AAPL", Day: day("2025-01-06"), Close: 101},
	}
	if err := store.InsertBulk(ctx, bars); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetBySymbolRange(ctx, "AAPL", day("2025-01-03"), day("2025-01-06"))
	if err != nil {
		t.Fatalf("GetBySymbolRange failed: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("Expected 2 bars in inclusive range, got %d", len(result))
	}
}

func TestBarStore_DuplicateKey(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	bars := []*domain.Bar{
		{Symbol: "AAPL", Day: day("2025-01-02"), Close: 100},
	}

	if err := store.InsertBulk(ctx, bars); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.InsertBulk(ctx, bars)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestBarStore_IntraBatchDuplicate(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	bars := []*domain.Bar{
		{Symbol: "AAPL", Day: day("2025-01-02"), Close: 100},
		{Symbol: "AAPL", Day: day("2025-01-02"), Close: 101},
	}

	err := store.InsertBulk(ctx, bars)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// Batch must fail atomically: nothing inserted
	result, err := store.GetBySymbolRange(ctx, "AAPL", day("2025-01-01"), day("2025-01-31"))
	if err != nil {
		t.Fatalf("GetBySymbolRange failed: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("Expected 0 bars after failed batch, got %d", len(result))
	}
}

func TestBarStore_GetCoverage(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	if _, _, err := store.GetCoverage(ctx, "AAPL"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for empty store, got %v", err)
	}

	bars := []*domain.Bar{
		{Symbol: "AAPL", Day: day("2025-01-06"), Close: 101},
		{Symbol: "AAPL", Day: day("2025-01-02"), Close: 100},
	}
	if err := store.InsertBulk(ctx, bars); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	first, last, err := store.GetCoverage(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetCoverage failed: %v", err)
	}
	if !first.Equal(day("2025-01-02")) {
		t.Errorf("Expected first day 2025-01-02, got %v", first)
	}
	if !last.Equal(day("2025-01-06")) {
		t.Errorf("Expected last day 2025-01-06, got %v", last)
	}
}

func TestBarStore_InvalidInput(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.Bar{{Day: day("2025-01-02")}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty symbol, got %v", err)
	}
}
