package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"viklyst/internal/domain"
	"viklyst/internal/storage"
)

// BarStore is an in-memory implementation of storage.DailyBarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Bar // keyed by (symbol, day)
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[string]*domain.Bar),
	}
}

// Compile-time interface check.
var _ storage.DailyBarStore = (*BarStore)(nil)

// barKey generates a unique key for a bar.
func barKey(symbol string, day time.Time) string {
	return fmt.Sprintf("%s|%s", symbol, domain.FormatDay(day))
}

// InsertBulk adds multiple bars. Fails entire batch on any duplicate.
func (s *BarStore) InsertBulk(_ context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: check for duplicates (existing + intra-batch)
	batchKeys := make(map[string]struct{}, len(bars))
	for _, b := range bars {
		if b == nil || b.Symbol == "" {
			return storage.ErrInvalidInput
		}
		key := barKey(b.Symbol, b.Day)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, b := range bars {
		barCopy := *b
		barCopy.Day = barCopy.Day.UTC()
		s.data[barKey(b.Symbol, b.Day)] = &barCopy
	}

	return nil
}

// GetBySymbolRange retrieves bars for a symbol within [from, to] inclusive, ordered by day ASC.
func (s *BarStore) GetBySymbolRange(_ context.Context, symbol string, from, to time.Time) ([]*domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fromDay := from.UTC().Truncate(24 * time.Hour)
	toDay := to.UTC().Truncate(24 * time.Hour)

	var result []*domain.Bar
	for _, b := range s.data {
		if b.Symbol != symbol {
			continue
		}
		if b.Day.Before(fromDay) || b.Day.After(toDay) {
			continue
		}
		barCopy := *b
		result = append(result, &barCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Day.Before(result[j].Day)
	})

	return result, nil
}

// GetCoverage returns the first and last stored day for a symbol.
func (s *BarStore) GetCoverage(_ context.Context, symbol string) (time.Time, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var first, last time.Time
	found := false
	for _, b := range s.data {
		if b.Symbol != symbol {
			continue
		}
		if !found {
			first, last = b.Day, b.Day
			found = true
			continue
		}
		if b.Day.Before(first) {
			first = b.Day
		}
		if b.Day.After(last) {
			last = b.Day
		}
	}

	if !found {
		return time.Time{}, time.Time{}, storage.ErrNotFound
	}
	return first, last, nil
}
