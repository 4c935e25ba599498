package backtest

import (
	"context"
	"fmt"
	"time"

	"viklyst/internal/domain"
	"viklyst/internal/storage"
)

// Compile-time interface check.
var _ BarSource = (*StoreBarSource)(nil)

// StoreBarSource reads bars from the persistence layer, checking the symbol
// against the instrument registry first so an unknown symbol fails with
// storage.ErrNotFound rather than an empty series.
type StoreBarSource struct {
	instruments storage.InstrumentStore
	bars        storage.DailyBarStore
}

// NewStoreBarSource creates a StoreBarSource.
func NewStoreBarSource(instruments storage.InstrumentStore, bars storage.DailyBarStore) *StoreBarSource {
	return &StoreBarSource{instruments: instruments, bars: bars}
}

// DailyBars returns the symbol's bars over [from, to], sorted by day.
func (s *StoreBarSource) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]*domain.Bar, error) {
	if _, err := s.instruments.GetBySymbol(ctx, symbol); err != nil {
		return nil, fmt.Errorf("instrument %s: %w", symbol, err)
	}

	bars, err := s.bars.GetBySymbolRange(ctx, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("bars for %s: %w", symbol, err)
	}
	return bars, nil
}
