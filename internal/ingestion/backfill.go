// Package ingestion pulls instrument price history and live ticks from the
// market data provider into the bar stores.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"viklyst/internal/domain"
	"viklyst/internal/storage"
)

// HistorySource supplies daily bar history for a symbol and range.
type HistorySource interface {
	GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]*domain.Bar, error)
}

// BackfillResult summarizes one backfill pass.
type BackfillResult struct {
	Symbol   string
	Fetched  int
	Inserted int
	Skipped  int // rows already present
}

// Backfiller loads daily history for configured instruments into a bar store.
type Backfiller struct {
	source HistorySource
	bars   storage.DailyBarStore
	logger zerolog.Logger
}

// NewBackfiller creates a Backfiller.
func NewBackfiller(source HistorySource, bars storage.DailyBarStore, logger zerolog.Logger) *Backfiller {
	return &Backfiller{source: source, bars: bars, logger: logger}
}

// Backfill fetches [from, to] history for symbol and bulk-inserts it.
// Rows already present are skipped one by one rather than failing the pass,
// so re-running a backfill over an overlapping range is safe.
func (b *Backfiller) Backfill(ctx context.Context, symbol string, from, to time.Time) (*BackfillResult, error) {
	bars, err := b.source.GetDailyBars(ctx, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch history for %s: %w", symbol, err)
	}

	result := &BackfillResult{Symbol: symbol, Fetched: len(bars)}
	if len(bars) == 0 {
		return result, nil
	}

	err = b.bars.InsertBulk(ctx, bars)
	switch {
	case err == nil:
		result.Inserted = len(bars)
	case errors.Is(err, storage.ErrDuplicateKey):
		// Overlap with existing coverage; insert row by row, skipping dups.
		for _, bar := range bars {
			insErr := b.bars.InsertBulk(ctx, []*domain.Bar{bar})
			switch {
			case insErr == nil:
				result.Inserted++
			case errors.Is(insErr, storage.ErrDuplicateKey):
				result.Skipped++
			default:
				return nil, fmt.Errorf("insert bar %s %s: %w",
					symbol, domain.FormatDay(bar.Day), insErr)
			}
		}
	default:
		return nil, fmt.Errorf("insert bars for %s: %w", symbol, err)
	}

	b.logger.Info().
		Str("symbol", symbol).
		Int("fetched", result.Fetched).
		Int("inserted", result.Inserted).
		Int("skipped", result.Skipped).
		Msg("backfill complete")

	return result, nil
}

// BackfillAll runs Backfill for each symbol. A failing symbol is logged and
// skipped; the error of the last failure is returned after all symbols ran.
func (b *Backfiller) BackfillAll(ctx context.Context, symbols []string, from, to time.Time) ([]*BackfillResult, error) {
	results := make([]*BackfillResult, 0, len(symbols))
	var lastErr error

	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}

		res, err := b.Backfill(ctx, symbol, from, to)
		if err != nil {
			b.logger.Error().Str("symbol", symbol).Err(err).Msg("backfill failed")
			lastErr = err
			continue
		}
		results = append(results, res)
	}

	return results, lastErr
}
