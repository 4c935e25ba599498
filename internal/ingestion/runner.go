package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"viklyst/internal/domain"
	"viklyst/internal/marketdata"
	"viklyst/internal/observability"
	"viklyst/internal/storage"
)

// TickSource hands out per-symbol trade tick channels.
type TickSource interface {
	Subscribe(symbol string) (<-chan marketdata.Tick, error)
}

// Runner consumes live trade ticks for the configured symbols, folds them
// into daily bars and persists each bar once its day is complete.
type Runner struct {
	ticks      TickSource
	bars       storage.DailyBarStore
	symbols    []string
	aggregator *BarAggregator
	logger     zerolog.Logger

	onBarStored func(*domain.Bar)
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	TickSource  TickSource
	BarStore    storage.DailyBarStore
	Symbols     []string
	Logger      zerolog.Logger
	OnBarStored func(*domain.Bar) // optional, called after each persisted bar
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	return &Runner{
		ticks:       opts.TickSource,
		bars:        opts.BarStore,
		symbols:     opts.Symbols,
		aggregator:  NewBarAggregator(),
		logger:      opts.Logger,
		onBarStored: opts.OnBarStored,
	}
}

// Run subscribes to every configured symbol and consumes ticks until the
// context is cancelled. Completed daily bars are persisted as they close;
// the still-open bar of the current day is discarded at shutdown, the next
// backfill pass recovers it.
func (r *Runner) Run(ctx context.Context) error {
	if len(r.symbols) == 0 {
		return fmt.Errorf("no symbols configured")
	}

	merged := make(chan marketdata.Tick)
	var wg sync.WaitGroup

	for _, symbol := range r.symbols {
		ch, err := r.ticks.Subscribe(symbol)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", symbol, err)
		}
		r.logger.Info().Str("symbol", symbol).Msg("subscribed to tick feed")

		wg.Add(1)
		go func() {
			defer wg.Done()
			for tick := range ch {
				select {
				case merged <- tick:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(merged)
	}()

	for {
		select {
		case <-ctx.Done():
			r.drainOpenBars()
			return ctx.Err()
		case tick, ok := <-merged:
			if !ok {
				r.drainOpenBars()
				return nil
			}
			observability.RecordTickProcessed()
			if completed := r.aggregator.Apply(tick); completed != nil {
				r.storeBar(ctx, completed)
			}
		}
	}
}

func (r *Runner) storeBar(ctx context.Context, bar *domain.Bar) {
	err := r.bars.InsertBulk(ctx, []*domain.Bar{bar})
	switch {
	case err == nil:
		r.logger.Info().
			Str("symbol", bar.Symbol).
			Str("day", domain.FormatDay(bar.Day)).
			Float64("close", bar.Close).
			Msg("daily bar stored")
		if r.onBarStored != nil {
			r.onBarStored(bar)
		}
	case errors.Is(err, storage.ErrDuplicateKey):
		r.logger.Debug().
			Str("symbol", bar.Symbol).
			Str("day", domain.FormatDay(bar.Day)).
			Msg("daily bar already present")
	default:
		r.logger.Error().
			Str("symbol", bar.Symbol).
			Str("day", domain.FormatDay(bar.Day)).
			Err(err).
			Msg("store daily bar failed")
	}
}

func (r *Runner) drainOpenBars() {
	for _, bar := range r.aggregator.Flush() {
		r.logger.Info().
			Str("symbol", bar.Symbol).
			Str("day", domain.FormatDay(bar.Day)).
			Msg("discarding incomplete bar at shutdown")
	}
}
