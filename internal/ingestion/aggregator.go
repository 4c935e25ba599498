package ingestion

import (
	"sync"
	"time"

	"viklyst/internal/domain"
	"viklyst/internal/marketdata"
)

// BarAggregator folds trade ticks into in-progress daily bars. A tick for a
// new day finalizes and returns the previous day's bar.
type BarAggregator struct {
	mu      sync.Mutex
	current map[string]*domain.Bar // keyed by symbol, bar for the open day
}

// NewBarAggregator creates an empty aggregator.
func NewBarAggregator() *BarAggregator {
	return &BarAggregator{current: make(map[string]*domain.Bar)}
}

// Apply folds one tick into the symbol's open bar. When the tick starts a
// new day, the previous day's bar is returned as completed; otherwise
// completed is nil.
func (a *BarAggregator) Apply(tick marketdata.Tick) (completed *domain.Bar) {
	day := tick.At.UTC().Truncate(24 * time.Hour)

	a.mu.Lock()
	defer a.mu.Unlock()

	bar, ok := a.current[tick.Symbol]
	if ok && bar.Day.Equal(day) {
		if tick.Price > bar.High {
			bar.High = tick.Price
		}
		if tick.Price < bar.Low {
			bar.Low = tick.Price
		}
		bar.Close = tick.Price
		bar.Volume += tick.Size
		return nil
	}

	a.current[tick.Symbol] = &domain.Bar{
		Symbol: tick.Symbol,
		Day:    day,
		Open:   tick.Price,
		High:   tick.Price,
		Low:    tick.Price,
		Close:  tick.Price,
		Volume: tick.Size,
	}

	if ok {
		// Ticks arrive in order per symbol, so a day change closes the bar.
		return bar
	}
	return nil
}

// Open returns a copy of the symbol's in-progress bar, or nil if no tick has
// arrived for the open day.
func (a *BarAggregator) Open(symbol string) *domain.Bar {
	a.mu.Lock()
	defer a.mu.Unlock()

	bar, ok := a.current[symbol]
	if !ok {
		return nil
	}
	copied := *bar
	return &copied
}

// Flush finalizes and returns all in-progress bars, leaving the aggregator
// empty. Used at shutdown so the open day is not lost.
func (a *BarAggregator) Flush() []*domain.Bar {
	a.mu.Lock()
	defer a.mu.Unlock()

	bars := make([]*domain.Bar, 0, len(a.current))
	for symbol, bar := range a.current {
		bars = append(bars, bar)
		delete(a.current, symbol)
	}
	return bars
}
