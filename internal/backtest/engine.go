package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"viklyst/internal/domain"
)

// BarSource supplies an ordered, gap-tolerant sequence of daily bars for a
// symbol and date range. Fails with storage.ErrNotFound if the symbol is
// unknown; returns an empty or short list if no data exists.
type BarSource interface {
	DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]*domain.Bar, error)
}

// Request describes one backtest run.
type Request struct {
	Symbol         string
	From           time.Time
	To             time.Time
	InitialCapital float64
}

// Engine builds comparable performance curves for decision policies. Each
// Run owns its accumulators exclusively, so independent runs may execute
// concurrently without synchronization.
type Engine struct {
	bars   BarSource
	logger zerolog.Logger
}

// NewEngine creates an Engine reading bars from the given source.
func NewEngine(bars BarSource, logger zerolog.Logger) *Engine {
	return &Engine{bars: bars, logger: logger}
}

// Run applies the policy to the requested range and returns the curve bundle:
// policy curve, buy-and-hold benchmark over the identical day range, both
// drawdown series, and the compiled summary.
//
// Errors that prevent a well-formed curve (unknown symbol, insufficient bars)
// abort before any output is constructed. Per-day oracle failures inside the
// walk never abort; they degrade to a flat step.
func (e *Engine) Run(ctx context.Context, req Request, policy Policy) (*domain.CurveBundle, error) {
	bars, err := e.bars.DailyBars(ctx, req.Symbol, req.From, req.To)
	if err != nil {
		return nil, err
	}

	if len(bars) < policy.MinBars() {
		return nil, fmt.Errorf("%w: strategy %s needs %d bars, got %d",
			ErrInsufficientData, policy.ID(), policy.MinBars(), len(bars))
	}

	walk := e.buildCurve(ctx, bars, policy)

	// The benchmark walks the same day range the strategy curve covers:
	// the full bar sequence for padded policies, the policy-trimmed suffix
	// otherwise. This keeps both curves day-aligned for comparison.
	benchBars := bars
	if !policy.PadWarmup() {
		benchBars = bars[policy.Warmup():]
	}
	bench := e.buildCurve(ctx, benchBars, BuyAndHold{})

	strategyDD := Drawdowns(walk.curve)
	benchmarkDD := Drawdowns(bench.curve)

	summary := compileSummary(req, policy, walk, strategyDD)

	return &domain.CurveBundle{
		Summary:           summary,
		Strategy:          walk.curve,
		Benchmark:         bench.curve,
		StrategyDrawdown:  strategyDD,
		BenchmarkDrawdown: benchmarkDD,
	}, nil
}

// walkResult carries the equity curve and counters of one completed walk.
type walkResult struct {
	curve        []domain.EquityPoint
	trades       int
	wins         int
	moves        int // steps where equity strictly changed
	decisionDays int
}

// walkState is the accumulator threaded through the bar walk. Each step
// derives a new value from the previous one; already-emitted points are
// never overwritten.
type walkState struct {
	equity float64
	trades int
	wins   int
	moves  int
}

// buildCurve walks the bar sequence once, invoking the policy per eligible
// day and compounding an equity multiplier seeded at 1.0.
func (e *Engine) buildCurve(ctx context.Context, bars []*domain.Bar, policy Policy) walkResult {
	n := len(bars)
	warmup := policy.Warmup()

	pointCount := n - warmup
	if policy.PadWarmup() {
		pointCount = n
	}
	curve := make([]domain.EquityPoint, 0, pointCount)

	st := walkState{equity: 1.0}

	if policy.PadWarmup() {
		// One flat point per warmup bar, plus the seed at the warmup index.
		for i := 0; i <= warmup && i < n; i++ {
			curve = append(curve, domain.EquityPoint{Day: bars[i].Day, Equity: st.equity})
		}
	} else {
		curve = append(curve, domain.EquityPoint{Day: bars[warmup].Day, Equity: st.equity})
	}

	for i := warmup; i <= n-2; i++ {
		long, err := policy.Decide(ctx, bars, i)
		if err != nil {
			// No signal for this day only; the walk continues flat.
			e.logger.Debug().
				Str("strategy", policy.ID()).
				Str("symbol", bars[i].Symbol).
				Str("day", domain.FormatDay(bars[i].Day)).
				Err(err).
				Msg("signal unavailable, staying flat")
			long = false
		}

		next := st
		if long {
			nextReturn := bars[i+1].Close/bars[i].Close - 1
			next.equity = st.equity * (1 + nextReturn)
			next.trades++
			if nextReturn > 0 {
				next.wins++
			}
		}
		if next.equity != st.equity {
			next.moves++
		}
		st = next

		curve = append(curve, domain.EquityPoint{Day: bars[i+1].Day, Equity: st.equity})
	}

	return walkResult{
		curve:        curve,
		trades:       st.trades,
		wins:         st.wins,
		moves:        st.moves,
		decisionDays: n - 1 - warmup,
	}
}
