package backtest

import (
	"context"
	"fmt"
	"time"

	"viklyst/internal/domain"
)

// Strategy identifiers published in summaries.
const (
	StrategyBuyAndHold = "buy-and-hold"
	StrategyMomentum   = "momentum"
	StrategyML         = "ml"
)

// OracleWarmup is the minimum trailing history the Probability Oracle needs
// before its rolling-window features are well-defined (10-day rolling windows
// over 1-day returns).
const OracleWarmup = 12

// ExposureBasis selects how a policy's exposurePct is derived from a walk.
type ExposureBasis int

const (
	// ExposureAlwaysOn reports 100% exposure (buy-and-hold holds throughout).
	ExposureAlwaysOn ExposureBasis = iota

	// ExposureTrades reports trades taken over possible decision days.
	ExposureTrades

	// ExposureEquityMoves reports days where equity strictly changed over
	// possible decision days. Used where trade count alone is not a faithful
	// signal of time in market (oracle failures can silence days mid-stream).
	ExposureEquityMoves
)

// Policy yields a long/flat decision for each step of a bar walk. A policy is
// a pure function of the price history up to the decision day (and, for the
// probability-gated variant, an external oracle probability).
type Policy interface {
	// ID returns the strategy identifier published in summaries.
	ID() string

	// MinBars returns the minimum bar count required before any curve point
	// can be produced.
	MinBars() int

	// Warmup returns the index of the first decision day.
	Warmup() int

	// PadWarmup reports whether the output curve keeps one point per input
	// bar, holding the warmup prefix flat at initial equity, instead of
	// starting at the warmup index.
	PadWarmup() bool

	// ExposureBasis selects how exposure is reported for this policy.
	ExposureBasis() ExposureBasis

	// Decide reports whether to hold a long position for the step from
	// bars[i] to bars[i+1]. A returned error means "no signal" for that day
	// only: the curve builder stays flat and the walk continues.
	Decide(ctx context.Context, bars []*domain.Bar, i int) (bool, error)
}

// BuyAndHold takes the initial position on the first bar and never exits.
// It is both a selectable policy and the mandatory benchmark for every other
// policy's curve.
type BuyAndHold struct{}

func (BuyAndHold) ID() string                   { return StrategyBuyAndHold }
func (BuyAndHold) MinBars() int                 { return 2 }
func (BuyAndHold) Warmup() int                  { return 0 }
func (BuyAndHold) PadWarmup() bool              { return false }
func (BuyAndHold) ExposureBasis() ExposureBasis { return ExposureAlwaysOn }

// Decide always holds.
func (BuyAndHold) Decide(_ context.Context, _ []*domain.Bar, _ int) (bool, error) {
	return true, nil
}

// MomentumLookback goes long for the next day iff the close-over-close
// momentum across the trailing lookback window is positive.
type MomentumLookback struct {
	Lookback int
}

func (p MomentumLookback) ID() string                   { return StrategyMomentum }
func (p MomentumLookback) MinBars() int                 { return p.Lookback + 2 }
func (p MomentumLookback) Warmup() int                  { return p.Lookback }
func (p MomentumLookback) PadWarmup() bool              { return false }
func (p MomentumLookback) ExposureBasis() ExposureBasis { return ExposureTrades }

// Decide computes close[i]/close[i-L] - 1 and holds iff it is positive.
func (p MomentumLookback) Decide(_ context.Context, bars []*domain.Bar, i int) (bool, error) {
	momentum := bars[i].Close/bars[i-p.Lookback].Close - 1
	return momentum > 0, nil
}

// ProbabilitySource supplies next-day up-move probabilities for a symbol as
// of a given day. The from date bounds the history window the oracle may use.
type ProbabilitySource interface {
	Predict(ctx context.Context, symbol string, from, asOf time.Time) (*domain.Prediction, error)
}

// ProbabilityGated trades only when the oracle's predicted up-probability
// clears the threshold. Oracle failures are local: the day is treated as
// "no signal" and the walk continues.
type ProbabilityGated struct {
	Oracle    ProbabilitySource
	Threshold float64
}

func (p ProbabilityGated) ID() string                   { return StrategyML }
func (p ProbabilityGated) MinBars() int                 { return OracleWarmup + 2 }
func (p ProbabilityGated) Warmup() int                  { return OracleWarmup }
func (p ProbabilityGated) PadWarmup() bool              { return true }
func (p ProbabilityGated) ExposureBasis() ExposureBasis { return ExposureEquityMoves }

// Decide queries the oracle as of bars[i] and holds iff probUp clears the
// threshold. The oracle sees history from the start of the walked range
// through the decision day, never beyond it.
func (p ProbabilityGated) Decide(ctx context.Context, bars []*domain.Bar, i int) (bool, error) {
	pred, err := p.Oracle.Predict(ctx, bars[i].Symbol, bars[0].Day, bars[i].Day)
	if err != nil {
		return false, fmt.Errorf("oracle predict as of %s: %w", domain.FormatDay(bars[i].Day), err)
	}
	return pred.ProbUp >= p.Threshold, nil
}
