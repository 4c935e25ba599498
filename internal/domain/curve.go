package domain

import "time"

// EquityPoint is one day of a cumulative-return curve. Equity is a
// dimensionless multiplier seeded at 1.0; callers that want currency
// scale by initial capital at the reporting boundary.
// The day sequence is strictly increasing and matches the originating
// bar sequence (or its policy-trimmed suffix).
type EquityPoint struct {
	Day    time.Time
	Equity float64
}

// DrawdownPoint is the decline from the running historical peak of an
// equity curve at one day. DrawdownPct is a non-negative percent and is
// exactly 0 at every new running-peak day. Derived, never persisted.
type DrawdownPoint struct {
	Day         time.Time
	DrawdownPct float64
}

// TradeStats counts the decisions a policy acted on during a walk.
// Wins is always a subset of Trades.
type TradeStats struct {
	Trades int
	Wins   int
}

// WinRatePct returns wins/trades as a percentage, 0 when no trades were taken.
func (s TradeStats) WinRatePct() float64 {
	if s.Trades == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Trades) * 100
}

// BacktestSummary is the published performance record for one policy run.
// Percentage and currency fields are rounded to 2 decimal places by the
// summary compiler; curve points stay full precision.
type BacktestSummary struct {
	Symbol         string
	From           time.Time
	To             time.Time
	StrategyID     string
	Trades         int
	WinRatePct     float64
	TotalReturnPct float64
	MaxDrawdownPct float64
	PointCount     int
	InitialCapital float64
	EndingEquity   float64
	ExposurePct    float64
}

// CurveBundle is the unit of backtest output: the policy curve, the
// buy-and-hold benchmark over the identical day range, and both derived
// drawdown series. Strategy and benchmark curves have equal length and
// identical day sequences.
type CurveBundle struct {
	Summary           BacktestSummary
	Strategy          []EquityPoint
	Benchmark         []EquityPoint
	StrategyDrawdown  []DrawdownPoint
	BenchmarkDrawdown []DrawdownPoint
}
