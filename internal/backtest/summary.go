package backtest

import (
	"math"

	"viklyst/internal/domain"
)

// compileSummary reduces a walk and its drawdown series into the published
// performance metrics. Equity compounds in full precision throughout the
// walk; percentages and currency are rounded to 2 decimal places here, at
// the point of reporting.
func compileSummary(req Request, policy Policy, walk walkResult, dd []domain.DrawdownPoint) domain.BacktestSummary {
	first := walk.curve[0].Equity
	last := walk.curve[len(walk.curve)-1].Equity

	totalReturnPct := 0.0
	if first != 0 {
		totalReturnPct = (last/first - 1) * 100
	}

	stats := domain.TradeStats{Trades: walk.trades, Wins: walk.wins}
	exposurePct := 0.0

	switch policy.ExposureBasis() {
	case ExposureAlwaysOn:
		// Buy-and-hold is the single initial position held throughout.
		stats = domain.TradeStats{Trades: 1}
		if last > first {
			stats.Wins = 1
		}
		exposurePct = 100
	case ExposureTrades:
		if walk.decisionDays > 0 {
			exposurePct = float64(walk.trades) / float64(walk.decisionDays) * 100
		}
	case ExposureEquityMoves:
		if walk.decisionDays > 0 {
			exposurePct = float64(walk.moves) / float64(walk.decisionDays) * 100
		}
	}

	return domain.BacktestSummary{
		Symbol:         req.Symbol,
		From:           req.From,
		To:             req.To,
		StrategyID:     policy.ID(),
		Trades:         stats.Trades,
		WinRatePct:     round2(stats.WinRatePct()),
		TotalReturnPct: round2(totalReturnPct),
		MaxDrawdownPct: round2(MaxDrawdownPct(dd)),
		PointCount:     len(walk.curve),
		InitialCapital: req.InitialCapital,
		EndingEquity:   round2(req.InitialCapital * last),
		ExposurePct:    round2(exposurePct),
	}
}

// round2 rounds to 2 decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
