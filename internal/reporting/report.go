// Package reporting renders backtest results as Markdown and CSV.
package reporting

import (
	"time"

	"viklyst/internal/domain"
)

// Report compares strategy runs over one symbol and date range.
type Report struct {
	GeneratedAt time.Time
	Symbol      string
	From        time.Time
	To          time.Time

	// Rows are sorted by strategy identifier.
	Rows []SummaryRow
}

// SummaryRow is one strategy's performance in the comparison table.
type SummaryRow struct {
	Strategy       string
	Trades         int
	WinRatePct     float64
	TotalReturnPct float64
	MaxDrawdownPct float64
	ExposurePct    float64
	PointCount     int
	EndingEquity   float64
}

// RowFromSummary converts an engine summary to a report row.
func RowFromSummary(sum domain.BacktestSummary) SummaryRow {
	return SummaryRow{
		Strategy:       sum.StrategyID,
		Trades:         sum.Trades,
		WinRatePct:     sum.WinRatePct,
		TotalReturnPct: sum.TotalReturnPct,
		MaxDrawdownPct: sum.MaxDrawdownPct,
		ExposurePct:    sum.ExposurePct,
		PointCount:     sum.PointCount,
		EndingEquity:   sum.EndingEquity,
	}
}
