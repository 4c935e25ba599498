package reporting

import (
	"fmt"
	"strings"

	"viklyst/internal/domain"
)

// RenderCSV renders the summary rows as a CSV string.
func RenderCSV(r *Report) string {
	var sb strings.Builder

	sb.WriteString("strategy,trades,win_rate_pct,total_return_pct,max_drawdown_pct,exposure_pct,point_count,ending_equity\n")
	for _, row := range r.Rows {
		sb.WriteString(fmt.Sprintf("%s,%d,%.2f,%.2f,%.2f,%.2f,%d,%.2f\n",
			row.Strategy, row.Trades, row.WinRatePct, row.TotalReturnPct,
			row.MaxDrawdownPct, row.ExposurePct, row.PointCount, row.EndingEquity))
	}

	return sb.String()
}

// RenderCurveCSV renders an equity curve with its drawdown series as CSV.
// Both series must be day-aligned.
func RenderCurveCSV(curve []domain.EquityPoint, dd []domain.DrawdownPoint) string {
	var sb strings.Builder

	sb.WriteString("day,equity,drawdown_pct\n")
	for i, p := range curve {
		ddPct := 0.0
		if i < len(dd) {
			ddPct = dd[i].DrawdownPct
		}
		sb.WriteString(fmt.Sprintf("%s,%.6f,%.4f\n", domain.FormatDay(p.Day), p.Equity, ddPct))
	}

	return sb.String()
}
