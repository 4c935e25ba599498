package reporting

import (
	"fmt"
	"strings"
	"time"

	"viklyst/internal/domain"
)

// RenderMarkdown renders the report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Backtest Report: %s\n\n", r.Symbol))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Range: %s to %s\n\n",
		domain.FormatDay(r.From), domain.FormatDay(r.To)))

	sb.WriteString("## Strategy Comparison\n\n")
	if len(r.Rows) > 0 {
		sb.WriteString("| Strategy | Trades | WinRate% | TotalReturn% | MaxDD% | Exposure% | Points | EndingEquity |\n")
		sb.WriteString("|----------|--------|----------|--------------|--------|-----------|--------|--------------|\n")
		for _, row := range r.Rows {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.2f | %.2f | %.2f | %.2f | %d | %.2f |\n",
				row.Strategy, row.Trades, row.WinRatePct, row.TotalReturnPct,
				row.MaxDrawdownPct, row.ExposurePct, row.PointCount, row.EndingEquity))
		}
	} else {
		sb.WriteString("No strategy results available.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
