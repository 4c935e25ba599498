package backtest

import "viklyst/internal/domain"

// Drawdowns derives the running-peak-relative drawdown series for an equity
// curve in a single pass. Drawdown is reported as a non-negative percent
// below the peak (magnitude convention; call sites must not negate it) and
// is exactly 0 at every new running-peak day.
func Drawdowns(curve []domain.EquityPoint) []domain.DrawdownPoint {
	dd := make([]domain.DrawdownPoint, 0, len(curve))

	// Peak seeds at 0 so a currency series starting above zero still sets
	// its peak from the first point.
	peak := 0.0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		pct := 0.0
		if peak > 0 {
			pct = (peak - p.Equity) / peak * 100
			if pct < 0 {
				pct = 0
			}
		}
		dd = append(dd, domain.DrawdownPoint{Day: p.Day, DrawdownPct: pct})
	}

	return dd
}

// MaxDrawdownPct returns the maximum drawdown over a series, 0 for an empty one.
func MaxDrawdownPct(dd []domain.DrawdownPoint) float64 {
	max := 0.0
	for _, p := range dd {
		if p.DrawdownPct > max {
			max = p.DrawdownPct
		}
	}
	return max
}
