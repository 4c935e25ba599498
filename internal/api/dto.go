package api

import (
	"math"

	"viklyst/internal/domain"
)

// Wire representations. Days travel as YYYY-MM-DD; currency and percent
// values are rounded to 2 decimal places at this boundary.

type instrumentDTO struct {
	Symbol   string  `json:"symbol"`
	Name     *string `json:"name,omitempty"`
	Currency string  `json:"currency"`
}

type barDTO struct {
	Day    string  `json:"day"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

type equityPointDTO struct {
	Day    string  `json:"day"`
	Equity float64 `json:"equity"`
}

type drawdownPointDTO struct {
	Day         string  `json:"day"`
	DrawdownPct float64 `json:"drawdownPct"`
}

type summaryDTO struct {
	Symbol         string  `json:"symbol"`
	From           string  `json:"from"`
	To             string  `json:"to"`
	Strategy       string  `json:"strategy"`
	Trades         int     `json:"trades"`
	WinRatePct     float64 `json:"winRatePct"`
	TotalReturnPct float64 `json:"totalReturnPct"`
	MaxDrawdownPct float64 `json:"maxDrawdownPct"`
	PointCount     int     `json:"pointCount"`
	InitialCapital float64 `json:"initialCapital"`
	EndingEquity   float64 `json:"endingEquity"`
	ExposurePct    float64 `json:"exposurePct"`
}

type bundleDTO struct {
	Summary           summaryDTO         `json:"summary"`
	Curve             []equityPointDTO   `json:"curve"`
	Benchmark         []equityPointDTO   `json:"benchmark"`
	Drawdown          []drawdownPointDTO `json:"drawdown"`
	BenchmarkDrawdown []drawdownPointDTO `json:"benchmarkDrawdown"`
}

type errorDTO struct {
	Error string `json:"error"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func toInstrumentDTO(ins *domain.Instrument) instrumentDTO {
	return instrumentDTO{Symbol: ins.Symbol, Name: ins.Name, Currency: ins.Currency}
}

func toBarDTO(bar *domain.Bar) barDTO {
	return barDTO{
		Day:    domain.FormatDay(bar.Day),
		Open:   bar.Open,
		High:   bar.High,
		Low:    bar.Low,
		Close:  bar.Close,
		Volume: bar.Volume,
	}
}

func toSummaryDTO(sum domain.BacktestSummary) summaryDTO {
	return summaryDTO{
		Symbol:         sum.Symbol,
		From:           domain.FormatDay(sum.From),
		To:             domain.FormatDay(sum.To),
		Strategy:       sum.StrategyID,
		Trades:         sum.Trades,
		WinRatePct:     sum.WinRatePct,
		TotalReturnPct: sum.TotalReturnPct,
		MaxDrawdownPct: sum.MaxDrawdownPct,
		PointCount:     sum.PointCount,
		InitialCapital: sum.InitialCapital,
		EndingEquity:   sum.EndingEquity,
		ExposurePct:    sum.ExposurePct,
	}
}

// toEquityDTOs scales unit-multiplier points to currency by initialCapital.
func toEquityDTOs(points []domain.EquityPoint, initialCapital float64) []equityPointDTO {
	out := make([]equityPointDTO, 0, len(points))
	for _, p := range points {
		out = append(out, equityPointDTO{
			Day:    domain.FormatDay(p.Day),
			Equity: round2(p.Equity * initialCapital),
		})
	}
	return out
}

func toDrawdownDTOs(points []domain.DrawdownPoint) []drawdownPointDTO {
	out := make([]drawdownPointDTO, 0, len(points))
	for _, p := range points {
		out = append(out, drawdownPointDTO{
			Day:         domain.FormatDay(p.Day),
			DrawdownPct: round2(p.DrawdownPct),
		})
	}
	return out
}

func toBundleDTO(bundle *domain.CurveBundle) bundleDTO {
	capital := bundle.Summary.InitialCapital
	return bundleDTO{
		Summary:           toSummaryDTO(bundle.Summary),
		Curve:             toEquityDTOs(bundle.Strategy, capital),
		Benchmark:         toEquityDTOs(bundle.Benchmark, capital),
		Drawdown:          toDrawdownDTOs(bundle.StrategyDrawdown),
		BenchmarkDrawdown: toDrawdownDTOs(bundle.BenchmarkDrawdown),
	}
}
