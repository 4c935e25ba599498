package reporting

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"viklyst/internal/backtest"
	"viklyst/internal/domain"
	"viklyst/internal/storage/memory"
)

func setupEngine(t *testing.T) (*backtest.Engine, backtest.Request) {
	t.Helper()
	ctx := context.Background()

	instruments := memory.NewInstrumentStore()
	bars := memory.NewBarStore()

	if err := instruments.Insert(ctx, &domain.Instrument{Symbol: "ACME", Currency: "USD"}); err != nil {
		t.Fatalf("insert instrument: %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	closes := []float64{100, 102, 101, 105, 110, 108, 112}
	rows := make([]*domain.Bar, 0, len(closes))
	for i, c := range closes {
		rows = append(rows, &domain.Bar{
			Symbol: "ACME", Day: start.AddDate(0, 0, i),
			Open: c, High: c, Low: c, Close: c, Volume: 100,
		})
	}
	if err := bars.InsertBulk(ctx, rows); err != nil {
		t.Fatalf("insert bars: %v", err)
	}

	engine := backtest.NewEngine(backtest.NewStoreBarSource(instruments, bars), zerolog.Nop())
	req := backtest.Request{
		Symbol:         "ACME",
		From:           start,
		To:             start.AddDate(0, 0, len(closes)-1),
		InitialCapital: 10000,
	}
	return engine, req
}

func TestGenerate_Deterministic(t *testing.T) {
	ctx := context.Background()
	fixedTime := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	fixedClock := func() time.Time { return fixedTime }

	policies := []backtest.Policy{
		backtest.BuyAndHold{},
		backtest.MomentumLookback{Lookback: 2},
	}

	var first *Report
	for run := 0; run < 3; run++ {
		engine, req := setupEngine(t)
		report, err := NewGenerator(engine).WithClock(fixedClock).Generate(ctx, req, policies)
		if err != nil {
			t.Fatalf("run %d: Generate: %v", run, err)
		}

		if first == nil {
			first = report
			continue
		}
		if !report.GeneratedAt.Equal(first.GeneratedAt) {
			t.Errorf("run %d: GeneratedAt mismatch", run)
		}
		for i := range report.Rows {
			if report.Rows[i] != first.Rows[i] {
				t.Errorf("run %d: row %d mismatch: %+v vs %+v", run, i, report.Rows[i], first.Rows[i])
			}
		}
	}

	if len(first.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(first.Rows))
	}
	// Sorted by strategy identifier.
	if first.Rows[0].Strategy != "buy-and-hold" || first.Rows[1].Strategy != "momentum" {
		t.Errorf("unexpected row order: %s, %s", first.Rows[0].Strategy, first.Rows[1].Strategy)
	}
}

func TestRenderMarkdown(t *testing.T) {
	ctx := context.Background()
	engine, req := setupEngine(t)

	report, err := NewGenerator(engine).Generate(ctx, req, []backtest.Policy{backtest.BuyAndHold{}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	md := RenderMarkdown(report)
	for _, want := range []string{
		"# Backtest Report: ACME",
		"Range: 2024-01-01 to 2024-01-07",
		"| Strategy | Trades |",
		"| buy-and-hold | 1 |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestRenderCSV(t *testing.T) {
	ctx := context.Background()
	engine, req := setupEngine(t)

	report, err := NewGenerator(engine).Generate(ctx, req,
		[]backtest.Policy{backtest.BuyAndHold{}, backtest.MomentumLookback{Lookback: 2}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	csv := RenderCSV(report)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "strategy,trades,") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "buy-and-hold,1,") {
		t.Errorf("unexpected first row %q", lines[1])
	}
}

func TestRenderCurveCSV(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	curve := []domain.EquityPoint{
		{Day: start, Equity: 1.0},
		{Day: start.AddDate(0, 0, 1), Equity: 1.02},
	}
	dd := []domain.DrawdownPoint{
		{Day: start, DrawdownPct: 0},
		{Day: start.AddDate(0, 0, 1), DrawdownPct: 0},
	}

	csv := RenderCurveCSV(curve, dd)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if lines[1] != "2024-01-01,1.000000,0.0000" {
		t.Errorf("unexpected row %q", lines[1])
	}
}
