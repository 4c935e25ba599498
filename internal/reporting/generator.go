package reporting

import (
	"context"
	"sort"
	"time"

	"viklyst/internal/backtest"
)

// Generator runs a set of policies through the engine and assembles the
// comparison report.
type Generator struct {
	engine *backtest.Engine
	now    func() time.Time // injectable clock for deterministic output
}

// NewGenerator creates a report generator.
func NewGenerator(engine *backtest.Engine) *Generator {
	return &Generator{
		engine: engine,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate runs every policy over the same request and collects the
// summaries, sorted by strategy identifier.
func (g *Generator) Generate(ctx context.Context, req backtest.Request, policies []backtest.Policy) (*Report, error) {
	rows := make([]SummaryRow, 0, len(policies))

	for _, policy := range policies {
		bundle, err := g.engine.Run(ctx, req, policy)
		if err != nil {
			return nil, err
		}
		rows = append(rows, RowFromSummary(bundle.Summary))
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Strategy < rows[j].Strategy })

	return &Report{
		GeneratedAt: g.now(),
		Symbol:      req.Symbol,
		From:        req.From,
		To:          req.To,
		Rows:        rows,
	}, nil
}
