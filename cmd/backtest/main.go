package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"viklyst/internal/backtest"
	"viklyst/internal/config"
	"viklyst/internal/domain"
	"viklyst/internal/oracle"
	"viklyst/internal/reporting"
	"viklyst/internal/storage"
	"viklyst/internal/storage/memory"
	pgstore "viklyst/internal/storage/postgres"
)

func main() {
	symbol := flag.String("symbol", "", "Instrument symbol (required)")
	fromStr := flag.String("from", "", "Range start, YYYY-MM-DD (required)")
	toStr := flag.String("to", "", "Range end, YYYY-MM-DD (required)")
	strategy := flag.String("strategy", "all", "Strategy: buy-and-hold, momentum, ml, or all")
	lookback := flag.Int("lookback", 20, "Momentum lookback window in bars")
	threshold := flag.Float64("threshold", 0.55, "ML probability threshold")
	capital := flag.Float64("initial-capital", 10000, "Initial capital")

	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	oracleURL := flag.String("oracle-url", "http://localhost:8001", "Probability oracle base URL")

	outputJSON := flag.Bool("json", false, "Output the full curve bundle as JSON (single strategy only)")
	outputCSV := flag.Bool("csv", false, "Output the comparison table as CSV instead of Markdown")
	outputCurveCSV := flag.Bool("curve-csv", false, "Output the per-day equity/drawdown series as CSV (single strategy only)")

	flag.Parse()

	logger := config.Logging{Level: "warn", Format: "console"}.NewLogger(os.Stderr)

	if *symbol == "" || *fromStr == "" || *toStr == "" {
		logger.Fatal().Msg("--symbol, --from and --to are required")
	}

	from, err := domain.ParseDay(*fromStr)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid --from")
	}
	to, err := domain.ParseDay(*toStr)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid --to")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	var instruments storage.InstrumentStore = memory.NewInstrumentStore()
	var bars storage.DailyBarStore = memory.NewBarStore()

	if !*useMemory {
		if *postgresDSN == "" {
			logger.Fatal().Msg("--postgres-dsn is required (or pass --use-memory)")
		}
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect to postgres")
		}
		defer pool.Close()

		instruments = pgstore.NewInstrumentStore(pool)
		bars = pgstore.NewBarStore(pool)
	}

	engine := backtest.NewEngine(backtest.NewStoreBarSource(instruments, bars), logger)
	req := backtest.Request{Symbol: *symbol, From: from, To: to, InitialCapital: *capital}

	policies, err := resolvePolicies(*strategy, *lookback, *threshold, *oracleURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid --strategy")
	}

	if *outputJSON || *outputCurveCSV {
		if len(policies) != 1 {
			logger.Fatal().Msg("--json and --curve-csv require a single strategy")
		}
		bundle, err := engine.Run(ctx, req, policies[0])
		if err != nil {
			logger.Fatal().Err(err).Msg("backtest failed")
		}
		if *outputCurveCSV {
			fmt.Print(reporting.RenderCurveCSV(bundle.Strategy, bundle.StrategyDrawdown))
			return
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(bundle); err != nil {
			logger.Fatal().Err(err).Msg("encode bundle")
		}
		return
	}

	report, err := reporting.NewGenerator(engine).Generate(ctx, req, policies)
	if err != nil {
		logger.Fatal().Err(err).Msg("backtest failed")
	}

	if *outputCSV {
		fmt.Print(reporting.RenderCSV(report))
	} else {
		fmt.Print(reporting.RenderMarkdown(report))
	}
}

// resolvePolicies maps the strategy flag to engine policies.
func resolvePolicies(strategy string, lookback int, threshold float64, oracleURL string) ([]backtest.Policy, error) {
	mlPolicy := func() backtest.Policy {
		return backtest.ProbabilityGated{
			Oracle:    oracle.NewClient(oracleURL),
			Threshold: threshold,
		}
	}

	switch strings.ToLower(strategy) {
	case backtest.StrategyBuyAndHold:
		return []backtest.Policy{backtest.BuyAndHold{}}, nil
	case backtest.StrategyMomentum:
		return []backtest.Policy{backtest.MomentumLookback{Lookback: lookback}}, nil
	case backtest.StrategyML:
		return []backtest.Policy{mlPolicy()}, nil
	case "all":
		return []backtest.Policy{
			backtest.BuyAndHold{},
			backtest.MomentumLookback{Lookback: lookback},
			mlPolicy(),
		}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}
}
