package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"viklyst/internal/config"
	"viklyst/internal/domain"
	"viklyst/internal/ingestion"
	"viklyst/internal/marketdata"
	"viklyst/internal/observability"
	"viklyst/internal/storage"
	chstore "viklyst/internal/storage/clickhouse"
	"viklyst/internal/storage/memory"
	"viklyst/internal/storage/migrations"
	pgstore "viklyst/internal/storage/postgres"
)

func main() {
	mode := flag.String("mode", "backfill", "Ingestion mode: backfill or live")
	configPath := flag.String("config", "", "Path to YAML config file")
	symbols := flag.String("symbols", "", "Comma-separated symbols (overrides config)")
	fromStr := flag.String("from", "", "Backfill range start, YYYY-MM-DD")
	toStr := flag.String("to", "", "Backfill range end, YYYY-MM-DD")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.Logging.NewLogger(os.Stderr).With().Str("component", "ingest").Logger()

	symbolList := cfg.MarketData.Symbols
	if *symbols != "" {
		symbolList = splitSymbols(*symbols)
	}
	if len(symbolList) == 0 {
		logger.Fatal().Msg("no symbols configured, use --symbols or the config file")
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Info().Str("addr", *metricsAddr).Msg("metrics server listening")
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	bars, cleanup, err := buildBarStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage setup failed")
	}
	defer cleanup()

	switch *mode {
	case "backfill":
		err = runBackfill(ctx, cfg, bars, symbolList, *fromStr, *toStr, logger)
	case "live":
		err = runLive(ctx, cfg, bars, symbolList, logger)
	default:
		logger.Fatal().Str("mode", *mode).Msg("unknown mode")
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("ingestion failed")
	}
	logger.Info().Msg("shutdown complete")
}

func splitSymbols(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runBackfill(ctx context.Context, cfg *config.Config, bars storage.DailyBarStore, symbols []string, fromStr, toStr string, logger zerolog.Logger) error {
	if cfg.MarketData.BaseURL == "" {
		return fmt.Errorf("marketdata base_url is required for backfill")
	}
	if fromStr == "" || toStr == "" {
		return fmt.Errorf("--from and --to are required for backfill")
	}

	from, err := domain.ParseDay(fromStr)
	if err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	to, err := domain.ParseDay(toStr)
	if err != nil {
		return fmt.Errorf("invalid --to: %w", err)
	}

	client := marketdata.NewClient(cfg.MarketData.BaseURL,
		marketdata.WithRateLimit(cfg.MarketData.RatePerSecond, cfg.MarketData.Burst))

	backfiller := ingestion.NewBackfiller(client, bars, logger)
	results, err := backfiller.BackfillAll(ctx, symbols, from, to)

	for _, res := range results {
		for i := 0; i < res.Inserted; i++ {
			observability.RecordBarIngested()
		}
		for i := 0; i < res.Skipped; i++ {
			observability.RecordBarSkipped()
		}
		first, last, covErr := bars.GetCoverage(ctx, res.Symbol)
		if covErr != nil {
			logger.Warn().Err(covErr).Str("symbol", res.Symbol).Msg("coverage lookup failed")
			continue
		}
		logger.Info().
			Str("symbol", res.Symbol).
			Str("first", domain.FormatDay(first)).
			Str("last", domain.FormatDay(last)).
			Int("inserted", res.Inserted).
			Int("skipped", res.Skipped).
			Msg("symbol backfilled")
	}
	if err == nil {
		observability.RecordIngestionSuccess()
	}
	return err
}

func runLive(ctx context.Context, cfg *config.Config, bars storage.DailyBarStore, symbols []string, logger zerolog.Logger) error {
	if cfg.MarketData.StreamURL == "" {
		return fmt.Errorf("marketdata stream_url is required for live mode")
	}

	stream, err := marketdata.NewTickStream(ctx, cfg.MarketData.StreamURL, nil, logger)
	if err != nil {
		return fmt.Errorf("connect tick stream: %w", err)
	}
	defer stream.Close()

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		TickSource: stream,
		BarStore:   bars,
		Symbols:    symbols,
		Logger:     logger,
		OnBarStored: func(*domain.Bar) {
			observability.RecordBarIngested()
			observability.RecordIngestionSuccess()
		},
	})
	return runner.Run(ctx)
}

func buildBarStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storage.DailyBarStore, func(), error) {
	if cfg.Storage.Backend == "memory" {
		logger.Warn().Msg("using in-memory storage, data will not survive restarts")
		return memory.NewBarStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	var bars storage.DailyBarStore = pgstore.NewBarStore(pool)
	cleanup := pool.Close

	if cfg.Storage.ClickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			conn.Close()
			pool.Close()
			return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		bars = storage.NewMirroredBarStore(bars, chstore.NewBarStore(conn), logger)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	}

	return bars, cleanup, nil
}
