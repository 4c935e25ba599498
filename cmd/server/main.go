package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"viklyst/internal/api"
	"viklyst/internal/backtest"
	"viklyst/internal/config"
	"viklyst/internal/ingestion"
	"viklyst/internal/marketdata"
	"viklyst/internal/oracle"
	"viklyst/internal/storage"
	chstore "viklyst/internal/storage/clickhouse"
	"viklyst/internal/storage/memory"
	"viklyst/internal/storage/migrations"
	pgstore "viklyst/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	withIngestion := flag.Bool("with-ingestion", false, "Consume the live tick stream alongside the API")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.Logging.NewLogger(os.Stderr).With().Str("component", "server").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := run(ctx, cancel, sigCh, cfg, *withIngestion, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("server failed")
	}
	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cancel context.CancelFunc, sigCh chan os.Signal, cfg *config.Config, withIngestion bool, logger zerolog.Logger) error {
	instruments, bars, cleanup, err := buildStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	var probSource backtest.ProbabilitySource
	if cfg.Oracle.BaseURL != "" {
		probSource = oracle.NewClient(cfg.Oracle.BaseURL,
			oracle.WithTimeout(time.Duration(cfg.Oracle.TimeoutSeconds)*time.Second))
	}

	engine := backtest.NewEngine(backtest.NewStoreBarSource(instruments, bars), logger)

	srv := api.NewServer(api.ServerOptions{
		Engine:      engine,
		Instruments: instruments,
		Bars:        bars,
		Oracle:      probSource,
		Lookback:    cfg.Backtest.Lookback,
		Threshold:   cfg.Oracle.Threshold,
		Logger:      logger,
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: srv.Router(),
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info().Str("addr", cfg.Server.Addr()).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if withIngestion {
		if cfg.MarketData.StreamURL == "" || len(cfg.MarketData.Symbols) == 0 {
			return fmt.Errorf("ingestion requires marketdata stream_url and symbols")
		}

		stream, err := marketdata.NewTickStream(ctx, cfg.MarketData.StreamURL, nil, logger)
		if err != nil {
			return fmt.Errorf("connect tick stream: %w", err)
		}
		defer stream.Close()

		runner := ingestion.NewRunner(ingestion.RunnerOptions{
			TickSource: stream,
			BarStore:   bars,
			Symbols:    cfg.MarketData.Symbols,
			Logger:     logger.With().Str("component", "ingestion").Logger(),
		})
		go func() {
			if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("ingestion runner: %w", err)
			}
		}()
	}

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("component failed, shutting down")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// buildStores wires the configured persistence backend. The returned cleanup
// closes any open connections.
func buildStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storage.InstrumentStore, storage.DailyBarStore, func(), error) {
	if cfg.Storage.Backend == "memory" {
		logger.Warn().Msg("using in-memory storage, data will not survive restarts")
		return memory.NewInstrumentStore(), memory.NewBarStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	cleanup := pool.Close
	var bars storage.DailyBarStore = pgstore.NewBarStore(pool)

	if cfg.Storage.ClickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			conn.Close()
			pool.Close()
			return nil, nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		bars = storage.NewMirroredBarStore(bars, chstore.NewBarStore(conn), logger)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	}

	return pgstore.NewInstrumentStore(pool), bars, cleanup, nil
}
