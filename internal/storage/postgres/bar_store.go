package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"viklyst/internal/domain"
	"viklyst/internal/storage"
)

// BarStore implements storage.DailyBarStore using PostgreSQL.
type BarStore struct {
	pool *Pool
}

// NewBarStore creates a new BarStore.
func NewBarStore(pool *Pool) *BarStore {
	return &BarStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DailyBarStore = (*BarStore)(nil)

// InsertBulk adds multiple bars. Fails entire batch on any duplicate (symbol, day).
func (s *BarStore) InsertBulk(ctx context.Context, bars []*domain.Bar) (err error) {
	defer observeQuery("bars_insert_bulk", time.Now(), &err)

	if len(bars) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO daily_bars (symbol, day, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, b := range bars {
		if b == nil || b.Symbol == "" {
			return storage.ErrInvalidInput
		}
		batch.Queue(query, b.Symbol, b.Day.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range bars {
		if _, err := results.Exec(); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert bar batch: %w", err)
		}
	}

	return nil
}

// GetBySymbolRange retrieves bars for a symbol within [from, to] inclusive, ordered by day ASC.
func (s *BarStore) GetBySymbolRange(ctx context.Context, symbol string, from, to time.Time) (bars []*domain.Bar, err error) {
	defer observeQuery("bars_get_by_range", time.Now(), &err)

	query := `
		SELECT symbol, day, open, high, low, close, volume
		FROM daily_bars
		WHERE symbol = $1 AND day >= $2 AND day <= $3
		ORDER BY day ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("get bars by range: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetCoverage returns the first and last stored day for a symbol.
func (s *BarStore) GetCoverage(ctx context.Context, symbol string) (_, _ time.Time, err error) {
	defer observeQuery("bars_get_coverage", time.Now(), &err)

	query := `
		SELECT min(day), max(day)
		FROM daily_bars
		WHERE symbol = $1
	`

	var first, last *time.Time
	err = s.pool.QueryRow(ctx, query, symbol).Scan(&first, &last)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("get bar coverage: %w", err)
	}
	if first == nil || last == nil {
		return time.Time{}, time.Time{}, storage.ErrNotFound
	}
	return first.UTC(), last.UTC(), nil
}

// scanBars scans multiple rows into a slice of Bar.
func scanBars(rows pgx.Rows) ([]*domain.Bar, error) {
	var bars []*domain.Bar

	for rows.Next() {
		var b domain.Bar
		err := rows.Scan(&b.Symbol, &b.Day, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume)
		if err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}
		b.Day = b.Day.UTC()
		bars = append(bars, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}

	return bars, nil
}
