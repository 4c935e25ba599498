package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"viklyst/internal/domain"
	"viklyst/internal/storage"
)

// BarStore implements storage.DailyBarStore using ClickHouse.
// Used as the analytics path for bar history; MergeTree does not enforce
// uniqueness, so duplicates are rejected with explicit checks before insert.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DailyBarStore = (*BarStore)(nil)

// InsertBulk adds multiple bars. Fails entire batch on any duplicate (symbol, day).
func (s *BarStore) InsertBulk(ctx context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		symbol string
		day    string
	}
	seen := make(map[key]struct{}, len(bars))
	for _, b := range bars {
		if b == nil || b.Symbol == "" {
			return storage.ErrInvalidInput
		}
		k := key{b.Symbol, domain.FormatDay(b.Day)}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing rows
	for _, b := range bars {
		exists, err := s.exists(ctx, b.Symbol, b.Day)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO daily_bars (symbol, day, open, high, low, close, volume)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		err = batch.Append(
			b.Symbol, b.Day.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySymbolRange retrieves bars for a symbol within [from, to] inclusive, ordered by day ASC.
func (s *BarStore) GetBySymbolRange(ctx context.Context, symbol string, from, to time.Time) ([]*domain.Bar, error) {
	query := `
		SELECT symbol, day, open, high, low, close, volume
		FROM daily_bars
		WHERE symbol = ? AND day >= ? AND day <= ?
		ORDER BY day ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query bars by range: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetCoverage returns the first and last stored day for a symbol.
func (s *BarStore) GetCoverage(ctx context.Context, symbol string) (time.Time, time.Time, error) {
	query := `
		SELECT count(*), min(day), max(day)
		FROM daily_bars
		WHERE symbol = ?
	`

	var count uint64
	var first, last time.Time
	err := s.conn.QueryRow(ctx, query, symbol).Scan(&count, &first, &last)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("get bar coverage: %w", err)
	}
	if count == 0 {
		return time.Time{}, time.Time{}, storage.ErrNotFound
	}
	return first.UTC(), last.UTC(), nil
}

// exists checks if a bar with the given key exists.
func (s *BarStore) exists(ctx context.Context, symbol string, day time.Time) (bool, error) {
	query := `
		SELECT count(*) FROM daily_bars
		WHERE symbol = ? AND day = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, symbol, day.UTC()).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanBars scans multiple rows.
func scanBars(rows driver.Rows) ([]*domain.Bar, error) {
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
