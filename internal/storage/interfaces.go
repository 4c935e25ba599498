package storage

import (
	"context"
	"time"

	"viklyst/internal/domain"
)

// InstrumentStore provides access to the instrument registry.
type InstrumentStore interface {
	// Insert adds a new instrument. Returns ErrDuplicateKey if symbol exists.
	Insert(ctx context.Context, ins *domain.Instrument) error

	// GetBySymbol retrieves an instrument. Returns ErrNotFound if not exists.
	GetBySymbol(ctx context.Context, symbol string) (*domain.Instrument, error)

	// List returns all instruments ordered by symbol ASC.
	List(ctx context.Context) ([]*domain.Instrument, error)
}

// DailyBarStore provides access to daily bar storage.
type DailyBarStore interface {
	// InsertBulk adds multiple bars. Fails the entire batch with
	// ErrDuplicateKey on any duplicate (symbol, day).
	InsertBulk(ctx context.Context, bars []*domain.Bar) error

	// GetBySymbolRange retrieves bars for a symbol within [from, to]
	// (inclusive), ordered by day ASC.
	GetBySymbolRange(ctx context.Context, symbol string, from, to time.Time) ([]*domain.Bar, error)

	// GetCoverage returns the first and last stored day for a symbol.
	// Returns ErrNotFound if no bars are stored.
	GetCoverage(ctx context.Context, symbol string) (first, last time.Time, err error)
}
