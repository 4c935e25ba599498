package storage

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"viklyst/internal/domain"
)

// Compile-time interface check.
var _ DailyBarStore = (*MirroredBarStore)(nil)

// MirroredBarStore writes daily bars to a primary store and mirrors them
// into a secondary analytics store. The primary is authoritative: reads only
// touch it, and a mirror failure never fails the write.
type MirroredBarStore struct {
	primary DailyBarStore
	mirror  DailyBarStore
	logger  zerolog.Logger
}

// NewMirroredBarStore creates a MirroredBarStore.
func NewMirroredBarStore(primary, mirror DailyBarStore, logger zerolog.Logger) *MirroredBarStore {
	return &MirroredBarStore{primary: primary, mirror: mirror, logger: logger}
}

// InsertBulk writes to the primary, then mirrors. Duplicate rows in the
// mirror are expected after partial failures and stay silent.
func (s *MirroredBarStore) InsertBulk(ctx context.Context, bars []*domain.Bar) error {
	if err := s.primary.InsertBulk(ctx, bars); err != nil {
		return err
	}

	if err := s.mirror.InsertBulk(ctx, bars); err != nil && !errors.Is(err, ErrDuplicateKey) {
		s.logger.Warn().Int("bars", len(bars)).Err(err).Msg("mirror insert failed")
	}
	return nil
}

func (s *MirroredBarStore) GetBySymbolRange(ctx context.Context, symbol string, from, to time.Time) ([]*domain.Bar, error) {
	return s.primary.GetBySymbolRange(ctx, symbol, from, to)
}

func (s *MirroredBarStore) GetCoverage(ctx context.Context, symbol string) (time.Time, time.Time, error) {
	return s.primary.GetCoverage(ctx, symbol)
}
