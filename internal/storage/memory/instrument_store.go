package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"viklyst/internal/domain"
	"viklyst/internal/storage"
)

// InstrumentStore is an in-memory implementation of storage.InstrumentStore.
type InstrumentStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Instrument // keyed by symbol
}

// NewInstrumentStore creates a new in-memory instrument store.
func NewInstrumentStore() *InstrumentStore {
	return &InstrumentStore{
		data: make(map[string]*domain.Instrument),
	}
}

// Compile-time interface check.
var _ storage.InstrumentStore = (*InstrumentStore)(nil)

// Insert adds a new instrument. Returns ErrDuplicateKey if symbol exists.
func (s *InstrumentStore) Insert(_ context.Context, ins *domain.Instrument) error {
	if ins == nil || ins.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[ins.Symbol]; exists {
		return storage.ErrDuplicateKey
	}

	insCopy := *ins
	if insCopy.CreatedAt == 0 {
		insCopy.CreatedAt = time.Now().UnixMilli()
	}
	s.data[ins.Symbol] = &insCopy
	return nil
}

// GetBySymbol retrieves an instrument. Returns ErrNotFound if not exists.
func (s *InstrumentStore) GetBySymbol(_ context.Context, symbol string) (*domain.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ins, exists := s.data[symbol]
	if !exists {
		return nil, storage.ErrNotFound
	}

	insCopy := *ins
	return &insCopy, nil
}

// List returns all instruments ordered by symbol ASC.
func (s *InstrumentStore) List(_ context.Context) ([]*domain.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Instrument, 0, len(s.data))
	for _, ins := range s.data {
		insCopy := *ins
		result = append(result, &insCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})

	return result, nil
}
