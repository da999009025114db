package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/domain"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Position // keyed by position_id
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		data: make(map[string]*domain.Position),
	}
}

// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
func (s *PositionStore) Insert(_ context.Context, p *domain.Position) error {
	if p == nil || p.PositionID == "" || p.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PositionID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *p
	s.data[p.PositionID] = &copy
	return nil
}

// Update replaces a stored position. Returns ErrNotFound if not exists.
func (s *PositionStore) Update(_ context.Context, p *domain.Position) error {
	if p == nil || p.PositionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PositionID]; !exists {
		return storage.ErrNotFound
	}

	copy := *p
	s.data[p.PositionID] = &copy
	return nil
}

// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(_ context.Context, positionID string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[positionID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *p
	return &copy, nil
}

// GetOpenByAddress retrieves the OPEN position for a mint address.
// Returns ErrNotFound if none is open.
func (s *PositionStore) GetOpenByAddress(_ context.Context, address string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.data {
		if p.Address == address && p.Status == domain.StatusOpen {
			copy := *p
			return &copy, nil
		}
	}
	return nil, storage.ErrNotFound
}

// ListOpen retrieves all OPEN positions, ordered by opened_at ASC.
func (s *PositionStore) ListOpen(_ context.Context) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Position
	for _, p := range s.data {
		if p.Status == domain.StatusOpen {
			copy := *p
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OpenedAt < result[j].OpenedAt
	})

	return result, nil
}

// ListRecent retrieves the most recent positions, ordered by created_at DESC.
func (s *PositionStore) ListRecent(_ context.Context, limit int) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Position, 0, len(s.data))
	for _, p := range s.data {
		copy := *p
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt > result[j].CreatedAt
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// CountByStatus returns position counts grouped by status.
func (s *PositionStore) CountByStatus(_ context.Context) (map[domain.PositionStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.PositionStatus]int64)
	for _, p := range s.data {
		counts[p.Status]++
	}
	return counts, nil
}

var _ storage.PositionStore = (*PositionStore)(nil)
