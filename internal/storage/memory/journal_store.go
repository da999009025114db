package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/domain"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/storage"
)

// JournalStore is an in-memory implementation of storage.JournalStore.
type JournalStore struct {
	mu   sync.RWMutex
	data map[string]*domain.JournalEntry // keyed by entry_id
}

// NewJournalStore creates a new in-memory journal store.
func NewJournalStore() *JournalStore {
	return &JournalStore{
		data: make(map[string]*domain.JournalEntry),
	}
}

// Append adds a new entry. Returns ErrDuplicateKey if entry_id exists.
func (s *JournalStore) Append(_ context.Context, e *domain.JournalEntry) error {
	if e == nil || e.EntryID == "" || e.Kind == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.EntryID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *e
	s.data[e.EntryID] = &copy
	return nil
}

// GetByID retrieves an entry by its ID. Returns ErrNotFound if not exists.
func (s *JournalStore) GetByID(_ context.Context, entryID string) (*domain.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[entryID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *e
	return &copy, nil
}

// ListByAddress retrieves entries for an address, ordered by created_at ASC.
func (s *JournalStore) ListByAddress(_ context.Context, address string, limit int) ([]*domain.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.JournalEntry
	for _, e := range s.data {
		if e.Address == address {
			copy := *e
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt < result[j].CreatedAt
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListByKind retrieves entries of one kind, ordered by created_at ASC.
func (s *JournalStore) ListByKind(_ context.Context, kind domain.JournalKind, limit int) ([]*domain.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.JournalEntry
	for _, e := range s.data {
		if e.Kind == kind {
			copy := *e
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt < result[j].CreatedAt
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListRecent retrieves the most recent entries, ordered by created_at DESC.
func (s *JournalStore) ListRecent(_ context.Context, limit int) ([]*domain.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.JournalEntry, 0, len(s.data))
	for _, e := range s.data {
		copy := *e
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

// Count returns the total number of entries.
func (s *JournalStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.data)), nil
}

var _ storage.JournalStore = (*JournalStore)(nil)
