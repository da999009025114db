package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/domain"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/storage"
)

func createTestEntry(entryID string, kind domain.JournalKind, address string, createdAt int64) *domain.JournalEntry {
	return &domain.JournalEntry{
		EntryID:   entryID,
		Kind:      kind,
		Address:   address,
		Cause:     "sniper_pct",
		Detail:    `{"actual": 22.5, "threshold": 15}`,
		CreatedAt: createdAt,
	}
}

func TestJournalStore_AppendAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewJournalStore(pool)

	entry := createTestEntry("journal-001", domain.JournalGate, "mint-1", 1000)
	entry.PositionID = "pos-1"

	err := store.Append(ctx, entry)
	require.NoError(t, err)

	retrieved, err := store.GetByID(ctx, "journal-001")
	require.NoError(t, err)

	assert.Equal(t, entry.EntryID, retrieved.EntryID)
	assert.Equal(t, entry.Kind, retrieved.Kind)
	assert.Equal(t, entry.Address, retrieved.Address)
	assert.Equal(t, entry.PositionID, retrieved.PositionID)
	assert.Equal(t, entry.Cause, retrieved.Cause)
	assert.JSONEq(t, entry.Detail, retrieved.Detail)
	assert.Equal(t, entry.CreatedAt, retrieved.CreatedAt)
}

func TestJournalStore_AppendDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewJournalStore(pool)

	entry := createTestEntry("journal-dup-001", domain.JournalScore, "mint-1", 1000)

	err := store.Append(ctx, entry)
	require.NoError(t, err)

	err = store.Append(ctx, entry)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestJournalStore_EmptyDetail(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewJournalStore(pool)

	entry := createTestEntry("journal-empty-001", domain.JournalAdmin, "", 1000)
	entry.Detail = ""

	err := store.Append(ctx, entry)
	require.NoError(t, err)

	retrieved, err := store.GetByID(ctx, "journal-empty-001")
	require.NoError(t, err)
	assert.Equal(t, "", retrieved.Detail)
}

func TestJournalStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewJournalStore(pool)

	_, err := store.GetByID(ctx, "nonexistent")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestJournalStore_ListQueries(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewJournalStore(pool)

	entries := []*domain.JournalEntry{
		createTestEntry("journal-list-001", domain.JournalGate, "mint-1", 1000),
		createTestEntry("journal-list-002", domain.JournalGate, "mint-2", 2000),
		createTestEntry("journal-list-003", domain.JournalSizing, "mint-1", 3000),
	}
	for _, e := range entries {
		require.NoError(t, store.Append(ctx, e))
	}

	// ListByAddress ordered ASC.
	byAddr, err := store.ListByAddress(ctx, "mint-1", 0)
	require.NoError(t, err)
	require.Len(t, byAddr, 2)
	assert.Equal(t, "journal-list-001", byAddr[0].EntryID)
	assert.Equal(t, "journal-list-003", byAddr[1].EntryID)

	// ListByKind with limit.
	byKind, err := store.ListByKind(ctx, domain.JournalGate, 1)
	require.NoError(t, err)
	require.Len(t, byKind, 1)
	assert.Equal(t, "journal-list-001", byKind[0].EntryID)

	// ListRecent ordered DESC.
	recent, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "journal-list-003", recent[0].EntryID)
	assert.Equal(t, "journal-list-002", recent[1].EntryID)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
