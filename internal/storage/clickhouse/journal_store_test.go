package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/domain"
)

func makeTestEntries(base int64) []*domain.JournalEntry {
	return []*domain.JournalEntry{
		{
			EntryID:   "e-gate-1",
			Kind:      domain.JournalGate,
			Address:   "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
			Cause:     "sellable",
			Detail:    `{"check":"sellable","pass":false}`,
			CreatedAt: base,
		},
		{
			EntryID:   "e-gate-2",
			Kind:      domain.JournalGate,
			Address:   "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
			Cause:     "sniper_pct",
			Detail:    `{"check":"sniper_pct","pass":false}`,
			CreatedAt: base + 1,
		},
		{
			EntryID:   "e-gate-3",
			Kind:      domain.JournalGate,
			Address:   "So11111111111111111111111111111111111111112",
			Cause:     "sellable",
			Detail:    `{"check":"sellable","pass":false}`,
			CreatedAt: base + 2,
		},
		{
			EntryID:   "e-score-1",
			Kind:      domain.JournalScore,
			Address:   "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
			Cause:     "scored",
			Detail:    `{"gs":71.5}`,
			CreatedAt: base + 3,
		},
		{
			EntryID:    "e-open-1",
			Kind:       domain.JournalPositionOpen,
			Address:    "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
			PositionID: "pos-1",
			Cause:      "filled",
			Detail:     `{"notional_usd":500}`,
			CreatedAt:  base + 4,
		},
	}
}

func TestJournalStore_InsertBulkAndCount(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewJournalStore(conn)

	base := time.Now().UnixMilli()
	entries := makeTestEntries(base)

	err := store.InsertBulk(ctx, entries)
	require.NoError(t, err)

	counts, err := store.CountByKindSince(ctx, base)
	require.NoError(t, err)

	assert.Equal(t, uint64(3), counts[domain.JournalGate])
	assert.Equal(t, uint64(1), counts[domain.JournalScore])
	assert.Equal(t, uint64(1), counts[domain.JournalPositionOpen])
}

func TestJournalStore_ReplayTolerant(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewJournalStore(conn)

	base := time.Now().UnixMilli()
	entries := makeTestEntries(base)

	require.NoError(t, store.InsertBulk(ctx, entries))
	// A crash between flush and ack replays the same batch. Distinct
	// counts must not move.
	require.NoError(t, store.InsertBulk(ctx, entries))

	counts, err := store.CountByKindSince(ctx, base)
	require.NoError(t, err)

	assert.Equal(t, uint64(3), counts[domain.JournalGate])
	assert.Equal(t, uint64(1), counts[domain.JournalScore])
}

func TestJournalStore_CauseBreakdown(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewJournalStore(conn)

	base := time.Now().UnixMilli()
	require.NoError(t, store.InsertBulk(ctx, makeTestEntries(base)))

	causes, err := store.CauseBreakdown(ctx, domain.JournalGate, base)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), causes["sellable"])
	assert.Equal(t, uint64(1), causes["sniper_pct"])
	assert.NotContains(t, causes, "scored")
}

func TestJournalStore_SinceBoundary(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewJournalStore(conn)

	base := time.Now().UnixMilli()
	require.NoError(t, store.InsertBulk(ctx, makeTestEntries(base)))

	// Cutoff past every gate entry but before the score entry.
	counts, err := store.CountByKindSince(ctx, base+3)
	require.NoError(t, err)

	assert.NotContains(t, counts, domain.JournalGate)
	assert.Equal(t, uint64(1), counts[domain.JournalScore])
}

func TestJournalStore_InsertBulkEmpty(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewJournalStore(conn)

	require.NoError(t, store.InsertBulk(ctx, nil))
	require.NoError(t, store.InsertBulk(ctx, []*domain.JournalEntry{}))

	counts, err := store.CountByKindSince(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, counts)
}
