package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/domain"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/storage"
)

func createTestPosition(positionID, address string, status domain.PositionStatus) *domain.Position {
	return &domain.Position{
		PositionID:    positionID,
		Address:       address,
		Symbol:        "TKN",
		Source:        "graduation-watch",
		Mode:          domain.ModePaper,
		Status:        status,
		Score:         71.5,
		NotionalUSD:   500,
		EntryPriceUSD: 0.0202,
		TokenQty:      24752.47,
		Simulated:     true,
		OpenedAt:      1100,
		CreatedAt:     1000,
		UpdatedAt:     1100,
	}
}

func TestPositionStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPositionStore(pool)

	pos := createTestPosition("pos-001", "mint-1", domain.StatusOpen)

	err := store.Insert(ctx, pos)
	require.NoError(t, err)

	retrieved, err := store.GetByID(ctx, "pos-001")
	require.NoError(t, err)

	assert.Equal(t, pos.PositionID, retrieved.PositionID)
	assert.Equal(t, pos.Address, retrieved.Address)
	assert.Equal(t, pos.Symbol, retrieved.Symbol)
	assert.Equal(t, pos.Source, retrieved.Source)
	assert.Equal(t, pos.Mode, retrieved.Mode)
	assert.Equal(t, pos.Status, retrieved.Status)
	assert.InDelta(t, pos.Score, retrieved.Score, 0.0001)
	assert.InDelta(t, pos.NotionalUSD, retrieved.NotionalUSD, 0.0001)
	assert.InDelta(t, pos.EntryPriceUSD, retrieved.EntryPriceUSD, 0.0001)
	assert.InDelta(t, pos.TokenQty, retrieved.TokenQty, 0.0001)
	assert.True(t, retrieved.Simulated)
	assert.Equal(t, pos.OpenedAt, retrieved.OpenedAt)
	assert.Equal(t, pos.CreatedAt, retrieved.CreatedAt)
}

func TestPositionStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPositionStore(pool)

	pos := createTestPosition("pos-dup-001", "mint-1", domain.StatusReserved)

	require.NoError(t, store.Insert(ctx, pos))

	err := store.Insert(ctx, pos)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestPositionStore_UpdateLifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPositionStore(pool)

	pos := createTestPosition("pos-upd-001", "mint-1", domain.StatusReserved)
	require.NoError(t, store.Insert(ctx, pos))

	pos.Status = domain.StatusClosed
	pos.ExitPriceUSD = 0.03
	pos.RealizedPnLUSD = 242.57
	pos.ClosedAt = 5000
	pos.UpdatedAt = 5000

	require.NoError(t, store.Update(ctx, pos))

	retrieved, err := store.GetByID(ctx, "pos-upd-001")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, retrieved.Status)
	assert.InDelta(t, 0.03, retrieved.ExitPriceUSD, 0.0001)
	assert.InDelta(t, 242.57, retrieved.RealizedPnLUSD, 0.0001)
	assert.Equal(t, int64(5000), retrieved.ClosedAt)
}

func TestPositionStore_UpdateNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPositionStore(pool)

	err := store.Update(ctx, createTestPosition("pos-ghost", "mint-1", domain.StatusOpen))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPositionStore_OpenQueries(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPositionStore(pool)

	a := createTestPosition("pos-open-001", "mint-1", domain.StatusOpen)
	a.OpenedAt = 3000
	b := createTestPosition("pos-open-002", "mint-2", domain.StatusOpen)
	b.OpenedAt = 1000
	c := createTestPosition("pos-open-003", "mint-3", domain.StatusRejectedGate)

	for _, p := range []*domain.Position{a, b, c} {
		require.NoError(t, store.Insert(ctx, p))
	}

	open, err := store.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "pos-open-002", open[0].PositionID)
	assert.Equal(t, "pos-open-001", open[1].PositionID)

	byAddr, err := store.GetOpenByAddress(ctx, "mint-1")
	require.NoError(t, err)
	assert.Equal(t, "pos-open-001", byAddr.PositionID)

	_, err = store.GetOpenByAddress(ctx, "mint-3")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	counts, err := store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[domain.StatusOpen])
	assert.Equal(t, int64(1), counts[domain.StatusRejectedGate])
}

func TestPositionStore_ListRecent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPositionStore(pool)

	a := createTestPosition("pos-rec-001", "mint-1", domain.StatusClosed)
	a.CreatedAt = 1000
	b := createTestPosition("pos-rec-002", "mint-2", domain.StatusOpen)
	b.CreatedAt = 2000
	c := createTestPosition("pos-rec-003", "mint-3", domain.StatusRejectedSizing)
	c.CreatedAt = 3000

	for _, p := range []*domain.Position{a, b, c} {
		require.NoError(t, store.Insert(ctx, p))
	}

	recent, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "pos-rec-003", recent[0].PositionID)
	assert.Equal(t, "pos-rec-002", recent[1].PositionID)
}
