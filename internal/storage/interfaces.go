package storage

import (
	"context"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/domain"
)

// JournalStore provides access to journal_entries storage. Append-only:
// entries are never updated or deleted.
type JournalStore interface {
	// Append adds a new entry. Returns ErrDuplicateKey if entry_id exists.
	Append(ctx context.Context, e *domain.JournalEntry) error

	// GetByID retrieves an entry by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, entryID string) (*domain.JournalEntry, error)

	// ListByAddress retrieves entries for a candidate address, ordered by
	// created_at ASC, capped at limit (0 = no cap).
	ListByAddress(ctx context.Context, address string, limit int) ([]*domain.JournalEntry, error)

	// ListByKind retrieves entries of one kind, ordered by created_at ASC,
	// capped at limit (0 = no cap).
	ListByKind(ctx context.Context, kind domain.JournalKind, limit int) ([]*domain.JournalEntry, error)

	// ListRecent retrieves the most recent entries, ordered by created_at DESC.
	ListRecent(ctx context.Context, limit int) ([]*domain.JournalEntry, error)

	// Count returns the total number of entries.
	Count(ctx context.Context) (int64, error)
}

// JournalAnalytics is the analytics sink for journal entries. The
// engine mirrors entries into it asynchronously; the JournalStore
// remains the source of truth and writes here are best-effort.
type JournalAnalytics interface {
	// InsertBulk appends a batch of entries. Duplicates are tolerated.
	InsertBulk(ctx context.Context, entries []*domain.JournalEntry) error

	// CountByKindSince returns distinct entry counts per kind with
	// created_at >= sinceMs.
	CountByKindSince(ctx context.Context, sinceMs int64) (map[domain.JournalKind]uint64, error)

	// CauseBreakdown returns distinct entry counts per cause for one
	// kind with created_at >= sinceMs.
	CauseBreakdown(ctx context.Context, kind domain.JournalKind, sinceMs int64) (map[string]uint64, error)
}

// PositionStore provides access to positions storage.
type PositionStore interface {
	// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
	Insert(ctx context.Context, p *domain.Position) error

	// Update replaces a stored position. Returns ErrNotFound if not exists.
	Update(ctx context.Context, p *domain.Position) error

	// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, positionID string) (*domain.Position, error)

	// GetOpenByAddress retrieves the OPEN position for a mint address.
	// Returns ErrNotFound if none is open.
	GetOpenByAddress(ctx context.Context, address string) (*domain.Position, error)

	// ListOpen retrieves all OPEN positions, ordered by opened_at ASC.
	ListOpen(ctx context.Context) ([]*domain.Position, error)

	// ListRecent retrieves the most recent positions in any status,
	// ordered by created_at DESC.
	ListRecent(ctx context.Context, limit int) ([]*domain.Position, error)

	// CountByStatus returns position counts grouped by status.
	CountByStatus(ctx context.Context) (map[domain.PositionStatus]int64, error)
}
