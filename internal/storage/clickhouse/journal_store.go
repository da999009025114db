package clickhouse

import (
	"context"
	"fmt"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/domain"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/storage"
)

// JournalStore implements storage.JournalAnalytics using ClickHouse.
// Best-effort mirror of the PostgreSQL journal; ReplacingMergeTree plus
// distinct counts keep replayed entries from skewing results.
type JournalStore struct {
	conn *Conn
}

// NewJournalStore creates a new analytics JournalStore.
func NewJournalStore(conn *Conn) *JournalStore {
	return &JournalStore{conn: conn}
}

// Compile-time interface check.
var _ storage.JournalAnalytics = (*JournalStore)(nil)

// InsertBulk appends a batch of entries. Duplicates are tolerated and
// collapse at merge time.
func (s *JournalStore) InsertBulk(ctx context.Context, entries []*domain.JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO journal_entries (
			entry_id, kind, address, position_id, cause, detail, created_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range entries {
		err = batch.Append(
			e.EntryID, string(e.Kind), e.Address, e.PositionID,
			e.Cause, e.Detail, uint64(e.CreatedAt),
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

// CountByKindSince returns distinct entry counts per kind with
// created_at >= sinceMs.
func (s *JournalStore) CountByKindSince(ctx context.Context, sinceMs int64) (map[domain.JournalKind]uint64, error) {
	query := `
		SELECT kind, uniqExact(entry_id)
		FROM journal_entries
		WHERE created_at >= ?
		GROUP BY kind
	`

	rows, err := s.conn.Query(ctx, query, uint64(sinceMs))
	if err != nil {
		return nil, fmt.Errorf("count by kind: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.JournalKind]uint64)
	for rows.Next() {
		var kind string
		var count uint64
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("scan kind count row: %w", err)
		}
		counts[domain.JournalKind(kind)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kind count rows: %w", err)
	}

	return counts, nil
}

// CauseBreakdown returns distinct entry counts per cause for one kind
// with created_at >= sinceMs.
func (s *JournalStore) CauseBreakdown(ctx context.Context, kind domain.JournalKind, sinceMs int64) (map[string]uint64, error) {
	query := `
		SELECT cause, uniqExact(entry_id)
		FROM journal_entries
		WHERE kind = ? AND created_at >= ?
		GROUP BY cause
	`

	rows, err := s.conn.Query(ctx, query, string(kind), uint64(sinceMs))
	if err != nil {
		return nil, fmt.Errorf("cause breakdown: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]uint64)
	for rows.Next() {
		var cause string
		var count uint64
		if err := rows.Scan(&cause, &count); err != nil {
			return nil, fmt.Errorf("scan cause count row: %w", err)
		}
		counts[cause] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cause count rows: %w", err)
	}

	return counts, nil
}
