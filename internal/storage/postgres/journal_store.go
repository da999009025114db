package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/domain"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/storage"
)

// JournalStore implements storage.JournalStore using PostgreSQL.
type JournalStore struct {
	pool *Pool
}

// NewJournalStore creates a new JournalStore.
func NewJournalStore(pool *Pool) *JournalStore {
	return &JournalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.JournalStore = (*JournalStore)(nil)

// Append adds a new entry. Returns ErrDuplicateKey if entry_id exists.
func (s *JournalStore) Append(ctx context.Context, e *domain.JournalEntry) error {
	if e == nil || e.EntryID == "" || e.Kind == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO journal_entries (
			entry_id, kind, address, position_id, cause, detail, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		e.EntryID,
		string(e.Kind),
		e.Address,
		e.PositionID,
		e.Cause,
		jsonOrNil(e.Detail),
		e.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("append journal entry: %w", err)
	}
	return nil
}

// GetByID retrieves an entry by its ID. Returns ErrNotFound if not exists.
func (s *JournalStore) GetByID(ctx context.Context, entryID string) (*domain.JournalEntry, error) {
	query := `
		SELECT entry_id, kind, address, position_id, cause, detail, created_at
		FROM journal_entries
		WHERE entry_id = $1
	`

	row := s.pool.QueryRow(ctx, query, entryID)
	e, err := scanJournalEntry(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get journal entry by id: %w", err)
	}
	return e, nil
}

// ListByAddress retrieves entries for an address, ordered by created_at ASC.
func (s *JournalStore) ListByAddress(ctx context.Context, address string, limit int) ([]*domain.JournalEntry, error) {
	query := `
		SELECT entry_id, kind, address, position_id, cause, detail, created_at
		FROM journal_entries
		WHERE address = $1
		ORDER BY created_at ASC, entry_id ASC
	`
	args := []interface{}{address}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list journal entries by address: %w", err)
	}
	defer rows.Close()

	return scanJournalEntries(rows)
}

// ListByKind retrieves entries of one kind, ordered by created_at ASC.
func (s *JournalStore) ListByKind(ctx context.Context, kind domain.JournalKind, limit int) ([]*domain.JournalEntry, error) {
	query := `
		SELECT entry_id, kind, address, position_id, cause, detail, created_at
		FROM journal_entries
		WHERE kind = $1
		ORDER BY created_at ASC, entry_id ASC
	`
	args := []interface{}{string(kind)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list journal entries by kind: %w", err)
	}
	defer rows.Close()

	return scanJournalEntries(rows)
}

// ListRecent retrieves the most recent entries, ordered by created_at DESC.
func (s *JournalStore) ListRecent(ctx context.Context, limit int) ([]*domain.JournalEntry, error) {
	query := `
		SELECT entry_id, kind, address, position_id, cause, detail, created_at
		FROM journal_entries
		ORDER BY created_at DESC, entry_id DESC
	`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recent journal entries: %w", err)
	}
	defer rows.Close()

	return scanJournalEntries(rows)
}

// Count returns the total number of entries.
func (s *JournalStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM journal_entries`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count journal entries: %w", err)
	}
	return count, nil
}

// jsonOrNil maps an empty detail document to NULL so the jsonb column
// never sees invalid input.
func jsonOrNil(detail string) interface{} {
	if detail == "" {
		return nil
	}
	return detail
}

// scanJournalEntry scans a single row into a JournalEntry.
func scanJournalEntry(row pgx.Row) (*domain.JournalEntry, error) {
	var e domain.JournalEntry
	var kindStr string
	var detail *string

	err := row.Scan(
		&e.EntryID,
		&kindStr,
		&e.Address,
		&e.PositionID,
		&e.Cause,
		&detail,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Kind = domain.JournalKind(kindStr)
	if detail != nil {
		e.Detail = *detail
	}
	return &e, nil
}

// scanJournalEntries scans multiple rows into a slice of JournalEntry.
func scanJournalEntries(rows pgx.Rows) ([]*domain.JournalEntry, error) {
	var entries []*domain.JournalEntry

	for rows.Next() {
		var e domain.JournalEntry
		var kindStr string
		var detail *string

		err := rows.Scan(
			&e.EntryID,
			&kindStr,
			&e.Address,
			&e.PositionID,
			&e.Cause,
			&detail,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan journal entry row: %w", err)
		}

		e.Kind = domain.JournalKind(kindStr)
		if detail != nil {
			e.Detail = *detail
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal entry rows: %w", err)
	}

	return entries, nil
}
