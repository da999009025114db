package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/domain"
	"github.com/bydc-cloud/solana-signal-engine-sub002/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

const positionColumns = `
	position_id, address, symbol, source, mode, status, reason,
	score, notional_usd, entry_price_usd, exit_price_usd, token_qty,
	realized_pnl_usd, tx_signature, simulated,
	opened_at, closed_at, created_at, updated_at
`

// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
func (s *PositionStore) Insert(ctx context.Context, p *domain.Position) error {
	if p == nil || p.PositionID == "" || p.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO positions (` + positionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := s.pool.Exec(ctx, query,
		p.PositionID, p.Address, p.Symbol, p.Source, string(p.Mode), string(p.Status), p.Reason,
		p.Score, p.NotionalUSD, p.EntryPriceUSD, p.ExitPriceUSD, p.TokenQty,
		p.RealizedPnLUSD, p.TxSignature, p.Simulated,
		p.OpenedAt, p.ClosedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// Update replaces a stored position. Returns ErrNotFound if not exists.
func (s *PositionStore) Update(ctx context.Context, p *domain.Position) error {
	if p == nil || p.PositionID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE positions SET
			address = $2, symbol = $3, source = $4, mode = $5, status = $6, reason = $7,
			score = $8, notional_usd = $9, entry_price_usd = $10, exit_price_usd = $11,
			token_qty = $12, realized_pnl_usd = $13, tx_signature = $14, simulated = $15,
			opened_at = $16, closed_at = $17, created_at = $18, updated_at = $19
		WHERE position_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		p.PositionID, p.Address, p.Symbol, p.Source, string(p.Mode), string(p.Status), p.Reason,
		p.Score, p.NotionalUSD, p.EntryPriceUSD, p.ExitPriceUSD,
		p.TokenQty, p.RealizedPnLUSD, p.TxSignature, p.Simulated,
		p.OpenedAt, p.ClosedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(ctx context.Context, positionID string) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE position_id = $1`

	row := s.pool.QueryRow(ctx, query, positionID)
	p, err := scanPosition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position by id: %w", err)
	}
	return p, nil
}

// GetOpenByAddress retrieves the OPEN position for a mint address.
// Returns ErrNotFound if none is open.
func (s *PositionStore) GetOpenByAddress(ctx context.Context, address string) (*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE address = $1 AND status = $2
		ORDER BY opened_at DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, address, string(domain.StatusOpen))
	p, err := scanPosition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get open position by address: %w", err)
	}
	return p, nil
}

// ListOpen retrieves all OPEN positions, ordered by opened_at ASC.
func (s *PositionStore) ListOpen(ctx context.Context) ([]*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE status = $1
		ORDER BY opened_at ASC, position_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(domain.StatusOpen))
	if err != nil {
		return nil, fmt.Errorf("list open positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// ListRecent retrieves the most recent positions, ordered by created_at DESC.
func (s *PositionStore) ListRecent(ctx context.Context, limit int) ([]*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		ORDER BY created_at DESC, position_id DESC
	`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recent positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// CountByStatus returns position counts grouped by status.
func (s *PositionStore) CountByStatus(ctx context.Context) (map[domain.PositionStatus]int64, error) {
	query := `SELECT status, count(*) FROM positions GROUP BY status`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count positions by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.PositionStatus]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count row: %w", err)
		}
		counts[domain.PositionStatus(status)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status count rows: %w", err)
	}

	return counts, nil
}

// scanPosition scans a single row into a Position.
func scanPosition(row pgx.Row) (*domain.Position, error) {
	var p domain.Position
	var modeStr, statusStr string

	err := row.Scan(
		&p.PositionID, &p.Address, &p.Symbol, &p.Source, &modeStr, &statusStr, &p.Reason,
		&p.Score, &p.NotionalUSD, &p.EntryPriceUSD, &p.ExitPriceUSD, &p.TokenQty,
		&p.RealizedPnLUSD, &p.TxSignature, &p.Simulated,
		&p.OpenedAt, &p.ClosedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Mode = domain.Mode(modeStr)
	p.Status = domain.PositionStatus(statusStr)
	return &p, nil
}

// scanPositions scans multiple rows into a slice of Position.
func scanPositions(rows pgx.Rows) ([]*domain.Position, error) {
	var positions []*domain.Position

	for rows.Next() {
		var p domain.Position
		var modeStr, statusStr string

		err := rows.Scan(
			&p.PositionID, &p.Address, &p.Symbol, &p.Source, &modeStr, &statusStr, &p.Reason,
			&p.Score, &p.NotionalUSD, &p.EntryPriceUSD, &p.ExitPriceUSD, &p.TokenQty,
			&p.RealizedPnLUSD, &p.TxSignature, &p.Simulated,
			&p.OpenedAt, &p.ClosedAt, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}

		p.Mode = domain.Mode(modeStr)
		p.Status = domain.PositionStatus(statusStr)
		positions = append(positions, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position rows: %w", err)
	}

	return positions, nil
}
