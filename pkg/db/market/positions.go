package market

import (
	"context"
	"fmt"
)

// initPositions creates the positions table.
func (db *DB) initPositions(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS positions (
			chain_id BIGINT NOT NULL,
			address TEXT NOT NULL,
			period_id BIGINT NOT NULL,
			position_id BIGINT NOT NULL,
			owner TEXT NOT NULL DEFAULT '',
			is_lp BOOLEAN NOT NULL DEFAULT false,
			base_token NUMERIC(78,0) NOT NULL DEFAULT 0,
			quote_token NUMERIC(78,0) NOT NULL DEFAULT 0,
			borrowed_base_token NUMERIC(78,0) NOT NULL DEFAULT 0,
			borrowed_quote_token NUMERIC(78,0) NOT NULL DEFAULT 0,
			collateral NUMERIC(78,0) NOT NULL DEFAULT 0,
			low_price_tick BIGINT,
			high_price_tick BIGINT,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			PRIMARY KEY (chain_id, address, period_id, position_id)
		);

		CREATE INDEX IF NOT EXISTS idx_positions_owner ON positions(owner);
	`

	return db.Exec(ctx, query)
}

const positionColumns = `
	chain_id, address, period_id, position_id, owner, is_lp,
	base_token::text, quote_token::text,
	borrowed_base_token::text, borrowed_quote_token::text,
	collateral::text, low_price_tick, high_price_tick, updated_at`

func scanPosition(row interface{ Scan(...any) error }) (*Position, error) {
	var p Position
	err := row.Scan(
		&p.ChainID, &p.Address, &p.PeriodID, &p.PositionID, &p.Owner, &p.IsLP,
		&p.BaseToken, &p.QuoteToken,
		&p.BorrowedBaseToken, &p.BorrowedQuoteToken,
		&p.Collateral, &p.LowPriceTick, &p.HighPriceTick, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPosition returns one position, or ErrNotFound.
func (db *DB) GetPosition(ctx context.Context, address string, periodID, positionID uint64) (*Position, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM positions
		WHERE chain_id = $1 AND address = $2 AND period_id = $3 AND position_id = $4
	`, positionColumns)

	p, err := scanPosition(db.QueryRow(ctx, query, db.ChainID, address, periodID, positionID))
	if err != nil {
		return nil, wrapNotFound(err, fmt.Sprintf("position %d in period %d of %s", positionID, periodID, address))
	}
	return p, nil
}

// GetPositionForUpdate locks the position row for the current transaction.
// This is the per-position serialization between a live watcher and a
// concurrent backfill touching the same position.
func (db *DB) GetPositionForUpdate(ctx context.Context, address string, periodID, positionID uint64) (*Position, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM positions
		WHERE chain_id = $1 AND address = $2 AND period_id = $3 AND position_id = $4
		FOR UPDATE
	`, positionColumns)

	p, err := scanPosition(db.QueryRow(ctx, query, db.ChainID, address, periodID, positionID))
	if err != nil {
		return nil, wrapNotFound(err, fmt.Sprintf("position %d in period %d of %s", positionID, periodID, address))
	}
	return p, nil
}

// UpsertPosition writes the position's running totals and metadata.
func (db *DB) UpsertPosition(ctx context.Context, p *Position) error {
	query := `
		INSERT INTO positions (
			chain_id, address, period_id, position_id, owner, is_lp,
			base_token, quote_token, borrowed_base_token, borrowed_quote_token,
			collateral, low_price_tick, high_price_tick, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		ON CONFLICT (chain_id, address, period_id, position_id) DO UPDATE SET
			owner = EXCLUDED.owner,
			is_lp = EXCLUDED.is_lp,
			base_token = EXCLUDED.base_token,
			quote_token = EXCLUDED.quote_token,
			borrowed_base_token = EXCLUDED.borrowed_base_token,
			borrowed_quote_token = EXCLUDED.borrowed_quote_token,
			collateral = EXCLUDED.collateral,
			low_price_tick = EXCLUDED.low_price_tick,
			high_price_tick = EXCLUDED.high_price_tick,
			updated_at = NOW()
	`

	return db.Exec(ctx, query,
		p.ChainID, p.Address, p.PeriodID, p.PositionID, p.Owner, p.IsLP,
		zeroIfEmpty(p.BaseToken), zeroIfEmpty(p.QuoteToken),
		zeroIfEmpty(p.BorrowedBaseToken), zeroIfEmpty(p.BorrowedQuoteToken),
		zeroIfEmpty(p.Collateral), p.LowPriceTick, p.HighPriceTick,
	)
}

// FindPositionAnyPeriod returns the most recent position row carrying the
// given position id regardless of period. Ownership NFT transfers identify
// positions by token id only, so this resolves the period.
func (db *DB) FindPositionAnyPeriod(ctx context.Context, address string, positionID uint64) (*Position, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM positions
		WHERE chain_id = $1 AND address = $2 AND position_id = $3
		ORDER BY period_id DESC
		LIMIT 1
	`, positionColumns)

	p, err := scanPosition(db.QueryRow(ctx, query, db.ChainID, address, positionID))
	if err != nil {
		return nil, wrapNotFound(err, fmt.Sprintf("position %d of %s", positionID, address))
	}
	return p, nil
}

// ListPositions returns positions for a market, optionally filtered by the
// LP flag.
func (db *DB) ListPositions(ctx context.Context, address string, isLP *bool) ([]*Position, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM positions
		WHERE chain_id = $1 AND address = $2
	`, positionColumns)

	args := []any{db.ChainID, address}
	if isLP != nil {
		query += ` AND is_lp = $3`
		args = append(args, *isLP)
	}
	query += ` ORDER BY period_id, position_id`

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	positions := make([]*Position, 0)
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}
		positions = append(positions, p)
	}

	return positions, rows.Err()
}
