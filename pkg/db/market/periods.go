package market

import (
	"context"
	"fmt"
)

// initPeriods creates the periods table.
func (db *DB) initPeriods(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS periods (
			chain_id BIGINT NOT NULL,
			address TEXT NOT NULL,
			period_id BIGINT NOT NULL,
			start_time BIGINT NOT NULL,
			end_time BIGINT NOT NULL,
			starting_sqrt_price NUMERIC(78,0) NOT NULL DEFAULT 0,
			settled BOOLEAN NOT NULL DEFAULT false,
			settlement_price NUMERIC(78,0) NOT NULL DEFAULT 0,
			PRIMARY KEY (chain_id, address, period_id)
		);

		CREATE INDEX IF NOT EXISTS idx_periods_time ON periods(start_time, end_time);
	`

	return db.Exec(ctx, query)
}

// UpsertPeriod creates or updates a trading period. Settlement is an update
// through the same path: settled=true plus the settlement price.
func (db *DB) UpsertPeriod(ctx context.Context, p *Period) error {
	query := `
		INSERT INTO periods (
			chain_id, address, period_id, start_time, end_time,
			starting_sqrt_price, settled, settlement_price
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (chain_id, address, period_id) DO UPDATE SET
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			starting_sqrt_price = EXCLUDED.starting_sqrt_price,
			settled = EXCLUDED.settled,
			settlement_price = EXCLUDED.settlement_price
	`

	return db.Exec(ctx, query,
		p.ChainID, p.Address, p.PeriodID, p.StartTime, p.EndTime,
		zeroIfEmpty(p.StartingSqrtPrice), p.Settled, zeroIfEmpty(p.SettlementPrice),
	)
}

// GetPeriod returns one period, or ErrNotFound.
func (db *DB) GetPeriod(ctx context.Context, address string, periodID uint64) (*Period, error) {
	query := `
		SELECT chain_id, address, period_id, start_time, end_time,
			starting_sqrt_price::text, settled, settlement_price::text
		FROM periods
		WHERE chain_id = $1 AND address = $2 AND period_id = $3
	`

	var p Period
	err := db.QueryRow(ctx, query, db.ChainID, address, periodID).Scan(
		&p.ChainID, &p.Address, &p.PeriodID, &p.StartTime, &p.EndTime,
		&p.StartingSqrtPrice, &p.Settled, &p.SettlementPrice,
	)
	if err != nil {
		return nil, wrapNotFound(err, fmt.Sprintf("period %d of %s", periodID, address))
	}
	return &p, nil
}

// ListPeriods returns all periods of a market ordered by period id.
func (db *DB) ListPeriods(ctx context.Context, address string) ([]*Period, error) {
	query := `
		SELECT chain_id, address, period_id, start_time, end_time,
			starting_sqrt_price::text, settled, settlement_price::text
		FROM periods
		WHERE chain_id = $1 AND address = $2
		ORDER BY period_id
	`

	rows, err := db.Query(ctx, query, db.ChainID, address)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	defer rows.Close()

	periods := make([]*Period, 0)
	for rows.Next() {
		var p Period
		if err := rows.Scan(
			&p.ChainID, &p.Address, &p.PeriodID, &p.StartTime, &p.EndTime,
			&p.StartingSqrtPrice, &p.Settled, &p.SettlementPrice,
		); err != nil {
			return nil, fmt.Errorf("scan period row: %w", err)
		}
		periods = append(periods, &p)
	}

	return periods, rows.Err()
}
