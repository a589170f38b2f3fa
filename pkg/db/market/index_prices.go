package market

import (
	"context"
	"fmt"
)

// initIndexPrices creates the index_prices table, keyed by (period, ts).
func (db *DB) initIndexPrices(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS index_prices (
			chain_id BIGINT NOT NULL,
			address TEXT NOT NULL,
			period_id BIGINT NOT NULL,
			ts BIGINT NOT NULL,
			price NUMERIC(78,0) NOT NULL DEFAULT 0,
			PRIMARY KEY (chain_id, address, period_id, ts)
		)
	`

	return db.Exec(ctx, query)
}

// UpsertIndexPrice writes the rolling average for (period, ts). Recomputing
// the same sample produces the same value, so the overwrite is idempotent.
func (db *DB) UpsertIndexPrice(ctx context.Context, p *IndexPrice) error {
	query := `
		INSERT INTO index_prices (chain_id, address, period_id, ts, price)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chain_id, address, period_id, ts) DO UPDATE SET
			price = EXCLUDED.price
	`

	return db.Exec(ctx, query,
		p.ChainID, p.Address, p.PeriodID, p.Timestamp, zeroIfEmpty(p.Price),
	)
}

// ListIndexPricesInRange returns a period's index prices with ts in
// [from, to], ascending.
func (db *DB) ListIndexPricesInRange(ctx context.Context, address string, periodID uint64, from, to int64) ([]*IndexPrice, error) {
	query := `
		SELECT chain_id, address, period_id, ts, price::text
		FROM index_prices
		WHERE chain_id = $1 AND address = $2 AND period_id = $3
			AND ts >= $4 AND ts <= $5
		ORDER BY ts ASC
	`

	rows, err := db.Query(ctx, query, db.ChainID, address, periodID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list index prices: %w", err)
	}
	defer rows.Close()

	prices := make([]*IndexPrice, 0)
	for rows.Next() {
		var p IndexPrice
		if err := rows.Scan(&p.ChainID, &p.Address, &p.PeriodID, &p.Timestamp, &p.Price); err != nil {
			return nil, fmt.Errorf("scan index price row: %w", err)
		}
		prices = append(prices, &p)
	}

	return prices, rows.Err()
}
