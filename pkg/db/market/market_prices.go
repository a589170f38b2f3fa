package market

import (
	"context"
	"fmt"
	"time"
)

// initMarketPrices creates the market_prices table, one sample per trade.
func (db *DB) initMarketPrices(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS market_prices (
			chain_id BIGINT NOT NULL,
			address TEXT NOT NULL,
			period_id BIGINT NOT NULL,
			block_number BIGINT NOT NULL,
			log_index INTEGER NOT NULL,
			price NUMERIC(78,0) NOT NULL DEFAULT 0,
			ts TIMESTAMP WITH TIME ZONE NOT NULL,
			PRIMARY KEY (chain_id, address, block_number, log_index)
		);

		CREATE INDEX IF NOT EXISTS idx_market_prices_period_ts ON market_prices(period_id, ts);
	`

	return db.Exec(ctx, query)
}

// InsertMarketPrice appends one realized-price sample.
func (db *DB) InsertMarketPrice(ctx context.Context, p *MarketPrice) error {
	query := `
		INSERT INTO market_prices (
			chain_id, address, period_id, block_number, log_index, price, ts
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (chain_id, address, block_number, log_index) DO NOTHING
	`

	return db.Exec(ctx, query,
		p.ChainID, p.Address, p.PeriodID, p.BlockNumber, p.LogIndex,
		zeroIfEmpty(p.Price), p.Timestamp,
	)
}

// ListMarketPricesInWindow returns a period's price samples with ts in
// [from, to], ascending by timestamp.
func (db *DB) ListMarketPricesInWindow(ctx context.Context, address string, periodID uint64, from, to time.Time) ([]*MarketPrice, error) {
	query := `
		SELECT chain_id, address, period_id, block_number, log_index, price::text, ts
		FROM market_prices
		WHERE chain_id = $1 AND address = $2 AND period_id = $3
			AND ts >= $4 AND ts <= $5
		ORDER BY ts ASC, block_number ASC, log_index ASC
	`

	rows, err := db.Query(ctx, query, db.ChainID, address, periodID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list market prices: %w", err)
	}
	defer rows.Close()

	prices := make([]*MarketPrice, 0)
	for rows.Next() {
		var p MarketPrice
		if err := rows.Scan(
			&p.ChainID, &p.Address, &p.PeriodID, &p.BlockNumber, &p.LogIndex,
			&p.Price, &p.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan market price row: %w", err)
		}
		prices = append(prices, &p)
	}

	return prices, rows.Err()
}
