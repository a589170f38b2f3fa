package market

import (
	"context"
	"fmt"
)

// initResourcePrices creates the resource_prices table: one row per sampled
// block with the fee paid and units used for the market's resource.
func (db *DB) initResourcePrices(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS resource_prices (
			chain_id BIGINT NOT NULL,
			address TEXT NOT NULL,
			block_number BIGINT NOT NULL,
			fee_paid NUMERIC(78,0) NOT NULL DEFAULT 0,
			used NUMERIC(78,0) NOT NULL DEFAULT 0,
			ts BIGINT NOT NULL,
			PRIMARY KEY (chain_id, address, block_number)
		);

		CREATE INDEX IF NOT EXISTS idx_resource_prices_ts ON resource_prices(address, ts);
	`

	return db.Exec(ctx, query)
}

// UpsertResourcePrice records one per-block sample. Re-sampling a block
// (backfill over an already-watched range) overwrites with identical data.
func (db *DB) UpsertResourcePrice(ctx context.Context, p *ResourcePrice) error {
	query := `
		INSERT INTO resource_prices (chain_id, address, block_number, fee_paid, used, ts)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (chain_id, address, block_number) DO UPDATE SET
			fee_paid = EXCLUDED.fee_paid,
			used = EXCLUDED.used,
			ts = EXCLUDED.ts
	`

	return db.Exec(ctx, query,
		p.ChainID, p.Address, p.BlockNumber,
		zeroIfEmpty(p.FeePaid), zeroIfEmpty(p.Used), p.Timestamp,
	)
}

// ListResourcePricesInRange returns samples with ts in [from, to] inclusive,
// ascending by timestamp. The index price aggregator depends on both the
// inclusive bounds and the ordering.
func (db *DB) ListResourcePricesInRange(ctx context.Context, address string, from, to int64) ([]*ResourcePrice, error) {
	query := `
		SELECT chain_id, address, block_number, fee_paid::text, used::text, ts
		FROM resource_prices
		WHERE chain_id = $1 AND address = $2 AND ts >= $3 AND ts <= $4
		ORDER BY ts ASC
	`

	rows, err := db.Query(ctx, query, db.ChainID, address, from, to)
	if err != nil {
		return nil, fmt.Errorf("list resource prices: %w", err)
	}
	defer rows.Close()

	prices := make([]*ResourcePrice, 0)
	for rows.Next() {
		var p ResourcePrice
		if err := rows.Scan(
			&p.ChainID, &p.Address, &p.BlockNumber, &p.FeePaid, &p.Used, &p.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan resource price row: %w", err)
		}
		prices = append(prices, &p)
	}

	return prices, rows.Err()
}

// ResourcePriceBlocks returns the distinct sampled block numbers in
// [fromBlock, toBlock], ascending. The missing-blocks reconciliation query
// diffs the expected range against this set.
func (db *DB) ResourcePriceBlocks(ctx context.Context, address string, fromBlock, toBlock uint64) ([]uint64, error) {
	query := `
		SELECT block_number FROM resource_prices
		WHERE chain_id = $1 AND address = $2
			AND block_number >= $3 AND block_number <= $4
		ORDER BY block_number ASC
	`

	rows, err := db.Query(ctx, query, db.ChainID, address, fromBlock, toBlock)
	if err != nil {
		return nil, fmt.Errorf("resource price blocks: %w", err)
	}
	defer rows.Close()

	blocks := make([]uint64, 0)
	for rows.Next() {
		var b uint64
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("scan block number: %w", err)
		}
		blocks = append(blocks, b)
	}

	return blocks, rows.Err()
}
