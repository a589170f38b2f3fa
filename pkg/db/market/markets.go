package market

import (
	"context"
	"fmt"
)

// initMarkets creates the markets table.
func (db *DB) initMarkets(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS markets (
			chain_id BIGINT NOT NULL,
			address TEXT NOT NULL,
			owner TEXT NOT NULL DEFAULT '',
			collateral_asset TEXT NOT NULL DEFAULT '',
			deploy_block BIGINT NOT NULL DEFAULT 0,
			fee_rate NUMERIC(78,0) NOT NULL DEFAULT 0,
			bond_amount NUMERIC(78,0) NOT NULL DEFAULT 0,
			bond_currency TEXT NOT NULL DEFAULT '',
			min_price_tick BIGINT NOT NULL DEFAULT 0,
			max_price_tick BIGINT NOT NULL DEFAULT 0,
			price_oracle TEXT NOT NULL DEFAULT '',
			settlement_oracle TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			PRIMARY KEY (chain_id, address)
		)
	`

	return db.Exec(ctx, query)
}

// UpsertMarket creates the market or updates its parameters in place.
// Identity columns never change after the first insert.
func (db *DB) UpsertMarket(ctx context.Context, m *Market) error {
	query := `
		INSERT INTO markets (
			chain_id, address, owner, collateral_asset, deploy_block,
			fee_rate, bond_amount, bond_currency, min_price_tick, max_price_tick,
			price_oracle, settlement_oracle
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (chain_id, address) DO UPDATE SET
			owner = EXCLUDED.owner,
			collateral_asset = EXCLUDED.collateral_asset,
			deploy_block = EXCLUDED.deploy_block,
			fee_rate = EXCLUDED.fee_rate,
			bond_amount = EXCLUDED.bond_amount,
			bond_currency = EXCLUDED.bond_currency,
			min_price_tick = EXCLUDED.min_price_tick,
			max_price_tick = EXCLUDED.max_price_tick,
			price_oracle = EXCLUDED.price_oracle,
			settlement_oracle = EXCLUDED.settlement_oracle,
			updated_at = NOW()
	`

	return db.Exec(ctx, query,
		m.ChainID, m.Address, m.Owner, m.CollateralAsset, m.DeployBlock,
		zeroIfEmpty(m.FeeRate), zeroIfEmpty(m.BondAmount), m.BondCurrency,
		m.MinPriceTick, m.MaxPriceTick, m.PriceOracle, m.SettlementOracle,
	)
}

// GetMarket returns the market by address, or ErrNotFound.
func (db *DB) GetMarket(ctx context.Context, address string) (*Market, error) {
	query := `
		SELECT chain_id, address, owner, collateral_asset, deploy_block,
			fee_rate::text, bond_amount::text, bond_currency,
			min_price_tick, max_price_tick, price_oracle, settlement_oracle,
			created_at, updated_at
		FROM markets
		WHERE chain_id = $1 AND address = $2
	`

	var m Market
	err := db.QueryRow(ctx, query, db.ChainID, address).Scan(
		&m.ChainID, &m.Address, &m.Owner, &m.CollateralAsset, &m.DeployBlock,
		&m.FeeRate, &m.BondAmount, &m.BondCurrency,
		&m.MinPriceTick, &m.MaxPriceTick, &m.PriceOracle, &m.SettlementOracle,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, wrapNotFound(err, fmt.Sprintf("market %s", address))
	}
	return &m, nil
}

// ListMarkets returns every tracked market on this chain.
func (db *DB) ListMarkets(ctx context.Context) ([]*Market, error) {
	query := `
		SELECT chain_id, address, owner, collateral_asset, deploy_block,
			fee_rate::text, bond_amount::text, bond_currency,
			min_price_tick, max_price_tick, price_oracle, settlement_oracle,
			created_at, updated_at
		FROM markets
		ORDER BY address
	`

	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	defer rows.Close()

	markets := make([]*Market, 0)
	for rows.Next() {
		var m Market
		if err := rows.Scan(
			&m.ChainID, &m.Address, &m.Owner, &m.CollateralAsset, &m.DeployBlock,
			&m.FeeRate, &m.BondAmount, &m.BondCurrency,
			&m.MinPriceTick, &m.MaxPriceTick, &m.PriceOracle, &m.SettlementOracle,
			&m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan market row: %w", err)
		}
		markets = append(markets, &m)
	}

	return markets, rows.Err()
}
