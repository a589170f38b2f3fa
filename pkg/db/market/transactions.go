package market

import (
	"context"
	"fmt"
	"time"
)

// initTransactions creates the transactions table, one-to-one with events.
func (db *DB) initTransactions(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS transactions (
			chain_id BIGINT NOT NULL,
			address TEXT NOT NULL,
			block_number BIGINT NOT NULL,
			log_index INTEGER NOT NULL,
			period_id BIGINT NOT NULL,
			position_id BIGINT NOT NULL,
			type TEXT NOT NULL,
			base_token_delta NUMERIC(78,0) NOT NULL DEFAULT 0,
			quote_token_delta NUMERIC(78,0) NOT NULL DEFAULT 0,
			collateral_delta NUMERIC(78,0) NOT NULL DEFAULT 0,
			trade_ratio TEXT NOT NULL DEFAULT '',
			ts TIMESTAMP WITH TIME ZONE NOT NULL,
			PRIMARY KEY (chain_id, address, block_number, log_index)
		);

		CREATE INDEX IF NOT EXISTS idx_transactions_position ON transactions(period_id, position_id);
		CREATE INDEX IF NOT EXISTS idx_transactions_ts ON transactions(ts);
	`

	return db.Exec(ctx, query)
}

// InsertTransaction appends a derived ledger entry. Rows are immutable;
// a conflict means the source event was already applied and is a bug in the
// caller's idempotency handling, so it surfaces as an error.
func (db *DB) InsertTransaction(ctx context.Context, t *Transaction) error {
	query := `
		INSERT INTO transactions (
			chain_id, address, block_number, log_index, period_id, position_id,
			type, base_token_delta, quote_token_delta, collateral_delta,
			trade_ratio, ts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	return db.Exec(ctx, query,
		t.ChainID, t.Address, t.BlockNumber, t.LogIndex, t.PeriodID, t.PositionID,
		string(t.Type), zeroIfEmpty(t.BaseTokenDelta), zeroIfEmpty(t.QuoteTokenDelta),
		zeroIfEmpty(t.CollateralDelta), t.TradeRatio, t.Timestamp,
	)
}

// ListTransactions returns transactions for a market, newest first, with
// optional period and position filters.
func (db *DB) ListTransactions(ctx context.Context, address string, periodID, positionID *uint64) ([]*Transaction, error) {
	query := `
		SELECT chain_id, address, block_number, log_index, period_id, position_id,
			type, base_token_delta::text, quote_token_delta::text,
			collateral_delta::text, trade_ratio, ts
		FROM transactions
		WHERE chain_id = $1 AND address = $2
	`

	args := []any{db.ChainID, address}
	if periodID != nil {
		args = append(args, *periodID)
		query += fmt.Sprintf(" AND period_id = $%d", len(args))
	}
	if positionID != nil {
		args = append(args, *positionID)
		query += fmt.Sprintf(" AND position_id = $%d", len(args))
	}
	query += ` ORDER BY block_number DESC, log_index DESC`

	return db.queryTransactions(ctx, query, args...)
}

// ListTransactionsInWindow returns a period's transactions with ts in
// [from, to], ascending by chain order. The aggregation service depends on
// this ordering for open/close selection.
func (db *DB) ListTransactionsInWindow(ctx context.Context, address string, periodID uint64, from, to time.Time) ([]*Transaction, error) {
	query := `
		SELECT chain_id, address, block_number, log_index, period_id, position_id,
			type, base_token_delta::text, quote_token_delta::text,
			collateral_delta::text, trade_ratio, ts
		FROM transactions
		WHERE chain_id = $1 AND address = $2 AND period_id = $3
			AND ts >= $4 AND ts <= $5
		ORDER BY block_number ASC, log_index ASC
	`

	return db.queryTransactions(ctx, query, db.ChainID, address, periodID, from, to)
}

func (db *DB) queryTransactions(ctx context.Context, query string, args ...any) ([]*Transaction, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]*Transaction, 0)
	for rows.Next() {
		var t Transaction
		var typ string
		if err := rows.Scan(
			&t.ChainID, &t.Address, &t.BlockNumber, &t.LogIndex, &t.PeriodID, &t.PositionID,
			&typ, &t.BaseTokenDelta, &t.QuoteTokenDelta,
			&t.CollateralDelta, &t.TradeRatio, &t.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		t.Type = TxType(typ)
		txs = append(txs, &t)
	}

	return txs, rows.Err()
}
