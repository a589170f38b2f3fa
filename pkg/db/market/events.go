package market

import (
	"context"
	"fmt"
)

// initEvents creates the events table. The primary key is the at-most-once
// invariant: redelivery from an overlapping backfill or a restarted watcher
// conflicts here and becomes a no-op before any derived write happens.
func (db *DB) initEvents(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS events (
			chain_id BIGINT NOT NULL,
			address TEXT NOT NULL,
			block_number BIGINT NOT NULL,
			log_index INTEGER NOT NULL,
			name TEXT NOT NULL,
			args TEXT NOT NULL DEFAULT '{}',
			tx_hash TEXT NOT NULL DEFAULT '',
			topics TEXT[] NOT NULL DEFAULT '{}',
			ts TIMESTAMP WITH TIME ZONE NOT NULL,
			PRIMARY KEY (chain_id, address, block_number, log_index)
		);

		CREATE INDEX IF NOT EXISTS idx_events_name ON events(name);
		CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);
	`

	return db.Exec(ctx, query)
}

// InsertEvent persists a normalized event under its uniqueness key.
// Returns inserted=false on conflict; the caller must treat that as
// success-no-op and skip reducer application.
func (db *DB) InsertEvent(ctx context.Context, e *Event) (bool, error) {
	query := `
		INSERT INTO events (
			chain_id, address, block_number, log_index,
			name, args, tx_hash, topics, ts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (chain_id, address, block_number, log_index) DO NOTHING
	`

	tag, err := db.GetExecutor(ctx).Exec(ctx, query,
		e.ChainID, e.Address, e.BlockNumber, e.LogIndex,
		e.Name, e.Args, e.TxHash, e.Topics, e.Timestamp,
	)
	if err != nil {
		return false, fmt.Errorf("insert event %d/%d: %w", e.BlockNumber, e.LogIndex, err)
	}

	return tag.RowsAffected() > 0, nil
}

// CountEvents returns the number of stored events for a market.
func (db *DB) CountEvents(ctx context.Context, address string) (uint64, error) {
	var n uint64
	err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM events WHERE chain_id = $1 AND address = $2`,
		db.ChainID, address,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// ListEvents returns events for a market in (block_number, log_index)
// ascending order, the only order the reducer may apply them in.
func (db *DB) ListEvents(ctx context.Context, address string, fromBlock, toBlock uint64) ([]*Event, error) {
	query := `
		SELECT chain_id, address, block_number, log_index,
			name, args, tx_hash, topics, ts
		FROM events
		WHERE chain_id = $1 AND address = $2
			AND block_number >= $3 AND block_number <= $4
		ORDER BY block_number ASC, log_index ASC
	`

	rows, err := db.Query(ctx, query, db.ChainID, address, fromBlock, toBlock)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]*Event, 0)
	for rows.Next() {
		var e Event
		if err := rows.Scan(
			&e.ChainID, &e.Address, &e.BlockNumber, &e.LogIndex,
			&e.Name, &e.Args, &e.TxHash, &e.Topics, &e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, &e)
	}

	return events, rows.Err()
}

// LatestEventBlock returns the highest block number with a stored event for
// the market, zero when none exist.
func (db *DB) LatestEventBlock(ctx context.Context, address string) (uint64, error) {
	var block uint64
	err := db.QueryRow(ctx,
		`SELECT COALESCE(MAX(block_number), 0) FROM events WHERE chain_id = $1 AND address = $2`,
		db.ChainID, address,
	).Scan(&block)
	if err != nil {
		return 0, fmt.Errorf("latest event block: %w", err)
	}
	return block, nil
}
