package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gridline-markets/gridx/pkg/db/postgres"
	"go.uber.org/zap"
)

// DB is the per-chain market store. Each tracked chain gets its own database
// (market_chain_<id>) so backfills on one chain never contend with another.
type DB struct {
	postgres.Client
	Name    string
	ChainID uint64
}

// New creates and initializes a chain-scoped market database.
func New(ctx context.Context, logger *zap.Logger, chainID uint64, poolConfig *postgres.PoolConfig) (*DB, error) {
	name := fmt.Sprintf("market_chain_%d", chainID)

	client, err := postgres.New(ctx, logger.With(
		zap.String("db", name),
		zap.Uint64("chain_id", chainID),
	), name, poolConfig)
	if err != nil {
		return nil, err
	}

	db := &DB{
		Client:  client,
		Name:    name,
		ChainID: chainID,
	}

	if err := db.InitializeDB(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

// NewWithSharedClient wraps an existing client for read-only consumers (the
// API apps), skipping DDL. All queries are schema-qualified by table name
// only, so one pool serves multiple chain databases.
func NewWithSharedClient(client postgres.Client, chainID uint64) *DB {
	return &DB{
		Client:  client,
		Name:    fmt.Sprintf("market_chain_%d", chainID),
		ChainID: chainID,
	}
}

// Close terminates the underlying connection pool.
func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}

// InitializeDB ensures the required database and tables exist.
// Tables are created in parallel; DDL is idempotent.
func (db *DB) InitializeDB(ctx context.Context) error {
	initStart := time.Now()

	db.Logger.Info("Initializing market database",
		zap.String("database", db.Name),
		zap.Uint64("chain_id", db.ChainID))

	if err := db.CreateDbIfNotExists(ctx, db.Name); err != nil {
		return fmt.Errorf("failed to create database %s: %w", db.Name, err)
	}

	initOps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"markets", db.initMarkets},
		{"periods", db.initPeriods},
		{"events", db.initEvents},
		{"transactions", db.initTransactions},
		{"positions", db.initPositions},
		{"market_prices", db.initMarketPrices},
		{"resource_prices", db.initResourcePrices},
		{"index_prices", db.initIndexPrices},
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(initOps))

	for _, op := range initOps {
		wg.Add(1)
		go func(name string, fn func(context.Context) error) {
			defer wg.Done()
			db.Logger.Debug("Initializing table", zap.String("table", name))
			if err := fn(ctx); err != nil {
				errChan <- fmt.Errorf("init %s: %w", name, err)
			}
		}(op.name, op.fn)
	}

	wg.Wait()
	close(errChan)

	for err := range errChan {
		return err
	}

	db.Logger.Info("Market database initialized",
		zap.String("database", db.Name),
		zap.Duration("duration", time.Since(initStart)))

	return nil
}
