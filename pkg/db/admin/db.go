// Package admin holds operator-facing state: backfill job records and
// dashboard credentials. One shared database across all chains, unlike the
// per-chain market databases.
package admin

import (
	"context"
	"fmt"

	"github.com/gridline-markets/gridx/pkg/db/postgres"
	"go.uber.org/zap"
)

// DB is the PostgreSQL connection for admin operations.
type DB struct {
	postgres.Client
	Name string
}

// New creates and initializes the admin database.
func New(ctx context.Context, logger *zap.Logger, poolConfig *postgres.PoolConfig) (*DB, error) {
	name := "gridx_admin"
	client, err := postgres.New(ctx, logger.With(
		zap.String("db", name),
		zap.String("component", poolConfig.Component),
	), name, poolConfig)
	if err != nil {
		return nil, err
	}

	db := &DB{Client: client, Name: name}
	if err := db.InitializeDB(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// InitializeDB ensures the required database and tables exist.
func (db *DB) InitializeDB(ctx context.Context) error {
	db.Logger.Info("Initializing admin database", zap.String("database", db.Name))

	if err := db.CreateDbIfNotExists(ctx, db.Name); err != nil {
		return fmt.Errorf("failed to create database %s: %w", db.Name, err)
	}

	if err := db.initBackfillJobs(ctx); err != nil {
		return err
	}
	return db.initUsers(ctx)
}

// Close terminates the underlying connection pool.
func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}
