package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gridline-markets/gridx/pkg/retry"
	"github.com/gridline-markets/gridx/pkg/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Executor is an interface that both *pgxpool.Pool and pgx.Tx implement.
// This allows store methods to work with either a connection pool or a
// transaction carried in the context.
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Client wraps a PostgreSQL connection pool and provides helper methods.
type Client struct {
	Logger         *zap.Logger
	Pool           *pgxpool.Pool
	TargetDatabase string
}

// PoolConfig defines connection pool settings for a specific component.
type PoolConfig struct {
	MinConns        int32
	MaxConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	Component       string
}

// New initializes and returns a new PostgreSQL client. The connection is
// retried with backoff so deploys do not race the database coming up.
func New(ctx context.Context, logger *zap.Logger, dbName string, poolConfig ...*PoolConfig) (client Client, err error) {
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	client.Logger = logger
	client.TargetDatabase = dbName
	retryConfig := retry.DefaultConfig()

	dbURL := utils.Env("POSTGRES_URL", "postgres://localhost:5432/postgres")

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return Client{}, fmt.Errorf("failed to parse POSTGRES_URL: %w", err)
	}

	var poolConf PoolConfig
	if len(poolConfig) > 0 && poolConfig[0] != nil {
		poolConf = *poolConfig[0]
	} else {
		poolConf = PoolConfig{
			MinConns:        2,
			MaxConns:        20,
			ConnMaxLifetime: 1 * time.Hour,
			ConnMaxIdleTime: 30 * time.Minute,
			Component:       "unknown",
		}
	}

	config.MinConns = poolConf.MinConns
	config.MaxConns = poolConf.MaxConns
	config.MaxConnLifetime = poolConf.ConnMaxLifetime
	config.MaxConnIdleTime = poolConf.ConnMaxIdleTime

	retryErr := retry.WithBackoff(connCtx, retryConfig, logger, "postgres_connection", func() error {
		pool, openErr := pgxpool.NewWithConfig(connCtx, config)
		if openErr != nil {
			return fmt.Errorf("failed to create postgres connection pool: %w", openErr)
		}

		client.Pool = pool

		if pingErr := pool.Ping(connCtx); pingErr != nil {
			pool.Close()
			return fmt.Errorf("failed to ping postgres: %w", pingErr)
		}

		logger.Info("PostgreSQL connection pool configured",
			zap.String("database", dbName),
			zap.String("component", poolConf.Component),
			zap.Int32("min_conns", poolConf.MinConns),
			zap.Int32("max_conns", poolConf.MaxConns),
		)

		return nil
	})

	if retryErr != nil {
		return Client{}, retryErr
	}

	return client, nil
}

// CreateDbIfNotExists ensures that the specified database exists.
// Requires connecting to a default database (like 'postgres') first.
func (c *Client) CreateDbIfNotExists(ctx context.Context, dbName string) error {
	var exists bool
	query := "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)"
	err := c.Pool.QueryRow(ctx, query, dbName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check if database exists: %w", err)
	}

	if !exists {
		// CREATE DATABASE cannot be parameterized.
		query := fmt.Sprintf("CREATE DATABASE %s", pgx.Identifier{dbName}.Sanitize())
		c.Logger.Info("Creating database", zap.String("database", dbName))
		_, err = c.Pool.Exec(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
	}

	return nil
}

// Exec executes a query without returning any rows. Honors a transaction in
// the context.
func (c *Client) Exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := c.GetExecutor(ctx).Exec(ctx, query, args...)
	return err
}

// Query executes a query that returns rows.
// IMPORTANT: Caller MUST call rows.Close() when done to release the connection.
func (c *Client) Query(ctx context.Context, query string, args ...interface{}) (pgx.Rows, error) {
	return c.GetExecutor(ctx).Query(ctx, query, args...)
}

// QueryRow executes a query that is expected to return at most one row.
func (c *Client) QueryRow(ctx context.Context, query string, args ...interface{}) pgx.Row {
	return c.GetExecutor(ctx).QueryRow(ctx, query, args...)
}

// Begin starts a new transaction.
func (c *Client) Begin(ctx context.Context) (pgx.Tx, error) {
	return c.Pool.Begin(ctx)
}

// BeginFunc executes a function within a transaction. If the function returns
// an error, the transaction is rolled back; otherwise it is committed.
func (c *Client) BeginFunc(ctx context.Context, fn func(pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, c.Pool, fn)
}

// Close closes the connection pool.
func (c *Client) Close() {
	c.Pool.Close()
}

// ctxKey is the type used for context keys to avoid collisions.
type ctxKey string

// txKey is the context key for storing the transaction.
const txKey ctxKey = "pgx_tx"

// WithTx returns a new context with the transaction embedded. Store methods
// called with this context run inside the transaction.
func (c *Client) WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

// GetExecutor returns the transaction from the context when present, the
// connection pool otherwise.
func (c *Client) GetExecutor(ctx context.Context) Executor {
	if tx, ok := ctx.Value(txKey).(pgx.Tx); ok {
		return tx
	}
	return c.Pool
}

// IsNoRows checks if the error is a "no rows" error.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// GetPoolConfigForComponent returns deterministic pool settings per component.
func GetPoolConfigForComponent(component string) *PoolConfig {
	var minConns, maxConns int32
	connMaxLifetime := 5 * time.Minute
	connMaxIdleTime := 2 * time.Minute

	switch component {
	case "watcher":
		minConns = 5
		maxConns = 30
	case "backfill":
		minConns = 5
		maxConns = 40
	case "api":
		minConns = 2
		maxConns = 15
	case "admin":
		minConns = 2
		maxConns = 10
	default:
		minConns = 2
		maxConns = 20
	}

	return &PoolConfig{
		MinConns:        minConns,
		MaxConns:        maxConns,
		ConnMaxLifetime: connMaxLifetime,
		ConnMaxIdleTime: connMaxIdleTime,
		Component:       component,
	}
}
