package market

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Store is the capability surface the projection engine and the read API
// consume. *DB implements it against Postgres; tests substitute in-memory
// fakes.
type Store interface {
	// InTx runs fn with a transaction carried in the context; every store
	// call inside fn joins that transaction. All writes for one event go
	// through a single InTx so a persisted event always has fully-applied
	// derived state.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	UpsertMarket(ctx context.Context, m *Market) error
	GetMarket(ctx context.Context, address string) (*Market, error)
	ListMarkets(ctx context.Context) ([]*Market, error)

	UpsertPeriod(ctx context.Context, p *Period) error
	GetPeriod(ctx context.Context, address string, periodID uint64) (*Period, error)
	ListPeriods(ctx context.Context, address string) ([]*Period, error)

	InsertEvent(ctx context.Context, e *Event) (bool, error)
	CountEvents(ctx context.Context, address string) (uint64, error)
	ListEvents(ctx context.Context, address string, fromBlock, toBlock uint64) ([]*Event, error)
	LatestEventBlock(ctx context.Context, address string) (uint64, error)

	GetPosition(ctx context.Context, address string, periodID, positionID uint64) (*Position, error)
	GetPositionForUpdate(ctx context.Context, address string, periodID, positionID uint64) (*Position, error)
	FindPositionAnyPeriod(ctx context.Context, address string, positionID uint64) (*Position, error)
	UpsertPosition(ctx context.Context, p *Position) error
	ListPositions(ctx context.Context, address string, isLP *bool) ([]*Position, error)

	InsertTransaction(ctx context.Context, t *Transaction) error
	ListTransactions(ctx context.Context, address string, periodID, positionID *uint64) ([]*Transaction, error)
	ListTransactionsInWindow(ctx context.Context, address string, periodID uint64, from, to time.Time) ([]*Transaction, error)

	InsertMarketPrice(ctx context.Context, p *MarketPrice) error
	ListMarketPricesInWindow(ctx context.Context, address string, periodID uint64, from, to time.Time) ([]*MarketPrice, error)

	UpsertResourcePrice(ctx context.Context, p *ResourcePrice) error
	ListResourcePricesInRange(ctx context.Context, address string, from, to int64) ([]*ResourcePrice, error)
	ResourcePriceBlocks(ctx context.Context, address string, fromBlock, toBlock uint64) ([]uint64, error)

	UpsertIndexPrice(ctx context.Context, p *IndexPrice) error
	ListIndexPricesInRange(ctx context.Context, address string, periodID uint64, from, to int64) ([]*IndexPrice, error)
}

var _ Store = (*DB)(nil)

// InTx implements Store by opening a pgx transaction and threading it
// through the context, so nested store calls join it automatically.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.BeginFunc(ctx, func(tx pgx.Tx) error {
		return fn(db.WithTx(ctx, tx))
	})
}
