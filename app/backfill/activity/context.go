package activity

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/gridline-markets/gridx/pkg/chain"
	adminstore "github.com/gridline-markets/gridx/pkg/db/admin"
	"github.com/gridline-markets/gridx/pkg/db/market"
	"github.com/gridline-markets/gridx/pkg/db/postgres"
	"github.com/gridline-markets/gridx/pkg/notify"
	"github.com/gridline-markets/gridx/pkg/projection"
)

type Context struct {
	Logger *zap.Logger
	// Admin and per-chain market DBs
	AdminDB *adminstore.DB
	Markets *xsync.Map[string, market.Store]
	// Chain RPC clients keyed by chain id
	Chains *chain.Registry
	// For publishing real-time events (optional)
	NotifyClient *notify.Client

	// FetchMaxParallelism overrides the default prefetch pool size.
	FetchMaxParallelism int
	fetchPoolOnce       sync.Once
	fetchPool           pond.Pool
}

// MarketStore returns the market store for one chain, connecting lazily.
func (c *Context) MarketStore(ctx context.Context, chainID uint64) (market.Store, error) {
	key := fmt.Sprintf("%d", chainID)
	if store, ok := c.Markets.Load(key); ok {
		return store, nil
	}

	db, err := market.New(ctx, c.Logger, chainID, postgres.GetPoolConfigForComponent("backfill"))
	if err != nil {
		return nil, err
	}

	c.Markets.Store(key, db)
	return db, nil
}

// prefetchPool returns the shared pool used to fetch block headers and logs
// ahead of the in-order apply loop.
func (c *Context) prefetchPool() pond.Pool {
	c.fetchPoolOnce.Do(func() {
		workers := c.FetchMaxParallelism
		if workers <= 0 {
			workers = runtime.NumCPU() * 2
		}
		if workers < 2 {
			workers = 2
		}
		if workers > 64 {
			workers = 64
		}
		c.fetchPool = pond.NewPool(workers)
	})
	return c.fetchPool
}

// Applier builds the shared write path over one chain's store.
func (c *Context) Applier(store market.Store) *projection.Applier {
	var notifier projection.Notifier
	if c.NotifyClient != nil {
		notifier = c.NotifyClient
	}
	return projection.NewApplier(store, notifier, c.Logger)
}
