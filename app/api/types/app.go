package types

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gridline-markets/gridx/pkg/db/market"
	"github.com/gridline-markets/gridx/pkg/db/postgres"
	"github.com/gridline-markets/gridx/pkg/notify"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

type App struct {
	// Markets caches per-chain market stores keyed by chain id string.
	Markets *xsync.Map[string, market.Store]
	// NotifyClient feeds the WebSocket endpoint; nil when Redis is disabled.
	NotifyClient *notify.Client
	// Zap Logger
	Logger *zap.Logger
	// Server is the HTTP server instance serving the read API.
	Server *http.Server
}

// LoadMarketStore returns the store for one chain, connecting lazily on
// first use.
func (a *App) LoadMarketStore(ctx context.Context, chainID uint64) (market.Store, bool) {
	key := fmt.Sprintf("%d", chainID)
	if store, ok := a.Markets.Load(key); ok {
		return store, true
	}

	a.Logger.Debug("Market store not cached, connecting", zap.Uint64("chainID", chainID))

	db, err := market.New(ctx, a.Logger, chainID, postgres.GetPoolConfigForComponent("api"))
	if err != nil {
		a.Logger.Error("Failed to connect market store",
			zap.Uint64("chainID", chainID),
			zap.Error(err))
		return nil, false
	}

	a.Markets.Store(key, db)
	return db, true
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.NotifyClient != nil {
		if err := a.NotifyClient.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}

	_ = a.Server.Shutdown(shutdownCtx)
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
