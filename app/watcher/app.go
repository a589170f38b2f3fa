// Package watcher runs the live-tail side of the projection: one goroutine
// per tracked market consuming the chain's log feed, plus a cron-driven
// resource price sampler feeding the index price aggregator.
package watcher

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/gridline-markets/gridx/pkg/chain"
	"github.com/gridline-markets/gridx/pkg/db/market"
	"github.com/gridline-markets/gridx/pkg/db/postgres"
	"github.com/gridline-markets/gridx/pkg/logging"
	"github.com/gridline-markets/gridx/pkg/notify"
	"github.com/gridline-markets/gridx/pkg/projection"
	"github.com/gridline-markets/gridx/pkg/utils"
)

// TrackedMarket is one (chain, address) pair from the MARKETS env var.
type TrackedMarket struct {
	ChainID uint64
	Address string
}

type App struct {
	Logger       *zap.Logger
	Chains       *chain.Registry
	Markets      []TrackedMarket
	Stores       *xsync.Map[string, market.Store]
	NotifyClient *notify.Client
	Cron         *cron.Cron

	pollInterval time.Duration
}

// Initialize initializes the application.
func Initialize(ctx context.Context) *App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	chains, err := chain.NewRegistryFromEnv(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to initialize chain clients", zap.Error(err))
	}

	tracked, err := parseMarkets(utils.Env("MARKETS", ""))
	if err != nil {
		logger.Fatal("Invalid MARKETS configuration", zap.Error(err))
	}
	if len(tracked) == 0 {
		logger.Fatal("MARKETS environment variable is required, format: <chainId>:<address>,...")
	}

	var notifyClient *notify.Client
	if utils.Env("REDIS_ENABLED", "false") == "true" {
		notifyClient, err = notify.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - event notifications disabled", zap.Error(err))
			notifyClient = nil
		}
	}

	pollSeconds := utils.EnvInt("WATCH_POLL_SECONDS", 5)

	return &App{
		Logger:       logger,
		Chains:       chains,
		Markets:      tracked,
		Stores:       xsync.NewMap[string, market.Store](),
		NotifyClient: notifyClient,
		Cron:         cron.New(),
		pollInterval: time.Duration(pollSeconds) * time.Second,
	}
}

// Start launches all market watchers and the resource sampler, then blocks
// until the context is canceled.
func (a *App) Start(ctx context.Context) {
	for _, tm := range a.Markets {
		w, err := a.newMarketWatcher(ctx, tm)
		if err != nil {
			a.Logger.Fatal("Unable to start market watcher",
				zap.Uint64("chainID", tm.ChainID),
				zap.String("address", tm.Address),
				zap.Error(err))
		}
		go w.Run(ctx)
	}

	if err := a.startSampler(ctx); err != nil {
		a.Logger.Fatal("Unable to start resource sampler", zap.Error(err))
	}
	a.Cron.Start()

	<-ctx.Done()
	a.Stop()
}

// Stop shuts the sampler and chain connections down.
func (a *App) Stop() {
	cronCtx := a.Cron.Stop()
	<-cronCtx.Done()
	a.Chains.Close()
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}

// marketStore returns the store for one chain, connecting lazily.
func (a *App) marketStore(ctx context.Context, chainID uint64) (market.Store, error) {
	key := fmt.Sprintf("%d", chainID)
	if store, ok := a.Stores.Load(key); ok {
		return store, nil
	}

	db, err := market.New(ctx, a.Logger, chainID, postgres.GetPoolConfigForComponent("watcher"))
	if err != nil {
		return nil, err
	}

	a.Stores.Store(key, db)
	return db, nil
}

func (a *App) applier(store market.Store) *projection.Applier {
	var notifier projection.Notifier
	if a.NotifyClient != nil {
		notifier = a.NotifyClient
	}
	return projection.NewApplier(store, notifier, a.Logger)
}

// parseMarkets parses "1:0xabc...,8453:0xdef..." into tracked markets.
func parseMarkets(raw string) ([]TrackedMarket, error) {
	if raw == "" {
		return nil, nil
	}

	var out []TrackedMarket
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		chainStr, address, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("invalid market entry %q, want <chainId>:<address>", part)
		}
		chainID, err := strconv.ParseUint(chainStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id in %q: %w", part, err)
		}
		out = append(out, TrackedMarket{
			ChainID: chainID,
			Address: strings.ToLower(address),
		})
	}
	return out, nil
}
