package watcher

import (
	"context"
	"fmt"
	"time"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/gridline-markets/gridx/pkg/chain"
	"github.com/gridline-markets/gridx/pkg/db/market"
	"github.com/gridline-markets/gridx/pkg/events"
	"github.com/gridline-markets/gridx/pkg/projection"
)

// marketWatcher tails one market's log stream. Logs arrive in
// (blockNumber, logIndex) order from the feed and are applied one at a time;
// ordering across markets is independent.
type marketWatcher struct {
	chainID      uint64
	address      string
	client       *chain.Client
	store        market.Store
	applier      *projection.Applier
	logger       *zap.Logger
	pollInterval time.Duration

	// block time cache for the current block
	lastBlockNumber uint64
	lastBlockTime   time.Time
}

func (a *App) newMarketWatcher(ctx context.Context, tm TrackedMarket) (*marketWatcher, error) {
	client, ok := a.Chains.Get(tm.ChainID)
	if !ok {
		return nil, fmt.Errorf("chain %d not configured", tm.ChainID)
	}
	store, err := a.marketStore(ctx, tm.ChainID)
	if err != nil {
		return nil, err
	}

	w := &marketWatcher{
		chainID:      tm.ChainID,
		address:      tm.Address,
		client:       client,
		store:        store,
		applier:      a.applier(store),
		logger: a.Logger.With(
			zap.Uint64("chainID", tm.ChainID),
			zap.String("market", tm.Address)),
		pollInterval: a.pollInterval,
	}

	if err := w.hydrate(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// hydrate ensures the market row exists before any event lands, reading the
// contract's parameters directly when its MarketInitialized event predates
// the tracked range.
func (w *marketWatcher) hydrate(ctx context.Context) error {
	_, err := w.store.GetMarket(ctx, w.address)
	if err == nil {
		return nil
	}
	if !market.IsNotFound(err) {
		return err
	}

	w.logger.Info("Market not yet stored, hydrating from contract")

	cfg, err := w.client.ReadMarketConfig(ctx, w.address)
	if err != nil {
		return err
	}

	return w.store.UpsertMarket(ctx, &market.Market{
		ChainID:          w.chainID,
		Address:          w.address,
		Owner:            cfg.Owner,
		CollateralAsset:  cfg.CollateralAsset,
		DeployBlock:      cfg.DeployBlock,
		FeeRate:          cfg.FeeRate,
		BondAmount:       cfg.BondAmount,
		BondCurrency:     cfg.BondCurrency,
		MinPriceTick:     cfg.MinPriceTick,
		MaxPriceTick:     cfg.MaxPriceTick,
		PriceOracle:      cfg.PriceOracle,
		SettlementOracle: cfg.SettlementOracle,
	})
}

// Run consumes the log feed until the context is canceled. The feed channel
// closes on cancellation; a closed feed before that is a stream failure and
// the watcher resubscribes.
func (w *marketWatcher) Run(ctx context.Context) {
	for {
		logsCh, err := w.client.WatchLogs(ctx, w.address, w.pollInterval)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("Log subscription failed, retrying", zap.Error(err))
			select {
			case <-time.After(w.pollInterval):
				continue
			case <-ctx.Done():
				return
			}
		}

		w.logger.Info("Watching market logs")

		for lg := range logsCh {
			w.handleLog(ctx, lg)
		}

		if ctx.Err() != nil {
			return
		}
		w.logger.Warn("Log feed closed, resubscribing")
	}
}

func (w *marketWatcher) handleLog(ctx context.Context, lg ethtypes.Log) {
	blockTime, err := w.blockTime(ctx, lg.BlockNumber)
	if err != nil {
		w.logger.Error("Failed to fetch block time",
			zap.Uint64("block", lg.BlockNumber),
			zap.Error(err))
		return
	}

	ev, err := events.DecodeLog(w.chainID, lg, blockTime)
	if err != nil {
		// Unknown or malformed logs are skipped, the stream continues.
		w.logger.Warn("Log decode failed",
			zap.Uint64("block", lg.BlockNumber),
			zap.Uint("log_index", lg.Index),
			zap.Error(err))
		return
	}

	applied, err := w.applier.Apply(ctx, ev)
	if err != nil {
		// Fatal for this event; it stays unapplied for a future reindex.
		w.logger.Error("Event apply failed",
			zap.String("event", ev.Name),
			zap.Uint64("block", ev.BlockNumber),
			zap.Uint32("log_index", ev.LogIndex),
			zap.Error(err))
		return
	}

	if applied {
		w.logger.Debug("Applied event",
			zap.String("event", ev.Name),
			zap.Uint64("block", ev.BlockNumber),
			zap.Uint32("log_index", ev.LogIndex))
	}
}

func (w *marketWatcher) blockTime(ctx context.Context, number uint64) (time.Time, error) {
	if number == w.lastBlockNumber && !w.lastBlockTime.IsZero() {
		return w.lastBlockTime, nil
	}

	blk, err := w.client.GetBlock(ctx, &number)
	if err != nil {
		return time.Time{}, err
	}

	w.lastBlockNumber = number
	w.lastBlockTime = blk.Time
	return blk.Time, nil
}
