package watcher

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/gridline-markets/gridx/pkg/db/market"
	"github.com/gridline-markets/gridx/pkg/projection"
	"github.com/gridline-markets/gridx/pkg/utils"
)

// startSampler schedules the per-chain resource price sampler. Each tick
// samples the chain head's fee and usage for every tracked market and
// recomputes the affected index prices.
func (a *App) startSampler(ctx context.Context) error {
	spec := utils.Env("SAMPLE_CRON", "@every 30s")

	byChain := make(map[uint64][]string)
	for _, tm := range a.Markets {
		byChain[tm.ChainID] = append(byChain[tm.ChainID], tm.Address)
	}

	for chainID, addresses := range byChain {
		chainID, addresses := chainID, addresses
		if _, err := a.Cron.AddFunc(spec, func() {
			a.sampleChain(ctx, chainID, addresses)
		}); err != nil {
			return fmt.Errorf("schedule sampler for chain %d: %w", chainID, err)
		}
	}

	a.Logger.Info("Resource sampler scheduled",
		zap.String("spec", spec),
		zap.Int("chains", len(byChain)))
	return nil
}

func (a *App) sampleChain(ctx context.Context, chainID uint64, addresses []string) {
	client, ok := a.Chains.Get(chainID)
	if !ok {
		return
	}

	blk, err := client.GetBlock(ctx, nil)
	if err != nil {
		a.Logger.Warn("Head block fetch failed",
			zap.Uint64("chainID", chainID),
			zap.Error(err))
		return
	}

	store, err := a.marketStore(ctx, chainID)
	if err != nil {
		a.Logger.Warn("Market store unavailable",
			zap.Uint64("chainID", chainID),
			zap.Error(err))
		return
	}
	aggregator := projection.NewIndexPriceAggregator(store, a.Logger)

	feePaid := new(big.Int)
	if blk.BaseFee != nil {
		feePaid.Mul(blk.BaseFee, new(big.Int).SetUint64(blk.GasUsed))
	}
	used := new(big.Int).SetUint64(blk.GasUsed).String()

	for _, address := range addresses {
		if err := store.UpsertResourcePrice(ctx, &market.ResourcePrice{
			ChainID:     chainID,
			Address:     address,
			BlockNumber: blk.Number,
			FeePaid:     feePaid.String(),
			Used:        used,
			Timestamp:   blk.Time.Unix(),
		}); err != nil {
			a.Logger.Warn("Resource price upsert failed",
				zap.Uint64("chainID", chainID),
				zap.String("market", address),
				zap.Error(err))
			continue
		}

		if err := aggregator.Recompute(ctx, address, blk.Time.Unix()); err != nil {
			a.Logger.Warn("Index price recompute failed",
				zap.Uint64("chainID", chainID),
				zap.String("market", address),
				zap.Error(err))
		}
	}
}
