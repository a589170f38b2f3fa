package projection

import (
	"context"
	"fmt"
	"math/big"

	"github.com/gridline-markets/gridx/pkg/db/market"
	"go.uber.org/zap"
)

// IndexPriceAggregator derives the rolling fee-per-unit average for active
// periods from raw resource price samples. For a sample at time t within a
// period starting at s, the index price is
//
//	sum(feePaid over [s, t]) / sum(used over [s, t])
//
// with truncating integer division. Samples with used = 0 contribute nothing
// to either sum, and no index price is recorded while the denominator is
// zero.
type IndexPriceAggregator struct {
	store  market.Store
	logger *zap.Logger
}

func NewIndexPriceAggregator(store market.Store, logger *zap.Logger) *IndexPriceAggregator {
	return &IndexPriceAggregator{store: store, logger: logger}
}

// Recompute upserts the index price at sampleTime for every period of the
// market that covers sampleTime. Re-running over the same sample is
// idempotent: the (period, timestamp) upsert overwrites with the same value.
func (a *IndexPriceAggregator) Recompute(ctx context.Context, address string, sampleTime int64) error {
	periods, err := a.store.ListPeriods(ctx, address)
	if err != nil {
		return err
	}

	for _, p := range periods {
		if sampleTime < p.StartTime || sampleTime > p.EndTime {
			continue
		}
		if err := a.recomputePeriod(ctx, address, p, sampleTime); err != nil {
			return fmt.Errorf("period %d: %w", p.PeriodID, err)
		}
	}
	return nil
}

func (a *IndexPriceAggregator) recomputePeriod(ctx context.Context, address string, p *market.Period, sampleTime int64) error {
	samples, err := a.store.ListResourcePricesInRange(ctx, address, p.StartTime, sampleTime)
	if err != nil {
		return err
	}

	totalFee := new(big.Int)
	totalUsed := new(big.Int)
	for _, s := range samples {
		used, err := parseBig(s.Used)
		if err != nil {
			return fmt.Errorf("block %d used: %w", s.BlockNumber, err)
		}
		if used.Sign() == 0 {
			continue
		}
		fee, err := parseBig(s.FeePaid)
		if err != nil {
			return fmt.Errorf("block %d fee: %w", s.BlockNumber, err)
		}
		totalFee.Add(totalFee, fee)
		totalUsed.Add(totalUsed, used)
	}

	if totalUsed.Sign() == 0 {
		a.logger.Debug("No resource usage yet, skipping index price",
			zap.String("address", address),
			zap.Uint64("period_id", p.PeriodID),
			zap.Int64("ts", sampleTime))
		return nil
	}

	price := new(big.Int).Quo(totalFee, totalUsed)

	return a.store.UpsertIndexPrice(ctx, &market.IndexPrice{
		ChainID:   p.ChainID,
		Address:   address,
		PeriodID:  p.PeriodID,
		Timestamp: sampleTime,
		Price:     price.String(),
	})
}
