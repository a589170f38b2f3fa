package activity

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/gridline-markets/gridx/app/backfill/types"
	"github.com/gridline-markets/gridx/pkg/chain"
	adminstore "github.com/gridline-markets/gridx/pkg/db/admin"
	"github.com/gridline-markets/gridx/pkg/db/market"
	"github.com/gridline-markets/gridx/pkg/events"
	"github.com/gridline-markets/gridx/pkg/projection"
)

// ResolveRange applies the range defaults: start 0 means the market's deploy
// block, end 0 means the current chain head.
func (ac *Context) ResolveRange(ctx context.Context, in types.ActivityResolveRangeInput) (types.ActivityResolveRangeOutput, error) {
	out := types.ActivityResolveRangeOutput{StartBlock: in.StartBlock, EndBlock: in.EndBlock}

	if out.StartBlock == 0 {
		store, err := ac.MarketStore(ctx, in.ChainID)
		if err != nil {
			return out, err
		}
		m, err := store.GetMarket(ctx, in.Address)
		if err != nil {
			return out, fmt.Errorf("resolve start block: %w", err)
		}
		out.StartBlock = m.DeployBlock
	}

	if out.EndBlock == 0 {
		client, ok := ac.Chains.Get(in.ChainID)
		if !ok {
			return out, fmt.Errorf("chain %d not configured", in.ChainID)
		}
		head, err := client.HeadBlock(ctx)
		if err != nil {
			return out, fmt.Errorf("resolve end block: %w", err)
		}
		out.EndBlock = head
	}

	if out.EndBlock < out.StartBlock {
		return out, fmt.Errorf("end block %d is before start block %d", out.EndBlock, out.StartBlock)
	}
	return out, nil
}

// blockData is one prefetched block with its logs.
type blockData struct {
	block *chain.Block
	logs  []ethtypes.Log
	err   error
}

// ProcessBlockBatch replays blocks [StartBlock, EndBlock] for one market.
// Header and log fetches run in parallel ahead of the loop; application is
// strictly ascending because position totals are previous ± delta. A block
// that fails is recorded and skipped, not fatal for the batch.
func (ac *Context) ProcessBlockBatch(ctx context.Context, in types.ActivityProcessBatchInput) (types.ActivityProcessBatchOutput, error) {
	logger := activity.GetLogger(ctx)
	var out types.ActivityProcessBatchOutput

	client, ok := ac.Chains.Get(in.ChainID)
	if !ok {
		return out, fmt.Errorf("chain %d not configured", in.ChainID)
	}
	store, err := ac.MarketStore(ctx, in.ChainID)
	if err != nil {
		return out, err
	}
	applier := ac.Applier(store)
	aggregator := projection.NewIndexPriceAggregator(store, ac.Logger)

	total := int(in.EndBlock - in.StartBlock + 1)
	if total <= 0 {
		return out, nil
	}

	// Prefetch in parallel, apply in order.
	fetched := make([]blockData, total)
	var wg sync.WaitGroup
	pool := ac.prefetchPool()
	for i := 0; i < total; i++ {
		i := i
		number := in.StartBlock + uint64(i)
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			blk, err := client.GetBlock(ctx, &number)
			if err != nil {
				fetched[i] = blockData{err: err}
				return
			}
			logs, err := client.GetLogs(ctx, in.Address, number, number)
			fetched[i] = blockData{block: blk, logs: logs, err: err}
		})
	}
	wg.Wait()

	for i := 0; i < total; i++ {
		number := in.StartBlock + uint64(i)
		data := fetched[i]
		if data.err != nil {
			logger.Warn("Block fetch failed",
				zap.Uint64("block", number),
				zap.Error(data.err))
			out.FailedBlocks = append(out.FailedBlocks, number)
			continue
		}

		if err := ac.processBlock(ctx, store, applier, aggregator, in, data, &out); err != nil {
			logger.Warn("Block processing failed",
				zap.Uint64("block", number),
				zap.Error(err))
			out.FailedBlocks = append(out.FailedBlocks, number)
			continue
		}
		out.Processed++
	}

	sort.Slice(out.FailedBlocks, func(i, j int) bool { return out.FailedBlocks[i] < out.FailedBlocks[j] })
	return out, nil
}

func (ac *Context) processBlock(ctx context.Context, store market.Store, applier *projection.Applier, aggregator *projection.IndexPriceAggregator, in types.ActivityProcessBatchInput, data blockData, out *types.ActivityProcessBatchOutput) error {
	blk := data.block

	feePaid := new(big.Int)
	if blk.BaseFee != nil {
		feePaid.Mul(blk.BaseFee, new(big.Int).SetUint64(blk.GasUsed))
	}
	if err := store.UpsertResourcePrice(ctx, &market.ResourcePrice{
		ChainID:     in.ChainID,
		Address:     in.Address,
		BlockNumber: blk.Number,
		FeePaid:     feePaid.String(),
		Used:        new(big.Int).SetUint64(blk.GasUsed).String(),
		Timestamp:   blk.Time.Unix(),
	}); err != nil {
		return fmt.Errorf("resource price: %w", err)
	}
	if err := aggregator.Recompute(ctx, in.Address, blk.Time.Unix()); err != nil {
		return fmt.Errorf("index price: %w", err)
	}

	for _, lg := range data.logs {
		ev, err := events.DecodeLog(in.ChainID, lg, blk.Time)
		if err != nil {
			// Unknown topics are skipped, the stream continues.
			ac.Logger.Warn("Log decode failed",
				zap.Uint64("block", blk.Number),
				zap.Uint("log_index", lg.Index),
				zap.Error(err))
			continue
		}

		applied, err := applier.Apply(ctx, ev)
		if err != nil {
			return fmt.Errorf("apply %s at %d/%d: %w", ev.Name, ev.BlockNumber, ev.LogIndex, err)
		}
		if applied {
			out.Applied++
		} else {
			out.Duplicates++
		}
	}
	return nil
}

// RecordJob persists job progress in the admin database.
func (ac *Context) RecordJob(ctx context.Context, in types.ActivityRecordJobInput) error {
	return ac.AdminDB.UpdateJobProgress(ctx, in.JobID,
		adminstore.JobStatus(in.Status), in.Processed, in.FailedBlocks, in.Error)
}
