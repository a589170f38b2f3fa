package projection

import (
	"context"

	"github.com/gridline-markets/gridx/pkg/db/market"
	"github.com/gridline-markets/gridx/pkg/events"
	"go.uber.org/zap"
)

// Notifier publishes applied events to realtime consumers. Publish failures
// never affect the apply outcome.
type Notifier interface {
	Publish(ctx context.Context, ev *events.RawEvent) error
}

// Applier is the single write path for events from both the live watcher and
// the backfill coordinator. Each event is applied in one database
// transaction: the Event row insert and every derived mutation commit
// together or not at all.
type Applier struct {
	store    market.Store
	reducer  *Reducer
	notifier Notifier
	logger   *zap.Logger
}

// NewApplier returns an applier over the store. notifier may be nil.
func NewApplier(store market.Store, notifier Notifier, logger *zap.Logger) *Applier {
	return &Applier{
		store:    store,
		reducer:  NewReducer(store, logger),
		notifier: notifier,
		logger:   logger,
	}
}

// Apply folds one event into the derived state. The Event insert doubles as
// the idempotency gate: when (address, blockNumber, logIndex) is already
// present the whole apply is a no-op and applied is false. Both ingestion
// paths can therefore race over the same block range safely.
func (a *Applier) Apply(ctx context.Context, ev *events.RawEvent) (applied bool, err error) {
	err = a.store.InTx(ctx, func(ctx context.Context) error {
		inserted, err := a.store.InsertEvent(ctx, &market.Event{
			ChainID:     ev.ChainID,
			Address:     ev.Address,
			BlockNumber: ev.BlockNumber,
			LogIndex:    ev.LogIndex,
			Name:        ev.Name,
			Args:        events.ArgsJSON(ev.Payload),
			TxHash:      ev.TxHash,
			Topics:      ev.Topics,
			Timestamp:   ev.Timestamp,
		})
		if err != nil {
			return err
		}
		if !inserted {
			a.logger.Debug("Duplicate event skipped",
				zap.String("event", ev.Name),
				zap.Uint64("block", ev.BlockNumber),
				zap.Uint32("log_index", ev.LogIndex))
			return nil
		}

		applied = true
		return a.reducer.Reduce(ctx, ev)
	})
	if err != nil {
		return false, err
	}

	if applied && a.notifier != nil {
		if nerr := a.notifier.Publish(ctx, ev); nerr != nil {
			a.logger.Warn("Event notify failed",
				zap.String("event", ev.Name),
				zap.Uint64("block", ev.BlockNumber),
				zap.Error(nerr))
		}
	}

	return applied, nil
}
