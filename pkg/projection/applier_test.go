package projection

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gridline-markets/gridx/pkg/events"
)

type fakeNotifier struct {
	published []*events.RawEvent
	err       error
}

func (n *fakeNotifier) Publish(_ context.Context, ev *events.RawEvent) error {
	if n.err != nil {
		return n.err
	}
	n.published = append(n.published, ev)
	return nil
}

func TestApplierIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	notifier := &fakeNotifier{}
	ap := NewApplier(store, notifier, zaptest.NewLogger(t))

	ev := rawEvent(10, 3, events.LiquidityPositionCreated{
		PeriodID:         1,
		PositionID:       7,
		Sender:           "0xlp",
		AddedAmount0:     "500",
		AddedAmount1:     "300",
		CollateralAmount: "200",
	})

	applied, err := ap.Apply(ctx, ev)
	require.NoError(t, err)
	assert.True(t, applied)

	pos, err := store.GetPosition(ctx, testMarket, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, "500", pos.BaseToken)
	require.Len(t, store.transactions, 1)
	require.Len(t, notifier.published, 1)

	// Re-applying the same (address, block, logIndex) is a benign no-op:
	// no new ledger entry, no position change, no notification.
	applied, err = ap.Apply(ctx, ev)
	require.NoError(t, err)
	assert.False(t, applied)

	assert.Equal(t, "500", pos.BaseToken)
	assert.Equal(t, "200", pos.Collateral)
	assert.Len(t, store.transactions, 1)
	assert.Len(t, store.events, 1)
	assert.Len(t, notifier.published, 1)
}

func TestApplierDistinctLogIndexes(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	ap := NewApplier(store, nil, zaptest.NewLogger(t))

	base := events.LiquidityPositionCreated{
		PeriodID:         1,
		PositionID:       7,
		Sender:           "0xlp",
		AddedAmount0:     "100",
		AddedAmount1:     "0",
		CollateralAmount: "0",
	}

	applied, err := ap.Apply(ctx, rawEvent(10, 0, base))
	require.NoError(t, err)
	assert.True(t, applied)

	// Same block, different log index is a distinct event.
	applied, err = ap.Apply(ctx, rawEvent(10, 1, events.LiquidityPositionIncreased{
		PeriodID:         1,
		PositionID:       7,
		AddedAmount0:     "50",
		AddedAmount1:     "0",
		CollateralAmount: "0",
	}))
	require.NoError(t, err)
	assert.True(t, applied)

	pos, err := store.GetPosition(ctx, testMarket, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, "150", pos.BaseToken)
	assert.Len(t, store.events, 2)
}

func TestApplierEventStoredWithArgs(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	ap := NewApplier(store, nil, zaptest.NewLogger(t))

	_, err := ap.Apply(ctx, rawEvent(10, 0, events.PeriodCreated{
		PeriodID:  1,
		StartTime: 1000,
		EndTime:   2000,
	}))
	require.NoError(t, err)

	require.Len(t, store.events, 1)
	stored := store.events[0]
	assert.Equal(t, "PeriodCreated", stored.Name)
	assert.Contains(t, stored.Args, `"PeriodID":1`)
	assert.Equal(t, uint64(10), stored.BlockNumber)
}

func TestApplierNotifyFailureDoesNotFailApply(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	notifier := &fakeNotifier{err: errors.New("redis down")}
	ap := NewApplier(store, notifier, zaptest.NewLogger(t))

	applied, err := ap.Apply(ctx, rawEvent(10, 0, events.PeriodCreated{
		PeriodID:  1,
		StartTime: 1000,
		EndTime:   2000,
	}))
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Len(t, store.events, 1)
}
