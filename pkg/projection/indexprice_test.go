package projection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gridline-markets/gridx/pkg/db/market"
)

func seedPeriod(t *testing.T, store *fakeStore, periodID uint64, start, end int64) {
	t.Helper()
	require.NoError(t, store.UpsertPeriod(context.Background(), &market.Period{
		ChainID:   1,
		Address:   testMarket,
		PeriodID:  periodID,
		StartTime: start,
		EndTime:   end,
	}))
}

func seedSample(t *testing.T, store *fakeStore, block uint64, ts int64, fee, used string) {
	t.Helper()
	require.NoError(t, store.UpsertResourcePrice(context.Background(), &market.ResourcePrice{
		ChainID:     1,
		Address:     testMarket,
		BlockNumber: block,
		FeePaid:     fee,
		Used:        used,
		Timestamp:   ts,
	}))
}

func TestIndexPriceRollingAverage(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	agg := NewIndexPriceAggregator(store, zaptest.NewLogger(t))

	seedPeriod(t, store, 1, 0, 1000)
	seedSample(t, store, 10, 100, "100", "10")
	seedSample(t, store, 20, 200, "300", "20")

	// First sample alone: 100 / 10.
	require.NoError(t, agg.Recompute(ctx, testMarket, 100))
	rows, err := store.ListIndexPricesInRange(ctx, testMarket, 1, 0, 1000)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "10", rows[0].Price)
	assert.Equal(t, int64(100), rows[0].Timestamp)

	// Cumulative over [start, t]: (100+300) / (10+20) = 13 truncating.
	require.NoError(t, agg.Recompute(ctx, testMarket, 200))
	rows, err = store.ListIndexPricesInRange(ctx, testMarket, 1, 0, 1000)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "13", rows[1].Price)
}

func TestIndexPriceSkipsZeroUsage(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	agg := NewIndexPriceAggregator(store, zaptest.NewLogger(t))

	seedPeriod(t, store, 1, 0, 1000)
	seedSample(t, store, 10, 100, "100", "10")
	seedSample(t, store, 20, 200, "999", "0")

	// The zero-usage sample contributes to neither sum.
	require.NoError(t, agg.Recompute(ctx, testMarket, 200))
	rows, err := store.ListIndexPricesInRange(ctx, testMarket, 1, 0, 1000)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "10", rows[0].Price)
}

func TestIndexPriceNoUsageNoRow(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	agg := NewIndexPriceAggregator(store, zaptest.NewLogger(t))

	seedPeriod(t, store, 1, 0, 1000)
	seedSample(t, store, 10, 100, "0", "0")

	require.NoError(t, agg.Recompute(ctx, testMarket, 100))
	assert.Empty(t, store.indexPrices)
}

func TestIndexPricePeriodBounds(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	agg := NewIndexPriceAggregator(store, zaptest.NewLogger(t))

	seedPeriod(t, store, 1, 100, 200)
	seedPeriod(t, store, 2, 150, 400)
	seedSample(t, store, 10, 160, "60", "6")

	// The sample time lies inside both periods; each accumulates from its
	// own start.
	require.NoError(t, agg.Recompute(ctx, testMarket, 160))
	first, err := store.ListIndexPricesInRange(ctx, testMarket, 1, 0, 1000)
	require.NoError(t, err)
	require.Len(t, first, 1)
	second, err := store.ListIndexPricesInRange(ctx, testMarket, 2, 0, 1000)
	require.NoError(t, err)
	require.Len(t, second, 1)

	// A sample time past a period's end leaves that period untouched.
	require.NoError(t, agg.Recompute(ctx, testMarket, 300))
	first, err = store.ListIndexPricesInRange(ctx, testMarket, 1, 0, 1000)
	require.NoError(t, err)
	assert.Len(t, first, 1)
	second, err = store.ListIndexPricesInRange(ctx, testMarket, 2, 0, 1000)
	require.NoError(t, err)
	assert.Len(t, second, 2)
}

func TestIndexPriceRecomputeIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	agg := NewIndexPriceAggregator(store, zaptest.NewLogger(t))

	seedPeriod(t, store, 1, 0, 1000)
	seedSample(t, store, 10, 100, "100", "10")

	require.NoError(t, agg.Recompute(ctx, testMarket, 100))
	require.NoError(t, agg.Recompute(ctx, testMarket, 100))

	rows, err := store.ListIndexPricesInRange(ctx, testMarket, 1, 0, 1000)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "10", rows[0].Price)
}
