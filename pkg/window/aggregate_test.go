package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridline-markets/gridx/pkg/db/market"
)

func testSpan(t *testing.T, w Window) Span {
	t.Helper()
	span, err := w.SpanAt(time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return span
}

func price(ts time.Time, p string) *market.MarketPrice {
	return &market.MarketPrice{PeriodID: 1, Price: p, Timestamp: ts}
}

func TestCandlesOHLC(t *testing.T) {
	span := testSpan(t, Hour)

	b0 := span.Start
	prices := []*market.MarketPrice{
		price(b0.Add(5*time.Second), "100"),
		price(b0.Add(20*time.Second), "180"),
		price(b0.Add(40*time.Second), "90"),
		price(b0.Add(50*time.Second), "120"),
		price(b0.Add(2*time.Minute+10*time.Second), "200"),
	}

	candles := Candles(span, prices)
	require.Len(t, candles, span.Count)

	first := candles[0]
	assert.Equal(t, "100", first.Open)
	assert.Equal(t, "180", first.High)
	assert.Equal(t, "90", first.Low)
	assert.Equal(t, "120", first.Close)
	assert.Equal(t, span.Start, first.Start)
	assert.Equal(t, span.Start.Add(time.Minute), first.End)

	// Single sample: all four fields collapse onto it.
	third := candles[2]
	assert.Equal(t, "200", third.Open)
	assert.Equal(t, "200", third.Close)
	assert.Equal(t, "200", third.High)
	assert.Equal(t, "200", third.Low)

	// No samples: an empty candle still occupies the axis.
	assert.Equal(t, "", candles[1].Open)
	assert.Equal(t, "", candles[1].Close)
}

func TestCandlesAlwaysFullAxis(t *testing.T) {
	for _, w := range []Window{Hour, Day, Week, Month, Year} {
		span := testSpan(t, w)
		candles := Candles(span, nil)
		assert.Len(t, candles, span.Count, "window %s", w)
	}
}

func tx(ts time.Time, txType market.TxType, baseDelta string, positionID uint64) *market.Transaction {
	return &market.Transaction{
		PeriodID:       1,
		PositionID:     positionID,
		Type:           txType,
		BaseTokenDelta: baseDelta,
		Timestamp:      ts,
	}
}

func TestVolumeAbsoluteSums(t *testing.T) {
	span := testSpan(t, Hour)
	b0 := span.Start

	buckets := Volume(span, []*market.Transaction{
		tx(b0.Add(10*time.Second), market.TxLong, "1000", 1),
		tx(b0.Add(20*time.Second), market.TxShort, "-600", 1),
		tx(b0.Add(90*time.Second), market.TxLong, "250", 2),
	})
	require.Len(t, buckets, span.Count)

	assert.Equal(t, "1600", buckets[0].Volume)
	assert.Equal(t, "250", buckets[1].Volume)
	assert.Equal(t, "0", buckets[2].Volume)
}

func TestIndexSeriesFiltersToSpan(t *testing.T) {
	span := testSpan(t, Hour)

	inside := span.Start.Add(10 * time.Minute).Unix()
	before := span.Start.Add(-time.Minute).Unix()
	after := span.End.Add(time.Minute).Unix()

	points := IndexSeries(span, []*market.IndexPrice{
		{PeriodID: 1, Timestamp: before, Price: "5"},
		{PeriodID: 1, Timestamp: inside, Price: "13"},
		{PeriodID: 1, Timestamp: after, Price: "99"},
	})

	require.Len(t, points, 1)
	assert.Equal(t, inside, points[0].Timestamp)
	assert.Equal(t, "13", points[0].Price)
}

func TestLeaderboard(t *testing.T) {
	span := testSpan(t, Hour)
	b0 := span.Start

	owners := map[uint64]string{1: "0xalice", 2: "0xbob", 3: "0xcara"}
	ownerOf := func(id uint64) string { return owners[id] }

	rows := Leaderboard([]*market.Transaction{
		tx(b0.Add(time.Minute), market.TxLong, "1000", 1),
		tx(b0.Add(2*time.Minute), market.TxShort, "-400", 1),
		tx(b0.Add(3*time.Minute), market.TxLong, "1400", 2),
		tx(b0.Add(4*time.Minute), market.TxLong, "50", 3),
		// Liquidity entries never count toward traded volume.
		tx(b0.Add(5*time.Minute), market.TxAddLiquidity, "99999", 3),
		tx(b0.Add(6*time.Minute), market.TxSettle, "-99999", 3),
	}, ownerOf)

	require.Len(t, rows, 3)

	// Alice and Bob tie at 1400: ties break by owner ascending.
	assert.Equal(t, "0xalice", rows[0].Owner)
	assert.Equal(t, "1400", rows[0].Volume)
	assert.Equal(t, 2, rows[0].Trades)
	assert.Equal(t, "0xbob", rows[1].Owner)
	assert.Equal(t, "1400", rows[1].Volume)
	assert.Equal(t, 1, rows[1].Trades)
	assert.Equal(t, "0xcara", rows[2].Owner)
	assert.Equal(t, "50", rows[2].Volume)
}

func TestLeaderboardSkipsUnknownOwners(t *testing.T) {
	span := testSpan(t, Hour)
	rows := Leaderboard([]*market.Transaction{
		tx(span.Start.Add(time.Minute), market.TxLong, "1000", 77),
	}, func(uint64) string { return "" })
	assert.Empty(t, rows)
}
