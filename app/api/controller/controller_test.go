package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gridline-markets/gridx/app/api/types"
	"github.com/gridline-markets/gridx/pkg/db/market"
	"github.com/gridline-markets/gridx/pkg/window"
)

const testAddr = "0x00000000000000000000000000000000000000aa"

// fakeMarketStore overrides only the reads the handlers under test hit.
type fakeMarketStore struct {
	market.Store
	markets          []*market.Market
	marketPrices     []*market.MarketPrice
	transactions     []*market.Transaction
	positions        []*market.Position
	indexPrices      []*market.IndexPrice
	latestEventBlock uint64
	priceBlocks      []uint64

	gotIsLP *bool
}

func (f *fakeMarketStore) ListMarkets(context.Context) ([]*market.Market, error) {
	return f.markets, nil
}

func (f *fakeMarketStore) GetMarket(_ context.Context, address string) (*market.Market, error) {
	for _, m := range f.markets {
		if m.Address == address {
			return m, nil
		}
	}
	return nil, market.ErrNotFound
}

func (f *fakeMarketStore) ListMarketPricesInWindow(_ context.Context, _ string, _ uint64, _, _ time.Time) ([]*market.MarketPrice, error) {
	return f.marketPrices, nil
}

func (f *fakeMarketStore) ListTransactionsInWindow(_ context.Context, _ string, _ uint64, _, _ time.Time) ([]*market.Transaction, error) {
	return f.transactions, nil
}

func (f *fakeMarketStore) ListTransactions(_ context.Context, _ string, _, _ *uint64) ([]*market.Transaction, error) {
	return f.transactions, nil
}

func (f *fakeMarketStore) ListPositions(_ context.Context, _ string, isLP *bool) ([]*market.Position, error) {
	f.gotIsLP = isLP
	return f.positions, nil
}

func (f *fakeMarketStore) ListIndexPricesInRange(_ context.Context, _ string, _ uint64, _, _ int64) ([]*market.IndexPrice, error) {
	return f.indexPrices, nil
}

func (f *fakeMarketStore) LatestEventBlock(context.Context, string) (uint64, error) {
	return f.latestEventBlock, nil
}

func (f *fakeMarketStore) ResourcePriceBlocks(context.Context, string, uint64, uint64) ([]uint64, error) {
	return f.priceBlocks, nil
}

func setupAPI(t *testing.T, store *fakeMarketStore) *mux.Router {
	t.Helper()
	app := &types.App{
		Logger:  zaptest.NewLogger(t),
		Markets: xsync.NewMap[string, market.Store](),
	}
	app.Markets.Store("1", store)

	router, err := NewController(app).NewRouter()
	require.NoError(t, err)
	return router
}

func doGet(router http.Handler, url string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func TestHandleMarkets(t *testing.T) {
	router := setupAPI(t, &fakeMarketStore{
		markets: []*market.Market{{ChainID: 1, Address: testAddr, Owner: "0xowner"}},
	})

	rec := doGet(router, "/chains/1/markets")
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Data []*market.Market `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Data, 1)
	assert.Equal(t, testAddr, out.Data[0].Address)
}

func TestHandleMarketsInvalidChain(t *testing.T) {
	router := setupAPI(t, &fakeMarketStore{})
	rec := doGet(router, "/chains/abc/markets")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCandles(t *testing.T) {
	now := time.Now().UTC()
	router := setupAPI(t, &fakeMarketStore{
		marketPrices: []*market.MarketPrice{
			{PeriodID: 1, Price: "100", Timestamp: now.Add(-30*time.Minute + 5*time.Second)},
			{PeriodID: 1, Price: "120", Timestamp: now.Add(-30*time.Minute + 15*time.Second)},
		},
	})

	rec := doGet(router, "/chains/1/markets/"+testAddr+"/candles?period=1&window=hour")
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Data []window.Candle `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	// The axis is always fully materialized, empty buckets included.
	require.Len(t, out.Data, 60)

	var nonEmpty int
	for _, c := range out.Data {
		if c.Open != "" {
			nonEmpty++
			assert.Equal(t, "100", c.Open)
			assert.Equal(t, "120", c.Close)
		}
	}
	assert.Equal(t, 1, nonEmpty)
}

func TestHandleCandlesRejectsUnknownWindow(t *testing.T) {
	router := setupAPI(t, &fakeMarketStore{})

	rec := doGet(router, "/chains/1/markets/"+testAddr+"/candles?period=1&window=fortnight")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid time window")

	rec = doGet(router, "/chains/1/markets/"+testAddr+"/candles?period=1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCandlesRequiresPeriod(t *testing.T) {
	router := setupAPI(t, &fakeMarketStore{})
	rec := doGet(router, "/chains/1/markets/"+testAddr+"/candles?window=hour")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleVolume(t *testing.T) {
	now := time.Now().UTC()
	router := setupAPI(t, &fakeMarketStore{
		transactions: []*market.Transaction{
			{PeriodID: 1, Type: market.TxLong, BaseTokenDelta: "1000", Timestamp: now.Add(-10 * time.Minute)},
			{PeriodID: 1, Type: market.TxShort, BaseTokenDelta: "-400", Timestamp: now.Add(-10 * time.Minute)},
		},
	})

	rec := doGet(router, "/chains/1/markets/"+testAddr+"/volume?period=1&window=hour")
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Data []window.VolumeBucket `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Data, 60)

	total := "0"
	for _, b := range out.Data {
		if b.Volume != "0" {
			total = b.Volume
		}
	}
	assert.Equal(t, "1400", total)
}

func TestHandleIndexPrices(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeMarketStore{
		indexPrices: []*market.IndexPrice{
			{PeriodID: 1, Timestamp: now.Add(-5 * time.Minute).Unix(), Price: "13"},
		},
	}
	router := setupAPI(t, store)

	rec := doGet(router, "/chains/1/markets/"+testAddr+"/index-prices?period=1&window=hour")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"13"`)

	// Empty range is a 404, not an empty 200.
	store.indexPrices = nil
	rec = doGet(router, "/chains/1/markets/"+testAddr+"/index-prices?period=1&window=hour")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleLeaderboard(t *testing.T) {
	now := time.Now().UTC()
	router := setupAPI(t, &fakeMarketStore{
		transactions: []*market.Transaction{
			{PeriodID: 1, PositionID: 7, Type: market.TxLong, BaseTokenDelta: "1000", Timestamp: now.Add(-10 * time.Minute)},
		},
		positions: []*market.Position{
			{PeriodID: 1, PositionID: 7, Owner: "0xalice"},
		},
	})

	rec := doGet(router, "/chains/1/markets/"+testAddr+"/leaderboard?period=1&window=day")
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Data []window.LeaderboardRow `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Data, 1)
	assert.Equal(t, "0xalice", out.Data[0].Owner)
	assert.Equal(t, "1000", out.Data[0].Volume)
}

func TestHandlePositionsLPFilter(t *testing.T) {
	store := &fakeMarketStore{
		positions: []*market.Position{{PeriodID: 1, PositionID: 7, IsLP: true}},
	}
	router := setupAPI(t, store)

	rec := doGet(router, "/chains/1/markets/"+testAddr+"/positions?lp=true")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, store.gotIsLP)
	assert.True(t, *store.gotIsLP)

	rec = doGet(router, "/chains/1/markets/"+testAddr+"/positions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, store.gotIsLP)

	rec = doGet(router, "/chains/1/markets/"+testAddr+"/positions?lp=maybe")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMissingBlocks(t *testing.T) {
	router := setupAPI(t, &fakeMarketStore{
		markets:          []*market.Market{{Address: testAddr, DeployBlock: 10}},
		latestEventBlock: 15,
		priceBlocks:      []uint64{10, 11, 13},
	})

	rec := doGet(router, "/chains/1/markets/"+testAddr+"/missing-blocks")
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		From    uint64   `json:"from"`
		To      uint64   `json:"to"`
		Missing []uint64 `json:"missing_block_numbers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, uint64(10), out.From)
	assert.Equal(t, uint64(15), out.To)
	assert.Equal(t, []uint64{12, 14, 15}, out.Missing)
}

func TestHandleMissingBlocksBadRange(t *testing.T) {
	router := setupAPI(t, &fakeMarketStore{})
	rec := doGet(router, "/chains/1/markets/"+testAddr+"/missing-blocks?from=20&to=10")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	router := setupAPI(t, &fakeMarketStore{})
	rec := doGet(router, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
