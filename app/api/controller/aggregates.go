package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/gridline-markets/gridx/pkg/window"
)

// HandleCandles returns OHLC buckets over realized trade prices.
// Endpoint: GET /chains/{chain}/markets/{address}/candles?period=<id>&window=<hour|day|week|month|year>
func (c *Controller) HandleCandles(w http.ResponseWriter, r *http.Request) {
	chainID, ok := parseChainID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid chain id")
		return
	}
	address := mux.Vars(r)["address"]

	periodID, ok := parsePeriodID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid period")
		return
	}

	win, err := window.Parse(r.URL.Query().Get("window"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	span, _ := win.SpanAt(time.Now().UTC())

	ctx := context.Background()

	store, ok := c.App.LoadMarketStore(ctx, chainID)
	if !ok {
		writeError(w, http.StatusNotFound, "chain not tracked")
		return
	}

	prices, err := store.ListMarketPricesInWindow(ctx, address, periodID, span.Start, span.End)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": window.Candles(span, prices),
	})
}

// HandleVolume returns per-bucket sums of absolute base-token deltas.
// Endpoint: GET /chains/{chain}/markets/{address}/volume?period=<id>&window=<...>
func (c *Controller) HandleVolume(w http.ResponseWriter, r *http.Request) {
	chainID, ok := parseChainID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid chain id")
		return
	}
	address := mux.Vars(r)["address"]

	periodID, ok := parsePeriodID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid period")
		return
	}

	win, err := window.Parse(r.URL.Query().Get("window"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	span, _ := win.SpanAt(time.Now().UTC())

	ctx := context.Background()

	store, ok := c.App.LoadMarketStore(ctx, chainID)
	if !ok {
		writeError(w, http.StatusNotFound, "chain not tracked")
		return
	}

	txs, err := store.ListTransactionsInWindow(ctx, address, periodID, span.Start, span.End)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": window.Volume(span, txs),
	})
}

// HandleIndexPrices returns the index price series inside the window.
// Responds 404 when the period has no samples in range.
// Endpoint: GET /chains/{chain}/markets/{address}/index-prices?period=<id>&window=<...>
func (c *Controller) HandleIndexPrices(w http.ResponseWriter, r *http.Request) {
	chainID, ok := parseChainID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid chain id")
		return
	}
	address := mux.Vars(r)["address"]

	periodID, ok := parsePeriodID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid period")
		return
	}

	win, err := window.Parse(r.URL.Query().Get("window"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	span, _ := win.SpanAt(time.Now().UTC())

	ctx := context.Background()

	store, ok := c.App.LoadMarketStore(ctx, chainID)
	if !ok {
		writeError(w, http.StatusNotFound, "chain not tracked")
		return
	}

	rows, err := store.ListIndexPricesInRange(ctx, address, periodID, span.Start.Unix(), span.End.Unix())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	series := window.IndexSeries(span, rows)
	if len(series) == 0 {
		writeError(w, http.StatusNotFound, "no index prices in range")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": series,
	})
}

// HandleLeaderboard ranks position owners by traded volume in the window.
// Endpoint: GET /chains/{chain}/markets/{address}/leaderboard?period=<id>&window=<...>
func (c *Controller) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	chainID, ok := parseChainID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid chain id")
		return
	}
	address := mux.Vars(r)["address"]

	periodID, ok := parsePeriodID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid period")
		return
	}

	win, err := window.Parse(r.URL.Query().Get("window"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	span, _ := win.SpanAt(time.Now().UTC())

	ctx := context.Background()

	store, ok := c.App.LoadMarketStore(ctx, chainID)
	if !ok {
		writeError(w, http.StatusNotFound, "chain not tracked")
		return
	}

	txs, err := store.ListTransactionsInWindow(ctx, address, periodID, span.Start, span.End)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	positions, err := store.ListPositions(ctx, address, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	owners := make(map[uint64]string, len(positions))
	for _, p := range positions {
		if p.PeriodID == periodID {
			owners[p.PositionID] = p.Owner
		}
	}

	rows := window.Leaderboard(txs, func(positionID uint64) string {
		return owners[positionID]
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": rows,
	})
}
