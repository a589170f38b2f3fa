package controller

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// HandleMarkets lists the markets tracked on one chain.
// Endpoint: GET /chains/{chain}/markets
func (c *Controller) HandleMarkets(w http.ResponseWriter, r *http.Request) {
	chainID, ok := parseChainID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid chain id")
		return
	}

	ctx := context.Background()

	store, ok := c.App.LoadMarketStore(ctx, chainID)
	if !ok {
		writeError(w, http.StatusNotFound, "chain not tracked")
		return
	}

	markets, err := store.ListMarkets(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": markets,
	})
}

// HandlePositions lists positions of a market with an optional LP filter.
// Endpoint: GET /chains/{chain}/markets/{address}/positions?lp=<true|false>
func (c *Controller) HandlePositions(w http.ResponseWriter, r *http.Request) {
	chainID, ok := parseChainID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid chain id")
		return
	}
	address := mux.Vars(r)["address"]

	var isLP *bool
	if v := r.URL.Query().Get("lp"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid lp value")
			return
		}
		isLP = &b
	}

	ctx := context.Background()

	store, ok := c.App.LoadMarketStore(ctx, chainID)
	if !ok {
		writeError(w, http.StatusNotFound, "chain not tracked")
		return
	}

	positions, err := store.ListPositions(ctx, address, isLP)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": positions,
	})
}

// HandleTransactions lists ledger entries with optional period/position
// filters.
// Endpoint: GET /chains/{chain}/markets/{address}/transactions?period=<id>&position=<id>
func (c *Controller) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	chainID, ok := parseChainID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid chain id")
		return
	}
	address := mux.Vars(r)["address"]

	var periodID, positionID *uint64
	if v := r.URL.Query().Get("period"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid period value")
			return
		}
		periodID = &id
	}
	if v := r.URL.Query().Get("position"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid position value")
			return
		}
		positionID = &id
	}

	ctx := context.Background()

	store, ok := c.App.LoadMarketStore(ctx, chainID)
	if !ok {
		writeError(w, http.StatusNotFound, "chain not tracked")
		return
	}

	txs, err := store.ListTransactions(ctx, address, periodID, positionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": txs,
	})
}

// HandleMissingBlocks diffs the expected block range against persisted
// resource price rows so operators can re-trigger narrow backfills.
// Endpoint: GET /chains/{chain}/markets/{address}/missing-blocks?from=<n>&to=<n>
// from defaults to the market's deploy block, to defaults to the latest
// event block.
func (c *Controller) HandleMissingBlocks(w http.ResponseWriter, r *http.Request) {
	chainID, ok := parseChainID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid chain id")
		return
	}
	address := mux.Vars(r)["address"]

	ctx := context.Background()

	store, ok := c.App.LoadMarketStore(ctx, chainID)
	if !ok {
		writeError(w, http.StatusNotFound, "chain not tracked")
		return
	}

	var from, to uint64
	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = strconv.ParseUint(v, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "invalid from value")
			return
		}
	} else {
		m, err := store.GetMarket(ctx, address)
		if err != nil {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		from = m.DeployBlock
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = strconv.ParseUint(v, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "invalid to value")
			return
		}
	} else {
		if to, err = store.LatestEventBlock(ctx, address); err != nil {
			writeError(w, http.StatusInternalServerError, "query failed")
			return
		}
	}
	if to < from {
		writeError(w, http.StatusBadRequest, "to is before from")
		return
	}

	present, err := store.ResourcePriceBlocks(ctx, address, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	have := make(map[uint64]struct{}, len(present))
	for _, b := range present {
		have[b] = struct{}{}
	}
	missing := []uint64{}
	for b := from; b <= to; b++ {
		if _, ok := have[b]; !ok {
			missing = append(missing, b)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"from":                  from,
		"to":                    to,
		"missing_block_numbers": missing,
	})
}
