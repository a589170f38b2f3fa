package controller

import (
	"net/http"
	"strconv"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"

	"github.com/gridline-markets/gridx/app/api/types"
)

type Controller struct {
	App *types.App
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App: app,
	}
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods("GET")

	r.HandleFunc("/chains/{chain}/markets", c.HandleMarkets).Methods("GET")
	r.HandleFunc("/chains/{chain}/markets/{address}/candles", c.HandleCandles).Methods("GET")
	r.HandleFunc("/chains/{chain}/markets/{address}/index-prices", c.HandleIndexPrices).Methods("GET")
	r.HandleFunc("/chains/{chain}/markets/{address}/volume", c.HandleVolume).Methods("GET")
	r.HandleFunc("/chains/{chain}/markets/{address}/leaderboard", c.HandleLeaderboard).Methods("GET")
	r.HandleFunc("/chains/{chain}/markets/{address}/positions", c.HandlePositions).Methods("GET")
	r.HandleFunc("/chains/{chain}/markets/{address}/transactions", c.HandleTransactions).Methods("GET")
	r.HandleFunc("/chains/{chain}/markets/{address}/missing-blocks", c.HandleMissingBlocks).Methods("GET")

	// WebSocket endpoint for real-time market events
	r.HandleFunc("/ws", c.HandleWebSocket).Methods("GET")

	return r, nil
}

// WithCORS is a middleware that adds CORS headers to the response.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseChainID reads the {chain} path var.
func parseChainID(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["chain"], 10, 64)
	return id, err == nil
}

// parsePeriodID reads the required period query parameter.
func parsePeriodID(r *http.Request) (uint64, bool) {
	v := r.URL.Query().Get("period")
	if v == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(v, 10, 64)
	return id, err == nil
}
