package controller

import (
	"net/http"
	"strconv"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"

	"github.com/gridline-markets/gridx/app/admin/types"
	"github.com/gridline-markets/gridx/pkg/utils"
)

type Controller struct {
	App        *types.App
	AdminToken string
	JWTSecret  []byte
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App:        app,
		AdminToken: utils.Env("ADMIN_TOKEN", "devtoken"),
		JWTSecret:  []byte(utils.Env("SESSION_SECRET", "change-me-please")),
	}
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	// basically it's ok, could even be a public endpoint
	r.Handle("/api/health", http.HandlerFunc(c.HandleHealth)).Methods(http.MethodGet)

	r.HandleFunc("/api/auth/login", c.HandleAdminLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", c.HandleAdminLogout).Methods(http.MethodPost)

	r.Handle("/api/chains/{chain}/markets/{address}/reindex", c.RequireAuth(http.HandlerFunc(c.HandleReindex))).Methods(http.MethodPost)
	r.Handle("/api/chains/{chain}/markets/{address}/jobs", c.RequireAuth(http.HandlerFunc(c.HandleJobs))).Methods(http.MethodGet)
	r.Handle("/api/jobs/{id}", c.RequireAuth(http.HandlerFunc(c.HandleJob))).Methods(http.MethodGet)

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
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodOptions)

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
