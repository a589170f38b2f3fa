package controller

import (
	"net/http"
)

func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := c.App.AdminDB.Exec(ctx, "SELECT 1"); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "errored", "error": "database connection error"})
		return
	}

	if c.App.TemporalClient != nil {
		if _, err := c.App.TemporalClient.TClient.CheckHealth(ctx, nil); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "errored", "error": "temporal connection error"})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
