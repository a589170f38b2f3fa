package controller

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.temporal.io/sdk/client"
	sdktemporal "go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	backfilltypes "github.com/gridline-markets/gridx/app/backfill/types"
	adminstore "github.com/gridline-markets/gridx/pkg/db/admin"
)

// HandleReindex creates a backfill job and starts a workflow for it. Start and
// end blocks of 0 mean the market deploy block and the current chain head.
func (c *Controller) HandleReindex(w http.ResponseWriter, r *http.Request) {
	chainID, ok := parseChainID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid chain id")
		return
	}
	address := mux.Vars(r)["address"]
	if address == "" {
		writeError(w, http.StatusBadRequest, "missing market address")
		return
	}

	var req struct {
		StartBlock uint64 `json:"start_block"`
		EndBlock   uint64 `json:"end_block"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}
	if req.EndBlock != 0 && req.EndBlock < req.StartBlock {
		writeError(w, http.StatusBadRequest, "invalid range")
		return
	}

	jobID := uuid.NewString()
	user := c.currentUser(r)

	job := &adminstore.BackfillJob{
		ID:          jobID,
		ChainID:     chainID,
		Address:     address,
		StartBlock:  req.StartBlock,
		EndBlock:    req.EndBlock,
		RequestedBy: user,
	}
	if err := c.App.AdminDB.CreateJob(r.Context(), job); err != nil {
		c.App.Logger.Error("failed to create backfill job",
			zap.Uint64("chain_id", chainID),
			zap.String("address", address),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	options := client.StartWorkflowOptions{
		ID:        c.App.TemporalClient.GetBackfillWorkflowID(chainID, address, jobID),
		TaskQueue: c.App.TemporalClient.GetBackfillQueue(chainID),
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 1.5,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	}

	input := &backfilltypes.WorkflowBackfillInput{
		JobID:       jobID,
		ChainID:     chainID,
		Address:     address,
		StartBlock:  req.StartBlock,
		EndBlock:    req.EndBlock,
		RequestedBy: user,
	}

	// Reference by name to keep the worker packages out of the admin binary.
	run, err := c.App.TemporalClient.TClient.ExecuteWorkflow(r.Context(), options, "BackfillRangeWorkflow", input)
	if err != nil {
		c.App.Logger.Error("failed to start backfill workflow",
			zap.Uint64("chain_id", chainID),
			zap.String("address", address),
			zap.String("job_id", jobID),
			zap.Error(err))
		_ = c.App.AdminDB.UpdateJobProgress(r.Context(), jobID, adminstore.JobFailed, 0, nil, "failed to start workflow")
		writeError(w, http.StatusInternalServerError, "failed to schedule backfill")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id":      jobID,
		"workflow_id": run.GetID(),
		"run_id":      run.GetRunID(),
	})
}

// HandleJob returns the current state of one backfill job.
func (c *Controller) HandleJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, err := c.App.AdminDB.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, adminstore.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// HandleJobs lists recent backfill jobs for one market, newest first.
func (c *Controller) HandleJobs(w http.ResponseWriter, r *http.Request) {
	chainID, ok := parseChainID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid chain id")
		return
	}
	address := mux.Vars(r)["address"]

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	jobs, err := c.App.AdminDB.ListJobs(r.Context(), chainID, address, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if jobs == nil {
		jobs = []*adminstore.BackfillJob{}
	}
	writeJSON(w, http.StatusOK, jobs)
}
