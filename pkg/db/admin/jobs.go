package admin

import (
	"context"
	"errors"
	"time"

	"github.com/gridline-markets/gridx/pkg/db/postgres"
)

// ErrJobNotFound is returned when a job id has no record.
var ErrJobNotFound = errors.New("backfill job not found")

// JobStatus is the lifecycle of one backfill job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// BackfillJob is the pollable record behind one reindex trigger. FailedBlocks
// lists block numbers whose processing failed; the operator re-triggers a
// narrower backfill over those.
type BackfillJob struct {
	ID           string    `json:"id"`
	ChainID      uint64    `json:"chain_id"`
	Address      string    `json:"address"`
	StartBlock   uint64    `json:"start_block"`
	EndBlock     uint64    `json:"end_block"`
	Status       JobStatus `json:"status"`
	Processed    uint64    `json:"processed"`
	FailedBlocks []uint64  `json:"failed_blocks"`
	RequestedBy  string    `json:"requested_by"`
	Error        string    `json:"error"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (db *DB) initBackfillJobs(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS backfill_jobs (
			id UUID PRIMARY KEY,
			chain_id BIGINT NOT NULL,
			address TEXT NOT NULL,
			start_block BIGINT NOT NULL,
			end_block BIGINT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			processed BIGINT NOT NULL DEFAULT 0,
			failed_blocks BIGINT[] NOT NULL DEFAULT '{}',
			requested_by TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`
	return db.Exec(ctx, query)
}

// CreateJob inserts a new pending job.
func (db *DB) CreateJob(ctx context.Context, job *BackfillJob) error {
	query := `
		INSERT INTO backfill_jobs (id, chain_id, address, start_block, end_block, status, requested_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	return db.Exec(ctx, query,
		job.ID, job.ChainID, job.Address, job.StartBlock, job.EndBlock, string(JobPending), job.RequestedBy)
}

// UpdateJobProgress moves a job to status with its current counters. Failed
// blocks accumulate across updates.
func (db *DB) UpdateJobProgress(ctx context.Context, id string, status JobStatus, processed uint64, failedBlocks []uint64, jobErr string) error {
	if failedBlocks == nil {
		failedBlocks = []uint64{}
	}
	query := `
		UPDATE backfill_jobs
		SET status = $2,
		    processed = $3,
		    failed_blocks = $4,
		    error = $5,
		    updated_at = NOW()
		WHERE id = $1
	`
	return db.Exec(ctx, query, id, string(status), processed, failedBlocks, jobErr)
}

// GetJob fetches one job by id.
func (db *DB) GetJob(ctx context.Context, id string) (*BackfillJob, error) {
	query := `
		SELECT id, chain_id, address, start_block, end_block, status,
		       processed, failed_blocks, requested_by, error, created_at, updated_at
		FROM backfill_jobs
		WHERE id = $1
	`
	var j BackfillJob
	var status string
	err := db.QueryRow(ctx, query, id).Scan(
		&j.ID, &j.ChainID, &j.Address, &j.StartBlock, &j.EndBlock, &status,
		&j.Processed, &j.FailedBlocks, &j.RequestedBy, &j.Error, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	j.Status = JobStatus(status)
	return &j, nil
}

// ListJobs returns jobs for one market, newest first.
func (db *DB) ListJobs(ctx context.Context, chainID uint64, address string, limit int) ([]*BackfillJob, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `
		SELECT id, chain_id, address, start_block, end_block, status,
		       processed, failed_blocks, requested_by, error, created_at, updated_at
		FROM backfill_jobs
		WHERE chain_id = $1 AND address = $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := db.Query(ctx, query, chainID, address, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*BackfillJob
	for rows.Next() {
		var j BackfillJob
		var status string
		if err := rows.Scan(
			&j.ID, &j.ChainID, &j.Address, &j.StartBlock, &j.EndBlock, &status,
			&j.Processed, &j.FailedBlocks, &j.RequestedBy, &j.Error, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		j.Status = JobStatus(status)
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}
