package workflow

import (
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/gridline-markets/gridx/app/backfill/activity"
	"github.com/gridline-markets/gridx/app/backfill/types"
	adminstore "github.com/gridline-markets/gridx/pkg/db/admin"
	temporalclient "github.com/gridline-markets/gridx/pkg/temporal"
)

// BackfillWorkflowName is the registered name of BackfillRangeWorkflow.
const BackfillWorkflowName = "BackfillRangeWorkflow"

const (
	// batchSize is how many blocks one ProcessBlockBatch activity covers.
	batchSize = 250
	// continueAsNewThreshold bounds history size for very large ranges.
	continueAsNewThreshold = 25000
)

// Context carries the dependencies shared by workflow definitions.
type Context struct {
	TemporalClient  *temporalclient.Client
	ActivityContext *activity.Context
}

// BackfillRangeWorkflow replays a historical block range for one market in
// ascending batches. Per-block failures accumulate instead of aborting; the
// job record always reflects them so the operator can re-trigger a narrower
// backfill.
func (wc *Context) BackfillRangeWorkflow(ctx workflow.Context, input types.WorkflowBackfillInput) (types.WorkflowBackfillOutput, error) {
	logger := workflow.GetLogger(ctx)
	startTime := workflow.Now(ctx)

	logger.Info("BackfillRangeWorkflow started",
		"job_id", input.JobID,
		"chain_id", input.ChainID,
		"address", input.Address,
		"start_block", input.StartBlock,
		"end_block", input.EndBlock,
		"processed_so_far", input.ProcessedSoFar,
	)

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 1.5,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
	}
	actCtx := workflow.WithActivityOptions(ctx, ao)

	// Resolve defaults only on the first run of the chain.
	if input.StartBlock == 0 || input.EndBlock == 0 {
		var resolved types.ActivityResolveRangeOutput
		err := workflow.ExecuteActivity(actCtx, wc.ActivityContext.ResolveRange, types.ActivityResolveRangeInput{
			ChainID:    input.ChainID,
			Address:    input.Address,
			StartBlock: input.StartBlock,
			EndBlock:   input.EndBlock,
		}).Get(actCtx, &resolved)
		if err != nil {
			wc.recordJob(actCtx, input, adminstore.JobFailed, err.Error())
			return types.WorkflowBackfillOutput{}, err
		}
		input.StartBlock = resolved.StartBlock
		input.EndBlock = resolved.EndBlock
	}

	wc.recordJob(actCtx, input, adminstore.JobRunning, "")

	processed := input.ProcessedSoFar
	failedBlocks := input.FailedBlocks
	processedThisRun := uint64(0)

	current := input.StartBlock
	for current <= input.EndBlock {
		batchEnd := current + batchSize - 1
		if batchEnd > input.EndBlock {
			batchEnd = input.EndBlock
		}

		var result types.ActivityProcessBatchOutput
		err := workflow.ExecuteActivity(actCtx, wc.ActivityContext.ProcessBlockBatch, types.ActivityProcessBatchInput{
			ChainID:    input.ChainID,
			Address:    input.Address,
			StartBlock: current,
			EndBlock:   batchEnd,
		}).Get(actCtx, &result)
		if err != nil {
			// Whole batch failed after retries; record every block in it.
			logger.Error("Batch failed",
				"start", current,
				"end", batchEnd,
				"error", err)
			for b := current; b <= batchEnd; b++ {
				failedBlocks = append(failedBlocks, b)
			}
		} else {
			failedBlocks = append(failedBlocks, result.FailedBlocks...)
			processed += result.Processed
		}

		batchBlocks := batchEnd - current + 1
		processedThisRun += batchBlocks
		current = batchEnd + 1

		wc.recordJobProgress(actCtx, input, processed, failedBlocks)

		if processedThisRun >= continueAsNewThreshold && current <= input.EndBlock {
			logger.Info("Triggering ContinueAsNew for backfill",
				"processed_so_far", processed,
				"next_block", current)

			return types.WorkflowBackfillOutput{}, workflow.NewContinueAsNewError(ctx, wc.BackfillRangeWorkflow, types.WorkflowBackfillInput{
				JobID:          input.JobID,
				ChainID:        input.ChainID,
				Address:        input.Address,
				StartBlock:     current,
				EndBlock:       input.EndBlock,
				RequestedBy:    input.RequestedBy,
				ProcessedSoFar: processed,
				FailedBlocks:   failedBlocks,
			})
		}
	}

	status := adminstore.JobCompleted
	if len(failedBlocks) > 0 {
		status = adminstore.JobFailed
	}
	wc.recordJobWith(actCtx, input, status, processed, failedBlocks, "")

	durationMs := float64(workflow.Now(ctx).Sub(startTime).Microseconds()) / 1000.0

	logger.Info("BackfillRangeWorkflow completed",
		"job_id", input.JobID,
		"total_blocks", input.EndBlock-input.StartBlock+1,
		"processed", processed,
		"failed_blocks", len(failedBlocks),
		"duration_ms", durationMs,
	)

	return types.WorkflowBackfillOutput{
		TotalBlocks:  input.EndBlock - input.StartBlock + 1,
		Processed:    processed,
		FailedBlocks: failedBlocks,
		DurationMs:   durationMs,
	}, nil
}

func (wc *Context) recordJob(ctx workflow.Context, input types.WorkflowBackfillInput, status adminstore.JobStatus, errMsg string) {
	wc.recordJobWith(ctx, input, status, input.ProcessedSoFar, input.FailedBlocks, errMsg)
}

func (wc *Context) recordJobProgress(ctx workflow.Context, input types.WorkflowBackfillInput, processed uint64, failedBlocks []uint64) {
	wc.recordJobWith(ctx, input, adminstore.JobRunning, processed, failedBlocks, "")
}

func (wc *Context) recordJobWith(ctx workflow.Context, input types.WorkflowBackfillInput, status adminstore.JobStatus, processed uint64, failedBlocks []uint64, errMsg string) {
	err := workflow.ExecuteActivity(ctx, wc.ActivityContext.RecordJob, types.ActivityRecordJobInput{
		JobID:        input.JobID,
		Status:       string(status),
		Processed:    processed,
		FailedBlocks: failedBlocks,
		Error:        errMsg,
	}).Get(ctx, nil)
	if err != nil {
		// Job bookkeeping is best-effort, the backfill itself continues.
		workflow.GetLogger(ctx).Warn("Failed to record job status",
			"job_id", input.JobID,
			"error", err)
	}
}
