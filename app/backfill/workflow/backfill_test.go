package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
	sdkworkflow "go.temporal.io/sdk/workflow"

	"github.com/gridline-markets/gridx/app/backfill/activity"
	"github.com/gridline-markets/gridx/app/backfill/types"
)

type workflowFixture struct {
	env      *testsuite.TestWorkflowEnvironment
	wc       *Context
	statuses []string
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()

	wc := &Context{ActivityContext: &activity.Context{}}
	env.RegisterWorkflowWithOptions(wc.BackfillRangeWorkflow, sdkworkflow.RegisterOptions{Name: BackfillWorkflowName})
	env.RegisterActivity(wc.ActivityContext.ResolveRange)
	env.RegisterActivity(wc.ActivityContext.ProcessBlockBatch)
	env.RegisterActivity(wc.ActivityContext.RecordJob)

	f := &workflowFixture{env: env, wc: wc}
	env.OnActivity(wc.ActivityContext.RecordJob, mock.Anything, mock.Anything).Return(
		func(_ context.Context, in types.ActivityRecordJobInput) error {
			f.statuses = append(f.statuses, in.Status)
			return nil
		})
	return f
}

func TestBackfillRangeWorkflowAscendingBatches(t *testing.T) {
	f := newWorkflowFixture(t)

	var batches []types.ActivityProcessBatchInput
	f.env.OnActivity(f.wc.ActivityContext.ProcessBlockBatch, mock.Anything, mock.Anything).Return(
		func(_ context.Context, in types.ActivityProcessBatchInput) (types.ActivityProcessBatchOutput, error) {
			batches = append(batches, in)
			return types.ActivityProcessBatchOutput{Processed: in.EndBlock - in.StartBlock + 1}, nil
		})

	f.env.ExecuteWorkflow(BackfillWorkflowName, types.WorkflowBackfillInput{
		JobID:      "job-1",
		ChainID:    1,
		Address:    "0xmkt",
		StartBlock: 100,
		EndBlock:   350,
	})

	require.True(t, f.env.IsWorkflowCompleted())
	require.NoError(t, f.env.GetWorkflowError())

	var out types.WorkflowBackfillOutput
	require.NoError(t, f.env.GetWorkflowResult(&out))
	assert.Equal(t, uint64(251), out.TotalBlocks)
	assert.Equal(t, uint64(251), out.Processed)
	assert.Empty(t, out.FailedBlocks)

	// Batches cover the range contiguously, ascending.
	require.Len(t, batches, 2)
	assert.Equal(t, uint64(100), batches[0].StartBlock)
	assert.Equal(t, uint64(349), batches[0].EndBlock)
	assert.Equal(t, uint64(350), batches[1].StartBlock)
	assert.Equal(t, uint64(350), batches[1].EndBlock)

	require.NotEmpty(t, f.statuses)
	assert.Equal(t, "running", f.statuses[0])
	assert.Equal(t, "completed", f.statuses[len(f.statuses)-1])
}

func TestBackfillRangeWorkflowResolvesDefaults(t *testing.T) {
	f := newWorkflowFixture(t)

	f.env.OnActivity(f.wc.ActivityContext.ResolveRange, mock.Anything, mock.Anything).Return(
		types.ActivityResolveRangeOutput{StartBlock: 10, EndBlock: 20}, nil)

	var got types.ActivityProcessBatchInput
	f.env.OnActivity(f.wc.ActivityContext.ProcessBlockBatch, mock.Anything, mock.Anything).Return(
		func(_ context.Context, in types.ActivityProcessBatchInput) (types.ActivityProcessBatchOutput, error) {
			got = in
			return types.ActivityProcessBatchOutput{Processed: in.EndBlock - in.StartBlock + 1}, nil
		})

	f.env.ExecuteWorkflow(BackfillWorkflowName, types.WorkflowBackfillInput{
		JobID:   "job-2",
		ChainID: 1,
		Address: "0xmkt",
	})

	require.True(t, f.env.IsWorkflowCompleted())
	require.NoError(t, f.env.GetWorkflowError())

	assert.Equal(t, uint64(10), got.StartBlock)
	assert.Equal(t, uint64(20), got.EndBlock)

	var out types.WorkflowBackfillOutput
	require.NoError(t, f.env.GetWorkflowResult(&out))
	assert.Equal(t, uint64(11), out.TotalBlocks)
}

func TestBackfillRangeWorkflowAccumulatesFailedBlocks(t *testing.T) {
	f := newWorkflowFixture(t)

	f.env.OnActivity(f.wc.ActivityContext.ProcessBlockBatch, mock.Anything, mock.Anything).Return(
		func(_ context.Context, in types.ActivityProcessBatchInput) (types.ActivityProcessBatchOutput, error) {
			return types.ActivityProcessBatchOutput{
				Processed:    in.EndBlock - in.StartBlock,
				FailedBlocks: []uint64{in.StartBlock + 5},
			}, nil
		})

	f.env.ExecuteWorkflow(BackfillWorkflowName, types.WorkflowBackfillInput{
		JobID:      "job-3",
		ChainID:    1,
		Address:    "0xmkt",
		StartBlock: 100,
		EndBlock:   150,
	})

	require.True(t, f.env.IsWorkflowCompleted())
	require.NoError(t, f.env.GetWorkflowError())

	var out types.WorkflowBackfillOutput
	require.NoError(t, f.env.GetWorkflowResult(&out))
	assert.Equal(t, []uint64{105}, out.FailedBlocks)

	// Any failed block marks the job failed so the operator can re-run a
	// narrower range.
	assert.Equal(t, "failed", f.statuses[len(f.statuses)-1])
}

func TestBackfillRangeWorkflowBatchFailureDoesNotAbort(t *testing.T) {
	f := newWorkflowFixture(t)

	f.env.OnActivity(f.wc.ActivityContext.ProcessBlockBatch, mock.Anything, mock.Anything).Return(
		types.ActivityProcessBatchOutput{}, errors.New("rpc unreachable"))

	f.env.ExecuteWorkflow(BackfillWorkflowName, types.WorkflowBackfillInput{
		JobID:      "job-4",
		ChainID:    1,
		Address:    "0xmkt",
		StartBlock: 100,
		EndBlock:   104,
	})

	require.True(t, f.env.IsWorkflowCompleted())
	require.NoError(t, f.env.GetWorkflowError())

	var out types.WorkflowBackfillOutput
	require.NoError(t, f.env.GetWorkflowResult(&out))
	assert.Equal(t, []uint64{100, 101, 102, 103, 104}, out.FailedBlocks)
	assert.Equal(t, uint64(0), out.Processed)
	assert.Equal(t, "failed", f.statuses[len(f.statuses)-1])
}

func TestBackfillRangeWorkflowContinuesAsNew(t *testing.T) {
	f := newWorkflowFixture(t)

	f.env.OnActivity(f.wc.ActivityContext.ProcessBlockBatch, mock.Anything, mock.Anything).Return(
		func(_ context.Context, in types.ActivityProcessBatchInput) (types.ActivityProcessBatchOutput, error) {
			return types.ActivityProcessBatchOutput{Processed: in.EndBlock - in.StartBlock + 1}, nil
		})

	f.env.ExecuteWorkflow(BackfillWorkflowName, types.WorkflowBackfillInput{
		JobID:      "job-5",
		ChainID:    1,
		Address:    "0xmkt",
		StartBlock: 1,
		EndBlock:   30000,
	})

	require.True(t, f.env.IsWorkflowCompleted())
	err := f.env.GetWorkflowError()
	require.Error(t, err)
	assert.True(t, sdkworkflow.IsContinueAsNewError(err))
}
