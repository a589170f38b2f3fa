package backfill

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"go.temporal.io/sdk/worker"
	temporalworkflow "go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/gridline-markets/gridx/app/backfill/activity"
	"github.com/gridline-markets/gridx/app/backfill/workflow"
	"github.com/gridline-markets/gridx/pkg/chain"
	adminstore "github.com/gridline-markets/gridx/pkg/db/admin"
	"github.com/gridline-markets/gridx/pkg/db/market"
	"github.com/gridline-markets/gridx/pkg/db/postgres"
	"github.com/gridline-markets/gridx/pkg/logging"
	"github.com/gridline-markets/gridx/pkg/notify"
	"github.com/gridline-markets/gridx/pkg/temporal"
	"github.com/gridline-markets/gridx/pkg/utils"
)

type App struct {
	Worker         worker.Worker
	TemporalClient *temporal.Client
	Chains         *chain.Registry
	Logger         *zap.Logger
}

// Start starts the worker and blocks until the context is canceled.
func (a *App) Start(ctx context.Context) {
	if err := a.Worker.Start(); err != nil {
		a.Logger.Fatal("Unable to start worker", zap.Error(err))
	}
	<-ctx.Done()
	a.Stop()
}

// Stop stops the worker.
func (a *App) Stop() {
	a.Worker.Stop()
	a.Chains.Close()
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}

// Initialize initializes the application.
func Initialize(ctx context.Context) *App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	chainID := utils.EnvUint64("CHAIN_ID", 0)
	if chainID == 0 {
		logger.Fatal("CHAIN_ID environment variable is required")
	}

	chains, err := chain.NewRegistryFromEnv(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to initialize chain clients", zap.Error(err))
	}

	adminDB, err := adminstore.New(ctx, logger, postgres.GetPoolConfigForComponent("backfill"))
	if err != nil {
		logger.Fatal("Unable to initialize admin database", zap.Error(err))
	}

	temporalClient, err := temporal.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to establish temporal connection", zap.Error(err))
	}

	var notifyClient *notify.Client
	if utils.Env("REDIS_ENABLED", "false") == "true" {
		notifyClient, err = notify.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - event notifications disabled", zap.Error(err))
			notifyClient = nil
		}
	}

	activityContext := &activity.Context{
		Logger:       logger,
		AdminDB:      adminDB,
		Markets:      xsync.NewMap[string, market.Store](),
		Chains:       chains,
		NotifyClient: notifyClient,
	}
	workflowContext := &workflow.Context{
		TemporalClient:  temporalClient,
		ActivityContext: activityContext,
	}

	wkr := worker.New(
		temporalClient.TClient,
		temporalClient.GetBackfillQueue(chainID),
		worker.Options{
			MaxConcurrentWorkflowTaskPollers:       10,
			MaxConcurrentActivityTaskPollers:       10,
			MaxConcurrentWorkflowTaskExecutionSize: 100,
			MaxConcurrentActivityExecutionSize:     200,
			WorkerStopTimeout:                      1 * time.Minute,
		},
	)

	wkr.RegisterWorkflowWithOptions(
		workflowContext.BackfillRangeWorkflow,
		temporalworkflow.RegisterOptions{
			Name: workflow.BackfillWorkflowName,
		},
	)
	wkr.RegisterActivity(activityContext.ResolveRange)
	wkr.RegisterActivity(activityContext.ProcessBlockBatch)
	wkr.RegisterActivity(activityContext.RecordJob)

	return &App{
		Worker:         wkr,
		TemporalClient: temporalClient,
		Chains:         chains,
		Logger:         logger,
	}
}
