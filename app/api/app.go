package api

import (
	"context"

	"github.com/gridline-markets/gridx/app/api/types"
	"github.com/gridline-markets/gridx/pkg/db/market"
	"github.com/gridline-markets/gridx/pkg/logging"
	"github.com/gridline-markets/gridx/pkg/notify"
	"github.com/gridline-markets/gridx/pkg/utils"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	// Redis feeds the WebSocket endpoint (optional)
	var notifyClient *notify.Client
	if utils.Env("REDIS_ENABLED", "false") == "true" {
		notifyClient, err = notify.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - WebSocket real-time events will be disabled",
				zap.Error(err))
			notifyClient = nil
		} else {
			logger.Info("Redis client initialized for WebSocket real-time events")
		}
	} else {
		logger.Info("Redis disabled - WebSocket real-time events will not be available")
	}

	return &types.App{
		Markets:      xsync.NewMap[string, market.Store](),
		NotifyClient: notifyClient,
		Logger:       logger,
	}
}
