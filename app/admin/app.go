package admin

import (
	"context"

	"go.uber.org/zap"

	"github.com/gridline-markets/gridx/app/admin/types"
	adminstore "github.com/gridline-markets/gridx/pkg/db/admin"
	"github.com/gridline-markets/gridx/pkg/db/postgres"
	"github.com/gridline-markets/gridx/pkg/logging"
	"github.com/gridline-markets/gridx/pkg/temporal"
	"github.com/gridline-markets/gridx/pkg/utils"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	adminDB, err := adminstore.New(ctx, logger, postgres.GetPoolConfigForComponent("admin"))
	if err != nil {
		logger.Fatal("Unable to initialize admin database", zap.Error(err))
	}

	// Seed the default operator account.
	adminUser := utils.Env("ADMIN_USER", "admin")
	adminPass := utils.Env("ADMIN_PASSWORD", "admin")
	hash, err := utils.HashOrRead(adminPass)
	if err != nil {
		logger.Fatal("Unable to hash admin password", zap.Error(err))
	}
	if err := adminDB.EnsureUser(ctx, &adminstore.User{
		Username: adminUser,
		Hash:     hash,
		Role:     "admin",
	}); err != nil {
		logger.Fatal("Unable to seed admin user", zap.Error(err))
	}

	temporalClient, err := temporal.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to establish temporal connection", zap.Error(err))
	}

	return &types.App{
		AdminDB:        adminDB,
		TemporalClient: temporalClient,
		Logger:         logger,
	}
}
