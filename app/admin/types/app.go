package types

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	adminstore "github.com/gridline-markets/gridx/pkg/db/admin"
	"github.com/gridline-markets/gridx/pkg/temporal"
)

type App struct {
	AdminDB        *adminstore.DB
	TemporalClient *temporal.Client
	// Zap Logger
	Logger *zap.Logger
	// Server is the HTTP server serving the admin API.
	Server *http.Server
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.AdminDB.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}
	a.TemporalClient.Close()

	_ = a.Server.Shutdown(shutdownCtx)
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
