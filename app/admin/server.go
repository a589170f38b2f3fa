package admin

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/gridline-markets/gridx/app/admin/controller"
	"github.com/gridline-markets/gridx/app/admin/types"
	"github.com/gridline-markets/gridx/pkg/utils"
)

// NewServer wires the router onto the app's HTTP server.
func NewServer(app *types.App) error {
	ctler := controller.NewController(app)
	router, err := ctler.NewRouter()
	if err != nil {
		return err
	}

	addr := utils.Env("ADDR", ":3002")

	app.Server = &http.Server{Addr: addr, Handler: controller.WithCORS(router)}
	app.Logger.Info("Starting server", zap.String("addr", addr))

	return nil
}
