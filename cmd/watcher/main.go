package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/gridline-markets/gridx/app/watcher"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	defer cancel()

	app := watcher.Initialize(ctx)

	app.Start(ctx)
}
