package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/listening-companion/internal/platform/config"
	"github.com/example/listening-companion/services/listener/internal/cli"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
