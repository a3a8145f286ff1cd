package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/pelageech/isoserve/config"
	"github.com/pelageech/isoserve/logging"
	"github.com/pelageech/isoserve/server"
)

func main() {
	logger := logging.New(os.Stderr, false)

	cfg, err := config.ParseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		logger.Fatal("Invalid arguments", "err", err)
	}
	if cfg.Verbose {
		logger = logging.New(os.Stderr, true)
	}
	if len(cfg.Ignored) > 0 {
		logger.Warn("Ignoring arguments after the port", "args", cfg.Ignored)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", "err", err)
	}

	if err := srv.Listen(); err != nil {
		logger.Fatal("Failed to bind", "err", err)
	}
	srv.PrintBanner(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Serve(ctx); err != nil {
		logger.Fatal("Server stopped", "err", err)
	}
	logger.Info("Bye")
}
