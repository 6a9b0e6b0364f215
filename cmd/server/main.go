// Package main is the entry point for the CampusConnect server.
//
// Configuration comes from the environment, optionally via a .env file in the
// working directory. See internal/config for the keys.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sakif/campus-connect/internal/config"
	"github.com/sakif/campus-connect/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until the server is shut down (Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
