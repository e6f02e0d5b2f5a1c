package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qagraph/qagraph/internal/config"
	"github.com/qagraph/qagraph/internal/observability"
)

func newWorkerCommand(configPath *string) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a worker only, claiming jobs from a shared broker (no HTTP server)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := observability.NewLogger(parseLevel(logLevel))

			b, store, _, reg, llm, err := wireBackends(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()
			defer store.Close()

			w := newConfiguredWorker(b, store, cfg, reg, llm, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("worker started")
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			logger.Info("worker stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", os.Getenv("LOG_LEVEL"), "debug, info, warn, or error")
	return cmd
}
