package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/qagraph/qagraph/internal/config"
	"github.com/qagraph/qagraph/internal/httpapi"
	"github.com/qagraph/qagraph/internal/observability"
	"github.com/qagraph/qagraph/pkg/session"
)

func newServeCommand(configPath *string) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP/SSE API and an in-process worker together",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := observability.NewLogger(parseLevel(logLevel))
			return runServe(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "info"), "debug, info, warn, or error")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	observability.InitMetrics()
	if err := observability.Init(observability.TracingConfig{ServiceName: "qagraph", Enabled: true}); err != nil {
		return fmt.Errorf("tracing init: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.Shutdown(shutdownCtx); err != nil {
			logger.Error("tracing shutdown failed", "error", err)
		}
	}()

	b, store, fb, adapterRegistry, llm, err := wireBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()
	defer store.Close()
	defer fb.Close()

	w := newConfiguredWorker(b, store, cfg, adapterRegistry, llm, logger)

	handler := httpapi.NewHandler(httpapi.Config{
		Broker:   b,
		Sessions: session.NewService(store),
		Feedback: fb,
		Adapters: adapterRegistry,
		LLM:      llm,
		Logger:   logger,
	})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: handler.Routes()}

	gcStop, err := startGC(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("gc scheduler: %w", err)
	}
	defer gcStop()

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := w.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("worker: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("fatal error", "error", err)
	case <-quit:
		logger.Info("shutting down")
	}

	cancelWorker()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
