package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/qagraph/qagraph/internal/config"
	"github.com/qagraph/qagraph/pkg/checkpoint"
)

// startGC runs a background sweep, on cfg.GCInterval's schedule, that
// deletes sessions whose last checkpoint is older than
// cfg.SessionRetention. The broker's own replay buffers expire
// themselves (see pkg/broker's SUB_GRACE handling); sessions are the
// one thing nothing else ever cleans up. Returns a stop function.
func startGC(cfg *config.Config, store checkpoint.Store, logger *slog.Logger) (func(), error) {
	if cfg.SessionRetention <= 0 {
		return func() {}, nil
	}

	c := cron.New()
	_, err := c.AddFunc(cfg.GCInterval, func() {
		sweepExpiredSessions(store, cfg.SessionRetention, logger)
	})
	if err != nil {
		return nil, err
	}
	c.Start()

	return func() {
		<-c.Stop().Done()
	}, nil
}

func sweepExpiredSessions(store checkpoint.Store, retention time.Duration, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-retention)
	sessions, err := store.ListSessions(ctx, time.Time{}, 0)
	if err != nil {
		logger.Error("gc: list sessions failed", "error", err)
		return
	}

	var swept int
	for _, s := range sessions {
		if s.LastUpdated.After(cutoff) {
			continue
		}
		if err := store.DeleteSession(ctx, s.SessionID); err != nil {
			logger.Error("gc: delete session failed", "session_id", s.SessionID, "error", err)
			continue
		}
		swept++
	}
	if swept > 0 {
		logger.Info("gc: swept expired sessions", "count", swept)
	}
}
