package observability

import (
	"log/slog"
	"os"
)

// NewLogger builds a JSON slog.Logger, matching the HTTP-layer
// structured logging idiom in the ashureev-shsh-labs example
// (cmd/server/main.go): JSON handler over stdout, level configurable,
// installed as the process default.
func NewLogger(level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
