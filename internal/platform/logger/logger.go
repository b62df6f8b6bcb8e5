package logger

import (
	"log/slog"
	"os"
)

// New returns the structured logger used across services and workers.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
