package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a production-friendly JSON logger writing to stdout unless
// LOG_FORMAT=console is provided to prefer a human-readable output.
// LOG_LEVEL selects the minimum level (debug, info, warn, error).
func New() *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFromEnv()}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if format := os.Getenv("LOG_FORMAT"); format == "console" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
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
