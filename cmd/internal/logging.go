package internal

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns a logger writing to w. SIGSCAN_JSON_LOG=1/true/json
// selects JSON output. The level comes from SIGSCAN_LOG_LEVEL unless verbose
// or quiet override it.
func NewLogger(w io.Writer, verbose, quiet bool) *slog.Logger {
	level := levelFromEnv()
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(os.Getenv("SIGSCAN_JSON_LOG")) {
	case "1", "true", "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("SIGSCAN_LOG_LEVEL")) {
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
