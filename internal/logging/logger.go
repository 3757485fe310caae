package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Config selects the handler and level for a logger.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr

	writer io.Writer
}

// New builds a slog.Logger. Lambda functions use the JSON handler so
// CloudWatch can index attributes; console is for the devserver.
func New(cfg Config) *slog.Logger {
	level := parseLevel(cfg.Level)

	w := cfg.writer
	if w == nil {
		switch cfg.Output {
		case "stderr":
			w = os.Stderr
		default:
			w = os.Stdout
		}
	}

	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "console":
		h = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		})
	default:
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(h)
}

// Discard returns a logger that drops everything. Used by tests and as a
// nil-safe default in constructors.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
