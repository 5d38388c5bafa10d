// Package logging configures structured logging for contentdex.
//
// Library packages accept a *slog.Logger and never configure handlers
// themselves; the CLI calls Setup once at startup.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Config contains logging configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// Output is where log records are written. Defaults to stderr.
	Output io.Writer
	// ForceJSON forces the JSON handler even on a terminal.
	ForceJSON bool
}

// DefaultConfig returns the defaults used by the CLI.
func DefaultConfig() Config {
	return Config{Level: "info"}
}

// Setup builds a logger from cfg. On a terminal it uses the text handler
// for readability; everywhere else it emits JSON for ingestion.
func Setup(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if !cfg.ForceJSON && isTerminal(out) {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return slog.New(handler)
}

// SetupDefault configures the process-wide default logger.
func SetupDefault(cfg Config) *slog.Logger {
	logger := Setup(cfg)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel converts a string level to slog.Level. Unknown values
// fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
