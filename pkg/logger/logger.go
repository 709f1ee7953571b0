// Package logger configures the process-wide slog default used by the
// strategy runtime and the CLI.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var level slog.LevelVar

// Setup installs a text handler writing to w at the given level and returns
// the logger. Level strings follow debug|info|warn|error; anything else
// falls back to info.
func Setup(w io.Writer, lvl string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	SetLevel(lvl)
	l := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(l)
	return l
}

// SetLevel changes the level of loggers created by Setup.
func SetLevel(lvl string) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}
