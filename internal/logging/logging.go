// Package logging builds the slog loggers used by the CLI and the daemon.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tuptime/tuptime/internal/config"
)

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// New returns a text logger writing to out at the given level.
func New(out io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
}

// ForCLI returns the logger for short-lived CLI invocations: stderr, quiet
// unless something is wrong.
func ForCLI() *slog.Logger {
	return New(os.Stderr, "warn")
}

// ForDaemon returns the daemon logger writing to a size-rotated file, so a
// long-running monitor never fills the disk with its own chatter.
func ForDaemon(settings *config.Settings) *slog.Logger {
	w := &lumberjack.Logger{
		Filename:   settings.LogFile,
		MaxSize:    settings.LogMaxSizeMB,
		MaxBackups: 3,
		Compress:   true,
	}
	return New(w, settings.LogLevel)
}
