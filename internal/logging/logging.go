package logging

import (
	"log/slog"
	"os"
)

// Logger is the application logger. It is a thin wrapper around slog so
// call sites pass a message followed by structured key/value pairs.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger writing text records to stdout.
func NewLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})),
	}
}
