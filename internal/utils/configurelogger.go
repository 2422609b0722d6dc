package utils

import (
	"errors"
	"io"
	"log/slog"
	"os"
)

// Configure the slog default logger with a log level and an optional
// output file.
//
// Valid log levels are "none", "error", "warn", "info", "debug"; any other
// value returns an error. When logFile names a path, logs are written
// there as JSON; when empty, text logs go to stdout.
//
// Returns the os.File slog writes to (nil for stdout) so the caller can
// close it on shutdown.
func ConfigureDefaultLogger(logLevel string, logFile string, loggerOptions slog.HandlerOptions) (*os.File, error) {
	switch logLevel {
	case "none":
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return nil, nil
	case "error":
		loggerOptions.Level = slog.LevelError
	case "warn":
		loggerOptions.Level = slog.LevelWarn
	case "info":
		loggerOptions.Level = slog.LevelInfo
	case "debug":
		loggerOptions.Level = slog.LevelDebug
	default:
		return nil, errors.New("unexpected log level")
	}

	if logFile == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &loggerOptions)))
		return nil, nil
	}

	logFilePointer, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(logFilePointer, &loggerOptions)))
	return logFilePointer, nil
}
