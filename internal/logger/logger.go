package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// Logger defines a standard interface for logging.
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
}

// SlogLogger is a wrapper around Go's structured logger.
type SlogLogger struct {
	*slog.Logger
}

// ParseLevel maps a level name to a slog level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a new logger instance based on the specified level.
// Records are written as JSON to stdout and fanned out to every extra sink.
func NewLogger(level string, sinks ...io.Writer) Logger {
	return newSlogLogger(ParseLevel(level), os.Stdout, sinks...)
}

func newSlogLogger(lvl slog.Level, primary io.Writer, sinks ...io.Writer) *SlogLogger {
	opts := &slog.HandlerOptions{Level: lvl}

	handlers := []slog.Handler{slog.NewJSONHandler(primary, opts)}
	for _, sink := range sinks {
		if sink == nil {
			continue
		}
		handlers = append(handlers, slog.NewTextHandler(sink, opts))
	}

	if len(handlers) == 1 {
		return &SlogLogger{slog.New(handlers[0])}
	}
	return &SlogLogger{slog.New(slogmulti.Fanout(handlers...))}
}

// OpenFile opens (or creates) a log file in append mode for use as an extra sink.
func OpenFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return f, nil
}

// Debugf logs a message at the debug level.
func (l *SlogLogger) Debugf(format string, v ...interface{}) {
	l.Debug(fmt.Sprintf(format, v...))
}

// Infof logs a message at the info level.
func (l *SlogLogger) Infof(format string, v ...interface{}) {
	l.Info(fmt.Sprintf(format, v...))
}

// Warnf logs a message at the warn level.
func (l *SlogLogger) Warnf(format string, v ...interface{}) {
	l.Warn(fmt.Sprintf(format, v...))
}

// Errorf logs a message at the error level.
func (l *SlogLogger) Errorf(format string, v ...interface{}) {
	l.Error(fmt.Sprintf(format, v...))
}
