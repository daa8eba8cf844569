package wiremsg

import (
	"log/slog"

	"github.com/rs/zerolog"
)

// Logger is the interface for structured logging.
// It is designed to be compatible with *slog.Logger from the standard library.
// Applications can provide their own implementation or use the default slog logger.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, args ...any)
	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, args ...any)
	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, args ...any)
	// Error logs an error-level message with optional key-value pairs.
	Error(msg string, args ...any)
}

// defaultLogger returns the default slog logger from the standard library.
func defaultLogger() Logger {
	return slog.Default()
}

// zerologLogger adapts a zerolog.Logger to the Logger interface.
type zerologLogger struct {
	l zerolog.Logger
}

// NewZerologLogger returns a Logger backed by the given zerolog logger.
// Key-value argument pairs become zerolog fields.
func NewZerologLogger(l zerolog.Logger) Logger {
	return &zerologLogger{l: l}
}

func (z *zerologLogger) Debug(msg string, args ...any) { emit(z.l.Debug(), msg, args) }
func (z *zerologLogger) Info(msg string, args ...any)  { emit(z.l.Info(), msg, args) }
func (z *zerologLogger) Warn(msg string, args ...any)  { emit(z.l.Warn(), msg, args) }
func (z *zerologLogger) Error(msg string, args ...any) { emit(z.l.Error(), msg, args) }

func emit(e *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = "!BADKEY"
		}
		e = e.Interface(key, args[i+1])
	}
	e.Msg(msg)
}
