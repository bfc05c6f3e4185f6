package query

import (
	"time"

	"github.com/rs/zerolog"
)

// LogEvent describes one evaluation.
type LogEvent struct {
	Engine   string
	Expr     string
	Subject  string
	Duration time.Duration
	Err      error
}

// Logger records evaluations.
type Logger interface {
	LogEvaluation(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// LogEvaluation implements Logger.
func (f LoggerFunc) LogEvaluation(event LogEvent) {
	if f != nil {
		f(event)
	}
}

// NopLogger discards events.
type NopLogger struct{}

// LogEvaluation implements Logger.
func (NopLogger) LogEvaluation(LogEvent) {}

// ZerologLogger writes evaluation events to logger: failures at warn level,
// everything else at debug.
func ZerologLogger(logger zerolog.Logger) Logger {
	return LoggerFunc(func(event LogEvent) {
		entry := logger.Debug()
		if event.Err != nil {
			entry = logger.Warn().Err(event.Err)
		}
		entry.
			Str("engine", event.Engine).
			Str("expr", event.Expr).
			Str("subject", event.Subject).
			Dur("duration", event.Duration).
			Msg("query evaluated")
	})
}
