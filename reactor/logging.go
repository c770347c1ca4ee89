package reactor

import (
	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Logger is the structured logging facade every reactor component logs
// through: a generic logiface.Logger instantiated over izerolog's concrete
// Event type, backed by rs/zerolog. It never logs socket payloads — only
// dispatch routing decisions (dropped, unexpected or failed events),
// late-event drops and reconnect throttling, per WithLogger's doc comment in
// options.go. Drain completeness and scheduling overflow are not logged.
type Logger = logiface.Logger[*izerolog.Event]

// noopLogger is the default when no WithLogger option is supplied: a
// logiface.Logger with no writer configured, so every Build call is a no-op
// allocation-free branch (logiface.Logger.canWrite reports false without a
// writer), matching the teacher's "logging is always safe to call, even
// disabled" contract.
func noopLogger() *Logger {
	return logiface.New[*izerolog.Event]()
}

// NewLogger builds a Logger backed by zl, for use with WithLogger.
func NewLogger(zl zerolog.Logger) *Logger {
	return logiface.New[*izerolog.Event](izerolog.WithZerolog(zl))
}
