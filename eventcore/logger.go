package eventcore

// Logger defines the interface eventcore uses for structured logging.
// The bus never hard-codes a logging backend; all build-time and
// dispatch-time log lines flow through this interface, the same way the
// framework this package is adapted from keeps its Logger pluggable.
//
// Example implementation using go.uber.org/zap is provided in the
// eventcore/zaplogger subpackage.
type Logger interface {
	// Info logs a normal operational event. The bus itself does not log at
	// this level; rebuilds are logged at Debug.
	Info(msg string, args ...any)

	// Error logs a handler failure, a dispatcher build failure, or any
	// other condition spec.md §7 requires to be logged and swallowed.
	Error(msg string, args ...any)

	// Warn logs a configuration error encountered during discovery
	// (wrong arity, non-Event parameter) — the offending handler is
	// skipped, registration continues.
	Warn(msg string, args ...any)

	// Debug logs fine-grained diagnostic detail, e.g. per-type rebuilds.
	Debug(msg string, args ...any)
}

// NoopLogger discards every log line. Useful as a default when the caller
// doesn't care about bus diagnostics.
type NoopLogger struct{}

func (NoopLogger) Info(string, ...any)  {}
func (NoopLogger) Error(string, ...any) {}
func (NoopLogger) Warn(string, ...any)  {}
func (NoopLogger) Debug(string, ...any) {}
