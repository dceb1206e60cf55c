// Package eventcore implements a typed, in-process publish/subscribe bus.
//
// Subscribers are registered either by reflectively scanning a handler
// object for OnXxx handler methods (Register) or by binding a single
// concrete event type to a callback at compile time (Bind). The bus
// compiles a sorted subscriber list per concrete event type so that publish
// is a map lookup plus an ordered call chain. Bind callbacks are called
// directly; methods found by Register are invoked through reflect.Value.Call.
package eventcore

import "reflect"

// Event is the value publishers pass through the bus. The bus only ever
// observes its runtime type, whether it implements Cancellable, and its
// PostDispatch hook; it never inspects payload fields.
type Event interface {
	// PostDispatch is invoked once after every matching subscriber has run
	// (or been skipped by the cancellation-gating rule). Implementations
	// that have nothing to do here may embed NoopPostDispatch.
	PostDispatch()
}

// Cancellable is an optional capability an Event may implement. Subscribers
// registered with IgnoreCancelled observe this flag between gated runs
// (see the cancellation-gating rule in gatedRuns and gateEvaluator).
type Cancellable interface {
	IsCancelled() bool
}

// Future is the completion handle an AsyncEvent exposes. The bus never
// resolves it — DispatchAsync returns it unmodified once handlers have
// run; fulfilling it is the handler's responsibility.
type Future interface {
	Done() <-chan struct{}
	Err() error
}

// AsyncEvent is an Event that also carries a completion handle. The bus
// treats it exactly like any other Event for dispatch purposes; the only
// difference is that DispatchAsync/UnsafeDispatchAsync return its handle
// to the caller after running dispatch synchronously.
type AsyncEvent interface {
	Event
	DoneFuture() Future
}

// NoopPostDispatch can be embedded by event structs that have no
// post-dispatch behavior.
type NoopPostDispatch struct{}

// PostDispatch implements Event with a no-op.
func (NoopPostDispatch) PostDispatch() {}

var (
	eventType       = reflect.TypeOf((*Event)(nil)).Elem()
	cancellableType = reflect.TypeOf((*Cancellable)(nil)).Elem()
)

// isEventType reports whether t (a concrete or interface type) implements
// Event. Pointer receivers are the common case for handler parameters, so
// both t and *t are checked.
func isEventType(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t.Implements(eventType) {
		return true
	}
	if t.Kind() != reflect.Ptr && reflect.PointerTo(t).Implements(eventType) {
		return true
	}
	return false
}
