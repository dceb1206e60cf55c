package eventcore

import "errors"

// Registration (configuration) errors — spec.md §7 "Configuration errors".
var (
	// ErrInterfaceSubscriber is returned when Register is called with a nil
	// instance, or RegisterType with a nil or interface type; fatal for that
	// call.
	ErrInterfaceSubscriber = errors.New("eventcore: cannot register an interface as a subscription")

	// ErrHandlerWrongArity marks a scanned method skipped for not taking
	// exactly one parameter, or for returning anything other than nothing
	// or a single error.
	ErrHandlerWrongArity = errors.New("eventcore: handler method must take exactly one parameter and return at most an error")

	// ErrHandlerParamNotEvent marks a scanned method skipped because its
	// parameter does not implement Event.
	ErrHandlerParamNotEvent = errors.New("eventcore: handler parameter does not implement Event")

	// ErrNoHandlerMethods is returned when Register finds no eligible
	// handler methods at all on the given instance.
	ErrNoHandlerMethods = errors.New("eventcore: no eligible handler methods found")

	// ErrNilHandler is returned by Bind when fn is nil.
	ErrNilHandler = errors.New("eventcore: handler function must not be nil")

	// ErrUnknownSubscription is returned by Unregister for a descriptor
	// that is not (or is no longer) registered on this bus.
	ErrUnknownSubscription = errors.New("eventcore: subscription not found")
)

// ErrDispatcherBuildFailed wraps a dispatcher build failure (spec.md §4.6).
// The current implementation's buildDispatcher never actually fails, but
// the error path is kept live so a future codegen-backed dispatcher
// strategy can report build errors without changing the Bus contract.
var ErrDispatcherBuildFailed = errors.New("eventcore: dispatcher build failed")
