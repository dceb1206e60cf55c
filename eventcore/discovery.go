package eventcore

import (
	"reflect"
	"strings"
)

// HandlerOptions mirrors the fields of the Subscribe marker from spec.md
// §6: Order, ExactEvent, IgnoreCancelled. Go has no method annotations, so
// a handler object opts into non-default options by implementing
// SubscriberOptions; methods with no entry there get the zero-value
// defaults (Normal, non-exact, non-ignore-cancelled).
type HandlerOptions struct {
	Order           PostOrder
	ExactEvent      bool
	IgnoreCancelled bool
}

// SubscriberOptions is the optional interface a handler instance
// implements to customize per-method dispatch options. The map is keyed
// by exported Go method name, e.g. "OnOrderCreated".
type SubscriberOptions interface {
	EventSubscriptionOptions() map[string]HandlerOptions
}

// handlerMethodPrefix is the naming convention eventcore uses in place of
// a reflective annotation scan: any exported method named OnXxx taking a
// single Event-implementing parameter is a candidate handler. This is the
// "explicit registration or compile-time macro" alternative spec.md §9
// explicitly sanctions in place of annotation scanning.
const handlerMethodPrefix = "On"

var errType = reflect.TypeOf((*error)(nil)).Elem()

// discoverHandlers scans instance (or, for type-only registration, a
// constructed zero value) for eligible handler methods and stages a
// Subscription per method. owner is nil for type-only registration.
//
// Method promotion already flattens embedded-struct methods onto
// reflect.Type.Method, so unlike the reflective Java original, eventcore
// does not need to separately walk ancestor owner types here — Go's own
// method set computation does it.
func (b *Bus) discoverHandlers(namespace string, owner any, instance any, ownerType reflect.Type) ([]*Subscription, []error) {
	var opts map[string]HandlerOptions
	if so, ok := instance.(SubscriberOptions); ok {
		opts = so.EventSubscriptionOptions()
	}

	value := reflect.ValueOf(instance)
	t := value.Type()

	var staged []*Subscription
	var warnings []error

	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if !strings.HasPrefix(m.Name, handlerMethodPrefix) {
			continue
		}

		mtype := m.Type // unbound: In(0) is the receiver
		if mtype.NumIn() != 2 {
			warnings = append(warnings, wrapHandlerError(ownerType, m.Name, ErrHandlerWrongArity))
			continue
		}
		paramType := mtype.In(1)
		if !isEventType(paramType) {
			warnings = append(warnings, wrapHandlerError(ownerType, m.Name, ErrHandlerParamNotEvent))
			continue
		}
		if mtype.NumOut() > 1 || (mtype.NumOut() == 1 && mtype.Out(0) != errType) {
			warnings = append(warnings, wrapHandlerError(ownerType, m.Name, ErrHandlerWrongArity))
			continue
		}

		opt := opts[m.Name]

		// The handler is indexed under exactly its own declared parameter
		// type here. Fan-out to every subtype it should also match
		// (exactEvent=false, the default) happens lazily at dispatch time
		// by flattening the posted event's own ancestor chain against this
		// bucket (see Bus.dispatcherFor) — the mirror image of computing
		// ancestors(parameterType) up front, but computable without
		// knowing every future concrete subtype in advance.
		concreteParam := paramType
		if concreteParam.Kind() == reflect.Interface {
			b.types.registerInterface(concreteParam)
		}
		events := map[reflect.Type]struct{}{concreteParam: {}}

		ignoreCancelled := opt.IgnoreCancelled && concreteParam.Implements(cancellableType)

		method := value.Method(i) // bound method value
		staged = append(staged, &Subscription{
			owner:           owner,
			ownerType:       ownerType,
			order:           opt.Order,
			ignoreCancelled: ignoreCancelled,
			exact:           opt.ExactEvent,
			namespace:       namespace,
			events:          events,
			label:           ownerType.String() + "." + m.Name,
			invoke: func(_ any, event Event) error {
				results := method.Call([]reflect.Value{reflect.ValueOf(event)})
				if len(results) == 1 && !results[0].IsNil() {
					return results[0].Interface().(error)
				}
				return nil
			},
		})
	}

	return staged, warnings
}

func wrapHandlerError(ownerType reflect.Type, method string, err error) error {
	return &discoveryError{ownerType: ownerType, method: method, err: err}
}

type discoveryError struct {
	ownerType reflect.Type
	method    string
	err       error
}

func (e *discoveryError) Error() string {
	return e.ownerType.String() + "." + e.method + ": " + e.err.Error()
}

func (e *discoveryError) Unwrap() error { return e.err }
