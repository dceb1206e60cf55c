package eventcore

import "reflect"

// invoker is the invocation adapter stored on a Subscription: given the
// owner (nil for a free-standing callback or a type-scanned handler with
// no retained receiver) and the event value, it performs the actual call.
type invoker func(owner any, event Event) error

// Subscription is the immutable descriptor of one registered handler.
// Equality is identity-based: two registrations of the same method or
// callback produce two distinct Subscriptions. A Subscription is returned
// from Register/Bind and is the handle Unregister expects back.
type Subscription struct {
	id              string
	owner           any
	ownerType       reflect.Type
	order           PostOrder
	ignoreCancelled bool
	exact           bool
	namespace       string
	invoke          invoker
	events          map[reflect.Type]struct{}
	seq             uint64
	label           string // method or call-site name, for error logging
}

// ID returns the subscription's stable identifier.
func (s *Subscription) ID() string { return s.id }

// Owner returns the handler's receiver, or nil if none was captured.
func (s *Subscription) Owner() any { return s.owner }

// OwnerType returns the declared type the handler belongs to.
func (s *Subscription) OwnerType() reflect.Type { return s.ownerType }

// Order returns the subscription's position in dispatch order.
func (s *Subscription) Order() PostOrder { return s.order }

// IgnoreCancelled reports whether this subscriber is skipped once the
// dispatched event reports IsCancelled() == true.
func (s *Subscription) IgnoreCancelled() bool { return s.ignoreCancelled }

// Namespace returns the opaque tag supplied at registration, used for bulk
// unregistration.
func (s *Subscription) Namespace() string { return s.namespace }

// Exact reports whether this subscription matches only the declared
// parameter type itself (exactEvent=true) or, for an interface parameter
// type, also every concrete event type implementing it (exactEvent=false,
// the default). A concrete parameter type matches only itself either way.
func (s *Subscription) Exact() bool { return s.exact }

// Events returns the declared type(s) this subscription is indexed under.
// For reflective and Bind registrations this is a single type: the
// handler's declared parameter type. Fan-out to subtypes happens at
// dispatch time (see Bus.dispatcherFor), not here.
func (s *Subscription) Events() []reflect.Type {
	out := make([]reflect.Type, 0, len(s.events))
	for t := range s.events {
		out = append(out, t)
	}
	return out
}

// less implements the total order from spec: order ascending, ties broken
// by insertion sequence (stable, lower seq first).
func less(a, b *Subscription) bool {
	if a.order != b.order {
		return a.order < b.order
	}
	return a.seq < b.seq
}
