package eventcore

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// dispatcherMap is the immutable snapshot published after every rebuild.
// Bus never mutates a dispatcherMap in place (spec.md §3 invariant 4); it
// always swaps in a freshly built replacement.
type dispatcherMap map[reflect.Type]*dispatcher

// noSubscribers marks a concrete event type that was looked up and found
// to have no matching subscribers at all, so later dispatches of the same
// type hit the lock-free fast path instead of re-scanning the registry
// under the mutex every time (spec.md §4.4's O(1) publish-path contract).
// It is never passed to dispatchSafe/dispatchUnsafe: a dispatcher absent
// from the build step never exists, per spec.md §4.4 step 2, so Dispatch
// treats it exactly like a true miss.
var noSubscribers = &dispatcher{}

// Bus is a typed, in-process publish/subscribe engine. The zero value is
// not usable; construct with NewBus.
type Bus struct {
	logger Logger

	mu  sync.Mutex // serializes register/unregister/bake and snapshot publication
	reg *registry
	seq uint64

	types       *typeCache
	dispatchers atomic.Pointer[dispatcherMap]

	rebuildCount uint64
}

// NewBus constructs an empty Bus. A nil logger is replaced with NoopLogger.
func NewBus(logger Logger) *Bus {
	if logger == nil {
		logger = NoopLogger{}
	}
	b := &Bus{
		logger: logger,
		reg:    newRegistry(),
		types:  newTypeCache(),
	}
	empty := make(dispatcherMap)
	b.dispatchers.Store(&empty)
	return b
}

// RegisterEventInterface tells the bus's type-hierarchy resolver that I is
// an event-capable interface worth including in ancestor fan-out, even
// though Go cannot otherwise enumerate "every interface T implements".
// Call this once per interface before registering non-exact subscribers
// whose fan-out should include it. I is constrained to Event so the
// resulting ancestor set always satisfies isEventType.
func RegisterEventInterface[I Event](b *Bus) {
	b.types.registerInterface(reflect.TypeOf((*I)(nil)).Elem())
}

// Register reflectively scans instance for exported OnXxx(Event) handler
// methods (see discoverHandlers) and registers one Subscription per
// eligible method, attributed to namespace. The owner field of each
// Subscription is instance itself, so UnregisterAllByOwner(instance) later
// removes all of them.
func (b *Bus) Register(namespace string, instance any) ([]*Subscription, error) {
	if instance == nil {
		return nil, ErrInterfaceSubscriber
	}
	ownerType := reflect.TypeOf(instance)
	staged, warnings := b.discoverHandlers(namespace, instance, instance, ownerType)
	for _, w := range warnings {
		b.logger.Warn("skipping handler method", "error", w)
	}
	if len(staged) == 0 {
		return nil, ErrNoHandlerMethods
	}
	b.stageAndCommit(staged)
	return staged, nil
}

// RegisterType registers the static-equivalent handlers declared on t: a
// pointer type whose methods take no meaningful receiver state. Go has no
// static methods, so eventcore constructs one ephemeral zero-value
// instance of t and binds every OnXxx method to it; the resulting
// Subscriptions carry owner == nil (so UnregisterAllByOwner cannot target
// them — there is no owner instance to identify by) but retain ownerType
// for UnregisterAllByOwnerType.
func (b *Bus) RegisterType(namespace string, t reflect.Type) ([]*Subscription, error) {
	if t == nil || t.Kind() == reflect.Interface {
		return nil, ErrInterfaceSubscriber
	}
	var instance any
	if t.Kind() == reflect.Ptr {
		instance = reflect.New(t.Elem()).Interface()
	} else {
		instance = reflect.New(t).Elem().Interface()
	}
	staged, warnings := b.discoverHandlers(namespace, nil, instance, t)
	for _, w := range warnings {
		b.logger.Warn("skipping handler method", "error", w)
	}
	if len(staged) == 0 {
		return nil, ErrNoHandlerMethods
	}
	b.stageAndCommit(staged)
	return staged, nil
}

// Bind registers an explicit, compile-time type-safe callback for exactly
// one concrete event type E, the generic counterpart to the reflective
// register(namespace, event_type, order, callback) operation from
// spec.md §6. Dispatch always passes the concrete E; fn never needs a
// type assertion.
func Bind[E Event](b *Bus, namespace string, order PostOrder, ignoreCancelled bool, fn func(E)) (*Subscription, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	var zero E
	t := reflect.TypeOf(zero)
	if t == nil {
		t = reflect.TypeOf(&zero).Elem()
	}
	ignoreCancelled = ignoreCancelled && t.Implements(cancellableType)

	sub := &Subscription{
		order:           order,
		ignoreCancelled: ignoreCancelled,
		namespace:       namespace,
		events:          map[reflect.Type]struct{}{t: {}},
		label:           "Bind[" + t.String() + "]",
		invoke: func(_ any, event Event) error {
			fn(event.(E))
			return nil
		},
	}
	b.stageAndCommit([]*Subscription{sub})
	return sub, nil
}

// BindNormal is Bind with order fixed to Normal and cancellation gating
// disabled, the generic counterpart to spec.md §6's
// "register(namespace, event_type, callback) — explicit, order = NORMAL".
func BindNormal[E Event](b *Bus, namespace string, fn func(E)) (*Subscription, error) {
	return Bind(b, namespace, Normal, false, fn)
}

// stageAndCommit is the shared tail of every registration path: assign
// insertion sequence numbers, insert into the index, and rebuild exactly
// the affected dispatchers, all under the structural mutex (spec.md §5).
func (b *Bus) stageAndCommit(staged []*Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	affected := make(map[reflect.Type]struct{})
	for _, s := range staged {
		if s.id == "" {
			s.id = uuid.NewString()
		}
		b.seq++
		s.seq = b.seq
		for t := range b.reg.insert(s) {
			affected[t] = struct{}{}
		}
	}
	b.rebuildLocked(affected)
}

// Unregister removes a single Subscription and rebuilds its affected
// dispatchers.
func (b *Bus) Unregister(sub *Subscription) error {
	if sub == nil {
		return ErrUnknownSubscription
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	affected := b.reg.remove(sub)
	if len(affected) == 0 {
		return ErrUnknownSubscription
	}
	b.rebuildLocked(affected)
	return nil
}

// UnregisterAllByOwner removes every Subscription whose Owner() is
// identical (==) to owner.
func (b *Bus) UnregisterAllByOwner(owner any) int {
	return b.unregisterWhere(func(s *Subscription) bool { return s.owner == owner })
}

// UnregisterAllByOwnerType removes every Subscription whose OwnerType()
// equals t.
func (b *Bus) UnregisterAllByOwnerType(t reflect.Type) int {
	return b.unregisterWhere(func(s *Subscription) bool { return s.ownerType == t })
}

// UnregisterAllByNamespace removes every Subscription registered under
// namespace.
func (b *Bus) UnregisterAllByNamespace(namespace string) int {
	return b.unregisterWhere(func(s *Subscription) bool { return s.namespace == namespace })
}

func (b *Bus) unregisterWhere(pred func(*Subscription) bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for _, s := range b.reg.subscriptions {
		if pred(s) {
			removed++
		}
	}
	if removed == 0 {
		return 0
	}
	affected := b.reg.removeIf(pred)
	b.rebuildLocked(affected)
	return removed
}

// Bake rebuilds every currently-cached dispatcher from the current index
// from scratch, regardless of whether its subscription list actually
// changed. Idempotent when no registrations have occurred between calls
// (spec.md §8 invariant 4): rebuilding from the same registry state
// produces the same sorted subscriber lists.
func (b *Bus) Bake() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev := *b.dispatchers.Load()
	next := make(dispatcherMap, len(prev))

	buildErrs := make(map[reflect.Type]error)
	for e := range prev {
		d, matched := b.buildForConcreteType(e)
		if matched && d == nil {
			buildErrs[e] = ErrDispatcherBuildFailed
			b.logger.Error("bake: dispatcher build failed, keeping previous snapshot", "event_type", e.String())
			next[e] = prev[e]
			continue
		}
		if !matched {
			next[e] = noSubscribers
			continue
		}
		next[e] = d
	}

	b.dispatchers.Store(&next)
	atomic.AddUint64(&b.rebuildCount, 1)

	if len(buildErrs) > 0 {
		return aggregateBuildErrors(buildErrs)
	}
	return nil
}

// rebuildLocked rebuilds every currently-cached concrete-type dispatcher
// whose match set could have changed because of a mutation to the given
// declared bucket types, and atomically publishes the new snapshot. Must
// be called with b.mu held.
//
// A cached dispatcher for concrete type E was built by flattening
// ancestors(E) against the registry's declared-type buckets (see
// dispatcherFor); a bucket mutation at declared type A can only affect E
// if A ∈ ancestors(E). Checking that membership against the (small,
// already memoized) set of concrete types seen so far is cheaper than
// trying to invert "every possible future subtype of A" into an index.
//
// Per spec.md §4.6, a build failure for one type leaves that type's
// previous dispatcher in place; it does not revert the index change that
// triggered the rebuild, and does not block other types from rebuilding.
func (b *Bus) rebuildLocked(affectedBuckets map[reflect.Type]struct{}) error {
	if len(affectedBuckets) == 0 {
		return nil
	}
	prev := *b.dispatchers.Load()
	next := make(dispatcherMap, len(prev))
	for t, d := range prev {
		next[t] = d
	}

	buildErrs := make(map[reflect.Type]error)
	for e := range prev {
		touched := false
		for _, a := range b.types.ancestors(e) {
			if _, ok := affectedBuckets[a]; ok {
				touched = true
				break
			}
		}
		if !touched {
			continue
		}
		d, matched := b.buildForConcreteType(e)
		if matched && d == nil {
			buildErrs[e] = ErrDispatcherBuildFailed
			b.logger.Error("dispatcher build failed, keeping previous snapshot", "event_type", e.String())
			continue
		}
		if !matched {
			next[e] = noSubscribers
			continue
		}
		next[e] = d
		b.logger.Debug("rebuilt dispatcher", "event_type", e.String(), "subscribers", len(d.subs))
	}

	b.dispatchers.Store(&next)
	atomic.AddUint64(&b.rebuildCount, 1)

	if len(buildErrs) > 0 {
		return aggregateBuildErrors(buildErrs)
	}
	return nil
}

// buildForConcreteType flattens ancestors(t) against the registry's
// declared-type buckets and compiles the matching, sorted subscriber list
// into a dispatcher. A bucket registered at ancestor type A matches t
// when A == t (the handler declared exactly t, regardless of exactEvent),
// or when A is an event interface t implements and the handler did not
// request exactEvent.
//
// Embedded concrete struct ancestors (the other half of typeCache.ancestors)
// never contribute subscribers here; a handler declared with a concrete
// parameter type matches only that exact type. Go gives embedding no
// structural subtyping, so
// reflect.Value.Call on a handler declared with a concrete parameter type
// panics unless the argument's runtime type is that exact type. Only
// interface ancestors can safely absorb a different concrete runtime type
// the way Java's reflective Method.invoke does for superclass parameters.
//
// matched reports whether any subscriber matched at all, distinguishing
// "no subscribers" (caller should cache a no-op dispatcher) from "build
// failed" (d == nil, matched == true).
func (b *Bus) buildForConcreteType(t reflect.Type) (d *dispatcher, matched bool) {
	var subs []*Subscription
	for _, a := range b.types.ancestors(t) {
		exactOnly := a != t && a.Kind() != reflect.Interface
		for _, s := range b.reg.sorted(a) {
			if a == t || (!exactOnly && !s.exact) {
				subs = append(subs, s)
			}
		}
	}
	if len(subs) == 0 {
		return nil, false
	}
	sortSubscriptions(subs)
	built, err := buildDispatcher(t, subs)
	if err != nil {
		return nil, true
	}
	return built, true
}

// Dispatch looks up the dispatcher for event's concrete runtime type and,
// if present, invokes the safe variant: each subscriber (and the
// post-dispatch hook) is isolated, so Dispatch never returns an error and
// never panics. A type with no subscribers is a silent no-op.
func (b *Bus) Dispatch(event Event) {
	d := b.dispatcherFor(event)
	if d == nil || d == noSubscribers {
		return
	}
	d.dispatchSafe(b.logger, event)
}

// UnsafeDispatch looks up the dispatcher for event's concrete type and
// invokes the unsafe variant: the first subscriber error propagates,
// skipping later subscribers and the post-dispatch hook. A returned error is
// caught here and logged exactly once; a panicking subscriber is caught by
// the same top-level recover, the event-level fallback spec.md §4.4 and §7
// require ("any escaping error is caught at the outermost level and logged
// once... the bus never throws out of dispatch"). Either way
// UnsafeDispatch itself never panics and never returns anything to its
// caller beyond that single log line.
func (b *Bus) UnsafeDispatch(event Event) {
	d := b.dispatcherFor(event)
	if d == nil || d == noSubscribers {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("unsafe dispatch panicked", "event_type", reflect.TypeOf(event).String(), "panic", r)
		}
	}()
	if err := d.dispatchUnsafe(event); err != nil {
		b.logger.Error("unsafe dispatch failed", "event_type", reflect.TypeOf(event).String(), "error", err)
	}
}

// DispatchAsync dispatches event synchronously through the safe path (the
// bus itself never schedules work) and returns its completion handle,
// unmodified — fulfilling it is the handler's own responsibility.
func (b *Bus) DispatchAsync(event AsyncEvent) Future {
	b.Dispatch(event)
	return event.DoneFuture()
}

// UnsafeDispatchAsync is the unsafe-dispatch counterpart of DispatchAsync.
func (b *Bus) UnsafeDispatchAsync(event AsyncEvent) Future {
	b.UnsafeDispatch(event)
	return event.DoneFuture()
}

// dispatcherFor returns the compiled dispatcher for event's concrete
// runtime type, building and caching it on first sight. The fast path
// (type already seen) takes no lock, matching spec.md §5's "publishers do
// not take the mutex" rule; only the one-time build for a newly
// encountered concrete type takes the structural mutex, since it
// publishes a new dispatchers snapshot the same way a registration would.
func (b *Bus) dispatcherFor(event Event) *dispatcher {
	t := reflect.TypeOf(event)
	snapshot := *b.dispatchers.Load()
	if d, ok := snapshot[t]; ok {
		return d
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	snapshot = *b.dispatchers.Load()
	if d, ok := snapshot[t]; ok {
		return d
	}

	d, matched := b.buildForConcreteType(t)
	if matched && d == nil {
		// Subscribers exist but the build failed; leave the cache
		// untouched so the next dispatch retries rather than wrongly
		// remembering this type as subscriber-free.
		b.logger.Error("dispatcher build failed for newly observed event type", "event_type", t.String())
		return nil
	}
	if !matched {
		d = noSubscribers
	}
	next := make(dispatcherMap, len(snapshot)+1)
	for k, v := range snapshot {
		next[k] = v
	}
	next[t] = d
	b.dispatchers.Store(&next)
	atomic.AddUint64(&b.rebuildCount, 1)
	return d
}

// Stats reports read-only counters useful for monitoring and tests. It is
// an in-process accessor, not a network surface, so it doesn't reopen the
// cross-process-delivery non-goal.
type Stats struct {
	Subscriptions int
	EventTypes    int
	Rebuilds      uint64
}

// Stats returns a point-in-time snapshot of bus size and rebuild activity.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Subscriptions: len(b.reg.subscriptions),
		EventTypes:    len(b.reg.byEventType),
		Rebuilds:      atomic.LoadUint64(&b.rebuildCount),
	}
}
