package eventcore

import (
	"fmt"
	"reflect"

	"go.uber.org/multierr"
)

// dispatcher is the compiled, per-event-type callable built by buildDispatcher.
// safe and unsafe share the same ordered, gated call sequence; they differ
// only in how a handler error is handled (see spec.md §4.4 / §4.6).
type dispatcher struct {
	eventType reflect.Type
	subs      []*Subscription // sorted, stable snapshot at build time
}

// gatedRun is a maximal contiguous run of subscribers that all have
// IgnoreCancelled() == true. The cancellation check is evaluated at most
// once per run.
type gatedRun struct {
	start, end int // [start, end) into dispatcher.subs
}

func gatedRuns(subs []*Subscription) []gatedRun {
	var runs []gatedRun
	i := 0
	for i < len(subs) {
		if !subs[i].ignoreCancelled {
			i++
			continue
		}
		start := i
		for i < len(subs) && subs[i].ignoreCancelled {
			i++
		}
		runs = append(runs, gatedRun{start: start, end: i})
	}
	return runs
}

// buildDispatcher compiles a dispatcher for one concrete event type from
// its sorted subscription list. Building never fails in this
// implementation (no runtime codegen), but the shape is kept so a future
// specialization strategy (e.g. generated monomorphic code) can return an
// error without changing the Bus-level contract (spec.md §4.6).
func buildDispatcher(t reflect.Type, subs []*Subscription) (*dispatcher, error) {
	snapshot := make([]*Subscription, len(subs))
	copy(snapshot, subs)
	return &dispatcher{eventType: t, subs: snapshot}, nil
}

// gateEvaluator decides, for each index into subs, whether that subscriber
// falls inside a gated run that should be skipped. event.IsCancelled() is
// evaluated at most once per run, at the run's first index.
type gateEvaluator struct {
	runs      []gatedRun
	runIdx    int
	cancelled bool
}

func newGateEvaluator(subs []*Subscription) *gateEvaluator {
	return &gateEvaluator{runs: gatedRuns(subs)}
}

func (g *gateEvaluator) skip(i int, event Event) bool {
	for g.runIdx < len(g.runs) && i >= g.runs[g.runIdx].end {
		g.runIdx++
	}
	if g.runIdx >= len(g.runs) || i < g.runs[g.runIdx].start {
		return false
	}
	if i == g.runs[g.runIdx].start {
		if c, ok := event.(Cancellable); ok {
			g.cancelled = c.IsCancelled()
		} else {
			g.cancelled = false
		}
	}
	return g.cancelled
}

// dispatchSafe runs every subscriber in order, isolating each call (and
// the post-dispatch hook) behind a recover/error boundary so one handler's
// failure never prevents the rest from running.
func (d *dispatcher) dispatchSafe(logger Logger, event Event) {
	gate := newGateEvaluator(d.subs)
	for i, s := range d.subs {
		if gate.skip(i, event) {
			continue
		}
		invokeSafe(logger, d.eventType, s, event)
	}
	invokePostDispatchSafe(logger, d.eventType, event)
}

// dispatchUnsafe runs every subscriber in order with no per-call isolation:
// the first error returned propagates out immediately, skipping later
// subscribers and the post-dispatch hook.
func (d *dispatcher) dispatchUnsafe(event Event) error {
	gate := newGateEvaluator(d.subs)
	for i, s := range d.subs {
		if gate.skip(i, event) {
			continue
		}
		if err := s.invoke(s.owner, event); err != nil {
			return fmt.Errorf("handler %s for %s: %w", s.label, d.eventType, err)
		}
	}
	event.PostDispatch()
	return nil
}

// invokeSafe calls one subscriber, recovering from panics and converting
// both panics and returned errors into a logged, swallowed error.
func invokeSafe(logger Logger, t reflect.Type, s *Subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event handler panicked", "event_type", t.String(), "handler", s.label, "panic", r)
		}
	}()
	if err := s.invoke(s.owner, event); err != nil {
		logger.Error("event handler failed", "event_type", t.String(), "handler", s.label, "error", err)
	}
}

// invokePostDispatchSafe runs the event's post-dispatch hook, isolated the
// same way subscriber calls are.
func invokePostDispatchSafe(logger Logger, t reflect.Type, event Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("post-dispatch hook panicked", "event_type", t.String(), "panic", r)
		}
	}()
	event.PostDispatch()
}

// aggregateBuildErrors combines the per-event-type build errors produced by
// a single Register/Bake call, in the style the teacher's go.mod already
// pulls in multierr for.
func aggregateBuildErrors(errs map[reflect.Type]error) error {
	var combined error
	for t, err := range errs {
		combined = multierr.Append(combined, fmt.Errorf("build dispatcher for %s: %w", t, err))
	}
	return combined
}
