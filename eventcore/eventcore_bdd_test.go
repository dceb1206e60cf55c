package eventcore

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cucumber/godog"
)

// captureLogger records Error log lines so BDD steps can assert against what
// the bus actually logged. UnsafeDispatch never returns a handler's error or
// panic to its caller (spec.md §7: "unsafeDispatch guarantees at most one
// logged error per call") — the log line is the only observable trace of a
// failure, so steps that need to assert on it go through this logger
// instead of NoopLogger.
type captureLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *captureLogger) Info(string, ...any)  {}
func (l *captureLogger) Warn(string, ...any)  {}
func (l *captureLogger) Debug(string, ...any) {}

func (l *captureLogger) Error(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf("%s %v", msg, args))
}

func (l *captureLogger) lastError() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.errors) == 0 {
		return ""
	}
	return l.errors[len(l.errors)-1]
}

// LifecycleEvent is the base event interface used to exercise hierarchical
// (ancestor) dispatch: a subscriber bound to LifecycleEvent must also
// receive any concrete event embedding it.
type LifecycleEvent interface {
	Event
	Lifecycle() string
}

// baseLifecycle gives a concrete event type LifecycleEvent via embedding,
// the same way a Go struct gains an ancestor's methods through promotion.
type baseLifecycle struct{ NoopPostDispatch }

func (baseLifecycle) Lifecycle() string { return "created" }

// widgetCreated is the concrete event type dispatched in every scenario.
type widgetCreated struct {
	baseLifecycle
	cancelled bool
}

func (w widgetCreated) IsCancelled() bool { return w.cancelled }

// probeSubscriber is a reflective-discovery target: its single On* method
// is a handler for the concrete widgetCreated type. Tests construct one
// probe per labeled step and use SubscriberOptions to pin down the
// order/ignoreCancelled the scenario asks for, the same hook a real
// subscriber uses to override the reflective default.
type probeSubscriber struct {
	label           string
	panics          bool
	failWith        string
	order           PostOrder
	ignoreCancelled bool
	record          *[]string
	mu              *sync.Mutex
}

func (p *probeSubscriber) OnWidgetCreated(widgetCreated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.panics {
		panic("probe panic: " + p.label)
	}
	if p.failWith != "" {
		return fmt.Errorf("%s", p.failWith)
	}
	*p.record = append(*p.record, p.label)
	return nil
}

func (p *probeSubscriber) EventSubscriptionOptions() map[string]HandlerOptions {
	return map[string]HandlerOptions{
		"OnWidgetCreated": {Order: p.order, IgnoreCancelled: p.ignoreCancelled},
	}
}

// baseProbeSubscriber declares a handler against the base LifecycleEvent
// interface rather than the concrete widgetCreated type, exercising the
// ancestor fan-out that lets a base-type subscriber receive any subtype
// event (spec.md §8 scenario 4).
type baseProbeSubscriber struct {
	label  string
	record *[]string
	mu     *sync.Mutex
}

func (p *baseProbeSubscriber) OnLifecycleEvent(LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	*p.record = append(*p.record, p.label)
	return nil
}

type eventcoreBDDContext struct {
	bus       *Bus
	logger    *captureLogger
	fired     []string
	mu        sync.Mutex
	lastErr   error
	taggedSub map[string]*Subscription
}

func (c *eventcoreBDDContext) reset() {
	c.logger = &captureLogger{}
	c.bus = NewBus(c.logger)
	c.fired = nil
	c.lastErr = nil
	c.taggedSub = make(map[string]*Subscription)
}

func (c *eventcoreBDDContext) iHaveAFreshBus() error {
	c.reset()
	return nil
}

func (c *eventcoreBDDContext) aProbeSubscriberRegisteredWithOrderLabeled(order, label string) error {
	return c.registerProbe(label, "", order, false, false)
}

func (c *eventcoreBDDContext) aProbeSubscriberRegisteredWithOrderIgnoringCancellationLabeled(order, label string) error {
	return c.registerProbe(label, "", order, true, false)
}

func (c *eventcoreBDDContext) aProbeSubscriberBoundToTheBaseEventTypeLabeled(label string) error {
	p := &baseProbeSubscriber{label: label, record: &c.fired, mu: &c.mu}
	_, err := c.bus.Register("default", p)
	return err
}

func (c *eventcoreBDDContext) aProbeSubscriberThatPanicsLabeled(label string) error {
	return c.registerProbe(label, "", "NORMAL", false, true)
}

func (c *eventcoreBDDContext) aProbeSubscriberThatFailsWithLabeled(reason, label string) error {
	p := &probeSubscriber{label: label, failWith: reason, record: &c.fired, mu: &c.mu}
	_, err := c.bus.Register("default", p)
	return err
}

func (c *eventcoreBDDContext) aProbeSubscriberInNamespaceLabeled(namespace, label string) error {
	return c.registerProbe(label, namespace, "NORMAL", false, false)
}

func (c *eventcoreBDDContext) registerProbe(label, namespace, order string, ignoreCancelled, panics bool) error {
	if namespace == "" {
		namespace = "default"
	}
	p := &probeSubscriber{
		label:           label,
		panics:          panics,
		order:           ParseOrder(order),
		ignoreCancelled: ignoreCancelled,
		record:          &c.fired,
		mu:              &c.mu,
	}
	subs, err := c.bus.Register(namespace, p)
	if err != nil {
		return err
	}
	for _, s := range subs {
		c.taggedSub[label] = s
	}
	return nil
}

func (c *eventcoreBDDContext) iDispatchAWidgetCreatedEvent() error {
	c.bus.Dispatch(widgetCreated{})
	return nil
}

func (c *eventcoreBDDContext) iDispatchACancelledWidgetCreatedEvent() error {
	c.bus.Dispatch(widgetCreated{cancelled: true})
	return nil
}

func (c *eventcoreBDDContext) iUnsafeDispatchAWidgetCreatedEvent() error {
	// UnsafeDispatch recovers both a returned handler error and a panicking
	// handler internally and logs exactly one Error line (spec.md §7); it
	// never returns or re-panics, so the only way to observe the failure is
	// through the capture logger wired in reset().
	c.bus.UnsafeDispatch(widgetCreated{})
	c.mu.Lock()
	if last := c.logger.lastError(); last != "" {
		c.lastErr = errors.New(last)
	} else {
		c.lastErr = nil
	}
	c.mu.Unlock()
	return nil
}

func (c *eventcoreBDDContext) iUnregisterNamespace(namespace string) error {
	c.bus.UnregisterAllByNamespace(namespace)
	return nil
}

func (c *eventcoreBDDContext) iBakeTheBus() error {
	return c.bus.Bake()
}

func (c *eventcoreBDDContext) theProbesShouldHaveFiredInOrder(expected string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var want []string
	if expected != "" {
		want = strings.Split(expected, ",")
	}
	if len(want) != len(c.fired) {
		return fmt.Errorf("expected fired order %v, got %v", want, c.fired)
	}
	for i := range want {
		if want[i] != c.fired[i] {
			return fmt.Errorf("expected fired order %v, got %v", want, c.fired)
		}
	}
	return nil
}

func (c *eventcoreBDDContext) noErrorShouldHaveBeenRaised() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastErr != nil {
		return fmt.Errorf("expected no error, got %v", c.lastErr)
	}
	return nil
}

func (c *eventcoreBDDContext) theDispatchErrorShouldContain(substr string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastErr == nil || !strings.Contains(c.lastErr.Error(), substr) {
		return fmt.Errorf("expected dispatch error containing %q, got %v", substr, c.lastErr)
	}
	return nil
}

// TestEventcoreBDD runs the Gherkin-driven scenarios against the bus.
func TestEventcoreBDD(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			c := &eventcoreBDDContext{}

			ctx.Given(`^I have a fresh bus$`, c.iHaveAFreshBus)
			ctx.Given(`^a probe subscriber registered with order "([^"]*)" labeled "([^"]*)"$`, c.aProbeSubscriberRegisteredWithOrderLabeled)
			ctx.Given(`^a probe subscriber registered with order "([^"]*)" ignoring cancellation labeled "([^"]*)"$`, c.aProbeSubscriberRegisteredWithOrderIgnoringCancellationLabeled)
			ctx.Given(`^a probe subscriber bound to the base event type labeled "([^"]*)"$`, c.aProbeSubscriberBoundToTheBaseEventTypeLabeled)
			ctx.Given(`^a probe subscriber that panics labeled "([^"]*)"$`, c.aProbeSubscriberThatPanicsLabeled)
			ctx.Given(`^a probe subscriber that fails with "([^"]*)" labeled "([^"]*)"$`, c.aProbeSubscriberThatFailsWithLabeled)
			ctx.Given(`^a probe subscriber in namespace "([^"]*)" labeled "([^"]*)"$`, c.aProbeSubscriberInNamespaceLabeled)

			ctx.When(`^I dispatch a widget created event$`, c.iDispatchAWidgetCreatedEvent)
			ctx.When(`^I dispatch a cancelled widget created event$`, c.iDispatchACancelledWidgetCreatedEvent)
			ctx.When(`^I unsafe dispatch a widget created event$`, c.iUnsafeDispatchAWidgetCreatedEvent)
			ctx.When(`^I unregister namespace "([^"]*)"$`, c.iUnregisterNamespace)
			ctx.When(`^I bake the bus$`, c.iBakeTheBus)

			ctx.Then(`^the probes should have fired in order "([^"]*)"$`, c.theProbesShouldHaveFiredInOrder)
			ctx.Then(`^no error should have been raised$`, c.noErrorShouldHaveBeenRaised)
			ctx.Then(`^the dispatch error should contain "([^"]*)"$`, c.theDispatchErrorShouldContain)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
