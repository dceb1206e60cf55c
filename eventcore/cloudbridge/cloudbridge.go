// Package cloudbridge adapts inbound CloudEvents (github.com/cloudevents/sdk-go/v2)
// onto an eventcore.Bus. It is grounded in the teacher framework's own
// observer_cloudevents.go and the CloudEvents-style event type constants
// used by its eventbus module (com.modular.eventbus.*), repurposed from
// "observer notification" into "ingestion adapter for a typed bus".
package cloudbridge

import (
	"context"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/go-eventcore/eventcore/eventcore"
)

// CloudEnvelope wraps one received cloudevents.Event as a concrete
// eventcore.Event. CloudEvents carries its logical type as a runtime
// string attribute (ce.Type()), which has no static Go type to key
// dispatch on; the envelope is therefore the single concrete type every
// bridged CloudEvent dispatches as, and subscribers that care about the
// specific CloudEvents type switch on Type() themselves, the way a
// type-erased wire format is conventionally bridged onto a statically
// typed dispatch core.
type CloudEnvelope struct {
	eventcore.NoopPostDispatch
	ce cloudevents.Event
}

// Type returns the CloudEvents "type" attribute.
func (e CloudEnvelope) Type() string { return e.ce.Type() }

// Source returns the CloudEvents "source" attribute.
func (e CloudEnvelope) Source() string { return e.ce.Source() }

// ID returns the CloudEvents "id" attribute.
func (e CloudEnvelope) ID() string { return e.ce.ID() }

// DataAs decodes the CloudEvents payload into out, delegating to the
// underlying SDK's content-type-aware decoding.
func (e CloudEnvelope) DataAs(out any) error { return e.ce.DataAs(out) }

// Raw returns the underlying cloudevents.Event for callers that need the
// full SDK surface.
func (e CloudEnvelope) Raw() cloudevents.Event { return e.ce }

// Bridge republishes incoming CloudEvents onto an eventcore.Bus as
// CloudEnvelope values.
type Bridge struct {
	bus *eventcore.Bus
}

// New constructs a Bridge over bus.
func New(bus *eventcore.Bus) *Bridge {
	return &Bridge{bus: bus}
}

// Publish wraps ce and dispatches it through the bus's safe path.
func (b *Bridge) Publish(_ context.Context, ce cloudevents.Event) {
	b.bus.Dispatch(CloudEnvelope{ce: ce})
}

// NewEvent constructs an empty CloudEvents event pre-populated with
// source/type, ready for Publish — a small convenience so callers don't
// need to import the SDK themselves just to produce a test event.
func NewEvent(source, ceType string, data any) (cloudevents.Event, error) {
	ce := cloudevents.NewEvent()
	ce.SetSource(source)
	ce.SetType(ceType)
	if data != nil {
		if err := ce.SetData(cloudevents.ApplicationJSON, data); err != nil {
			return cloudevents.Event{}, err
		}
	}
	return ce, nil
}
