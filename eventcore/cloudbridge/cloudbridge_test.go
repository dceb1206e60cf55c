package cloudbridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-eventcore/eventcore/eventcore"
)

type widgetPayload struct {
	Name string `json:"name"`
}

type probe struct {
	received []CloudEnvelope
}

func (p *probe) OnCloudEnvelope(e CloudEnvelope) error {
	p.received = append(p.received, e)
	return nil
}

func TestBridge_PublishDispatchesAsCloudEnvelope(t *testing.T) {
	bus := eventcore.NewBus(eventcore.NoopLogger{})
	p := &probe{}
	_, err := bus.Register("default", p)
	require.NoError(t, err)

	ce, err := NewEvent("test-source", "com.example.widget.created", widgetPayload{Name: "gizmo"})
	require.NoError(t, err)

	New(bus).Publish(context.Background(), ce)

	require.Len(t, p.received, 1)
	assert.Equal(t, "com.example.widget.created", p.received[0].Type())
	assert.Equal(t, "test-source", p.received[0].Source())

	var decoded widgetPayload
	require.NoError(t, p.received[0].DataAs(&decoded))
	assert.Equal(t, "gizmo", decoded.Name)
}

func TestBridge_DifferentCloudEventTypesShareOneConcreteDispatchType(t *testing.T) {
	bus := eventcore.NewBus(eventcore.NoopLogger{})
	p := &probe{}
	_, err := bus.Register("default", p)
	require.NoError(t, err)

	bridge := New(bus)
	created, err := NewEvent("src", "com.example.widget.created", nil)
	require.NoError(t, err)
	deleted, err := NewEvent("src", "com.example.widget.deleted", nil)
	require.NoError(t, err)

	bridge.Publish(context.Background(), created)
	bridge.Publish(context.Background(), deleted)

	require.Len(t, p.received, 2)
	assert.Equal(t, "com.example.widget.created", p.received[0].Type())
	assert.Equal(t, "com.example.widget.deleted", p.received[1].Type())
}
