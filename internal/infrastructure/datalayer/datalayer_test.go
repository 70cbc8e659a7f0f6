package datalayer_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convertrack/convertrack-go/internal/domain/events"
	"github.com/convertrack/convertrack-go/internal/infrastructure/datalayer"
)

func TestDataLayer_PushAndSnapshot(t *testing.T) {
	dl := datalayer.New(10, nil)

	for i := 0; i < 3; i++ {
		dl.Push(events.Envelope{Event: fmt.Sprintf("e%d", i)})
	}

	assert.Equal(t, 3, dl.Len())

	snap := dl.Snapshot(2)
	require.Len(t, snap, 2)
	assert.Equal(t, "e1", snap[0].Event)
	assert.Equal(t, "e2", snap[1].Event)

	// Zero or oversized n returns everything.
	assert.Len(t, dl.Snapshot(0), 3)
	assert.Len(t, dl.Snapshot(100), 3)
}

func TestDataLayer_CapsRetention(t *testing.T) {
	dl := datalayer.New(5, nil)

	for i := 0; i < 20; i++ {
		dl.Push(events.Envelope{Event: fmt.Sprintf("e%d", i)})
	}

	assert.Equal(t, 5, dl.Len())
	snap := dl.Snapshot(5)
	assert.Equal(t, "e15", snap[0].Event)
	assert.Equal(t, "e19", snap[4].Event)
}

func TestDataLayer_ConsumerOrdering(t *testing.T) {
	dl := datalayer.New(10, nil)

	var seen []string
	dl.Subscribe(func(ev events.Envelope) {
		seen = append(seen, ev.Event)
	})

	dl.Push(events.Envelope{Event: "first"})
	dl.Push(events.Envelope{Event: "second"})

	assert.Equal(t, []string{"first", "second"}, seen)
}

func TestDataLayer_PanickingConsumerIsContained(t *testing.T) {
	dl := datalayer.New(10, nil)

	var survived []string
	dl.Subscribe(func(ev events.Envelope) {
		panic("boom")
	})
	dl.Subscribe(func(ev events.Envelope) {
		survived = append(survived, ev.Event)
	})

	require.NotPanics(t, func() {
		dl.Push(events.Envelope{Event: "e1"})
	})

	// Sequence append and the second consumer both survived.
	assert.Equal(t, 1, dl.Len())
	assert.Equal(t, []string{"e1"}, survived)
}
