package ops

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "landreg/pkg/platform/audit"
	"landreg/pkg/platform/audit/store/memory"
	"landreg/pkg/platform/circuit"
)

type countingFailStore struct {
	audit.Store
	calls atomic.Int32
}

func (s *countingFailStore) Append(context.Context, audit.Event) error {
	s.calls.Add(1)
	return errors.New("down")
}

func TestTracker_DrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	tracker := New(store, WithBufferSize(32))

	for range 10 {
		tracker.Track(audit.Event{Action: string(audit.EventWorkflowTransition), Subject: "T-1"})
	}
	tracker.Close()

	events, err := store.ListBySubject(context.Background(), "T-1")
	require.NoError(t, err)
	assert.Len(t, events, 10)
	assert.Equal(t, audit.CategoryOperations, events[0].Category)
}

func TestTracker_OpenCircuitDropsEvents(t *testing.T) {
	store := &countingFailStore{}
	tracker := New(store,
		WithBreaker(circuit.New("test", circuit.WithFailureThreshold(2))),
	)

	for range 6 {
		tracker.Track(audit.Event{Action: string(audit.EventWorkflowAssigned), Subject: "T-2"})
	}
	tracker.Close()

	assert.Equal(t, int32(2), store.calls.Load())
}
