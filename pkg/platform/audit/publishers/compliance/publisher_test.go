package compliance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "landreg/pkg/domain"
	audit "landreg/pkg/platform/audit"
	"landreg/pkg/platform/audit/store/memory"
	"landreg/pkg/requestcontext"
)

type failingStore struct {
	audit.Store
}

func (failingStore) Append(context.Context, audit.Event) error {
	return errors.New("outbox unavailable")
}

func TestPublisher_Emit(t *testing.T) {
	t.Run("persists and categorizes event", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		pub := New(store)

		err := pub.Emit(context.Background(), audit.Event{
			Action:  string(audit.EventLandRecordClosed),
			Subject: "RP-00001",
		})
		require.NoError(t, err)

		events, err := store.ListBySubject(context.Background(), "RP-00001")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, audit.CategoryCompliance, events[0].Category)
		assert.False(t, events[0].Timestamp.IsZero())
	})

	t.Run("requires action and subject", func(t *testing.T) {
		pub := New(memory.NewInMemoryStore())
		assert.Error(t, pub.Emit(context.Background(), audit.Event{Subject: "RP-1"}))
		assert.Error(t, pub.Emit(context.Background(), audit.Event{Action: "x"}))
	})

	t.Run("fails closed when store fails", func(t *testing.T) {
		pub := New(failingStore{})
		err := pub.Emit(context.Background(), audit.Event{
			Action:  string(audit.EventLandRecordSigned),
			Subject: "RP-1",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "compliance audit persistence failed")
	})

	t.Run("rejects routine activity", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		pub := New(store)
		err := pub.Emit(context.Background(), audit.Event{
			Action:  string(audit.EventWorkflowTransition),
			Subject: "TR-1",
		})
		require.Error(t, err)
		events, _ := store.ListRecent(context.Background(), 10)
		assert.Empty(t, events)
	})

	t.Run("fills actor and request from the context", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		pub := New(store)
		user := id.UserID(uuid.New())
		at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
		ctx := requestcontext.WithRequestID(requestcontext.WithUserID(context.Background(), user), "req-7")
		ctx = requestcontext.WithTime(ctx, at)

		require.NoError(t, pub.Emit(ctx, audit.Event{
			Action:  string(audit.EventIntegrityViolation),
			Subject: "RP-9",
		}))
		events, err := store.ListBySubject(context.Background(), "RP-9")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, audit.CategorySecurity, events[0].Category)
		assert.Equal(t, user, events[0].ActorID)
		assert.Equal(t, "req-7", events[0].RequestID)
		assert.Equal(t, at, events[0].Timestamp)
	})
}
