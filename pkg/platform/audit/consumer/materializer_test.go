package consumer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landreg/internal/platform/kafka/consumer"
	audit "landreg/pkg/platform/audit"
	"landreg/pkg/platform/audit/store/postgres"
)

type recordingStore struct {
	ids    []uuid.UUID
	events []audit.Event
}

func (s *recordingStore) AppendWithID(_ context.Context, eventID uuid.UUID, event audit.Event) error {
	s.ids = append(s.ids, eventID)
	s.events = append(s.events, event)
	return nil
}

func TestMaterializer_Handle(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("stores decoded event", func(t *testing.T) {
		store := &recordingStore{}
		h := NewMaterializer(store, logger)
		eventID := uuid.New()
		value, err := json.Marshal(postgres.Payload{
			ID:       eventID.String(),
			Category: "compliance",
			Subject:  "RP-9",
			Action:   string(audit.EventLandRecordClosed),
		})
		require.NoError(t, err)

		err = h.Handle(context.Background(), &consumer.Message{Key: []byte(eventID.String()), Value: value})
		require.NoError(t, err)
		require.Len(t, store.events, 1)
		assert.Equal(t, eventID, store.ids[0])
		assert.Equal(t, "RP-9", store.events[0].Subject)
		assert.Equal(t, audit.CategoryCompliance, store.events[0].Category)
	})

	t.Run("skips malformed key", func(t *testing.T) {
		store := &recordingStore{}
		h := NewMaterializer(store, logger)
		err := h.Handle(context.Background(), &consumer.Message{Key: []byte("nope"), Value: []byte("{}")})
		require.NoError(t, err)
		assert.Empty(t, store.events)
	})

	t.Run("router delivers category topics to the materializer", func(t *testing.T) {
		store := &recordingStore{}
		r := NewRouter("landreg.audit", logger)
		r.Register(audit.CategoryCompliance, NewMaterializer(store, logger))

		eventID := uuid.New()
		value, err := json.Marshal(postgres.Payload{
			ID:       eventID.String(),
			Category: "compliance",
			Subject:  "CE-26-000001-Q",
			Action:   string(audit.EventCertificateIssued),
		})
		require.NoError(t, err)

		err = r.Handle(context.Background(), &consumer.Message{
			Topic: "landreg.audit.compliance", Key: []byte(eventID.String()), Value: value,
		})
		require.NoError(t, err)
		require.Len(t, store.events, 1)
		assert.Equal(t, "CE-26-000001-Q", store.events[0].Subject)

		err = r.Handle(context.Background(), &consumer.Message{Topic: "other", Value: value})
		require.NoError(t, err)
		assert.Len(t, store.events, 1)
	})
}
