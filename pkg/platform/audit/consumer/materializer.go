package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"landreg/internal/platform/kafka/consumer"
	audit "landreg/pkg/platform/audit"
	"landreg/pkg/platform/audit/store/postgres"
)

// EventStore materializes relayed events for querying.
type EventStore interface {
	AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error
}

// Materializer writes audit events consumed from Kafka into audit_events.
type Materializer struct {
	store  EventStore
	logger *slog.Logger
}

func NewMaterializer(store EventStore, logger *slog.Logger) *Materializer {
	return &Materializer{store: store, logger: logger}
}

// Handle stores one event. Malformed messages are logged and committed.
func (h *Materializer) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, err := uuid.Parse(string(msg.Key))
	if err != nil {
		h.logger.Error("failed to parse audit event ID",
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}

	var payload postgres.Payload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Error("failed to unmarshal audit payload",
			"event_id", eventID,
			"error", err,
		)
		return nil
	}

	event := payload.ToEvent()
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if err := h.store.AppendWithID(ctx, eventID, event); err != nil {
		return fmt.Errorf("store audit event: %w", err)
	}

	h.logger.Debug("materialized audit event",
		"event_id", eventID,
		"action", event.Action,
		"subject", event.Subject,
	)
	return nil
}
