package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landreg/internal/platform/kafka/consumer"
	audit "landreg/pkg/platform/audit"
)

type countingHandler struct {
	topics []string
	err    error
}

func (h *countingHandler) Handle(_ context.Context, msg *consumer.Message) error {
	h.topics = append(h.topics, msg.Topic)
	return h.err
}

func TestRouter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("routes by category suffix", func(t *testing.T) {
		compliance, security := &countingHandler{}, &countingHandler{}
		r := NewRouter("landreg.audit", logger)
		r.Register(audit.CategoryCompliance, compliance)
		r.Register(audit.CategorySecurity, security)

		require.NoError(t, r.Handle(context.Background(), &consumer.Message{Topic: "landreg.audit.security"}))
		require.NoError(t, r.Handle(context.Background(), &consumer.Message{Topic: "landreg.audit.compliance"}))
		assert.Equal(t, []string{"landreg.audit.compliance"}, compliance.topics)
		assert.Equal(t, []string{"landreg.audit.security"}, security.topics)
		assert.Equal(t, []string{"landreg.audit.compliance", "landreg.audit.security"}, r.Topics())
	})

	t.Run("skips unknown topics", func(t *testing.T) {
		h := &countingHandler{}
		r := NewRouter("landreg.audit", logger)
		r.Register(audit.CategoryOperations, h)

		assert.NoError(t, r.Handle(context.Background(), &consumer.Message{Topic: "landreg.audit.compliance"}))
		assert.NoError(t, r.Handle(context.Background(), &consumer.Message{Topic: "other.operations"}))
		assert.Empty(t, h.topics)
	})

	t.Run("handler errors leave the message uncommitted", func(t *testing.T) {
		h := &countingHandler{err: errors.New("database down")}
		r := NewRouter("landreg.audit", logger)
		r.Register(audit.CategoryOperations, h)
		assert.Error(t, r.Handle(context.Background(), &consumer.Message{Topic: r.Topic(audit.CategoryOperations)}))
	})

	t.Run("nil logger falls back to the default", func(t *testing.T) {
		r := NewRouter("landreg.audit", nil)
		assert.NotPanics(t, func() {
			assert.NoError(t, r.Handle(context.Background(), &consumer.Message{Topic: "unknown"}))
		})
	})
}
