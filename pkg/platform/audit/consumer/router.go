// Package consumer turns audit events relayed through Kafka back into
// queryable rows.
package consumer

import (
	"context"
	"log/slog"
	"strings"

	"landreg/internal/platform/kafka/consumer"
	audit "landreg/pkg/platform/audit"
)

// TopicHandler handles the messages of one audit category.
type TopicHandler interface {
	Handle(ctx context.Context, msg *consumer.Message) error
}

// Router dispatches messages by the category suffix of their topic:
// "<prefix>.compliance" goes to the compliance handler.
type Router struct {
	prefix   string
	handlers map[audit.EventCategory]TopicHandler
	logger   *slog.Logger
}

// NewRouter routes topics named "<prefix>.<category>". A nil logger uses
// slog.Default.
func NewRouter(prefix string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		prefix:   prefix,
		handlers: make(map[audit.EventCategory]TopicHandler),
		logger:   logger,
	}
}

// Register routes one category to handler.
func (r *Router) Register(category audit.EventCategory, handler TopicHandler) {
	r.handlers[category] = handler
}

// Topics lists the topics of every registered category.
func (r *Router) Topics() []string {
	topics := make([]string, 0, len(r.handlers))
	for _, c := range []audit.EventCategory{audit.CategoryCompliance, audit.CategorySecurity, audit.CategoryOperations} {
		if _, ok := r.handlers[c]; ok {
			topics = append(topics, r.Topic(c))
		}
	}
	return topics
}

// Topic is the topic name of a category.
func (r *Router) Topic(category audit.EventCategory) string {
	return r.prefix + "." + string(category)
}

// Handle routes the message. Messages from unknown topics are committed so
// they do not block the partition.
func (r *Router) Handle(ctx context.Context, msg *consumer.Message) error {
	category, ok := strings.CutPrefix(msg.Topic, r.prefix+".")
	handler, found := r.handlers[audit.EventCategory(category)]
	if !ok || !found {
		r.logger.WarnContext(ctx, "no handler for audit topic, skipping message",
			"topic", msg.Topic,
			"key", string(msg.Key),
		)
		return nil
	}
	return handler.Handle(ctx, msg)
}
