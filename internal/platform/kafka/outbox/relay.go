// Package outbox relays rows from the outbox table to Kafka.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"landreg/pkg/platform/circuit"
	txcontext "landreg/pkg/platform/tx"
)

// Publisher is satisfied by kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// Entry is one pending outbox row.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Relay polls unpublished outbox rows, publishes them and marks them sent.
type Relay struct {
	db        *sql.DB
	publisher Publisher
	topicFor  func(Entry) string
	breaker   *circuit.Breaker
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

type Option func(*Relay)

func WithInterval(d time.Duration) Option {
	return func(r *Relay) { r.interval = d }
}

func WithBatchSize(n int) Option {
	return func(r *Relay) { r.batchSize = n }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

// WithTopicFunc routes entries to topics. The default routes by the
// payload category as "<prefix>.<category>".
func WithTopicFunc(fn func(Entry) string) Option {
	return func(r *Relay) { r.topicFor = fn }
}

// New creates a relay publishing with publisher.
func New(db *sql.DB, publisher Publisher, topicPrefix string, opts ...Option) *Relay {
	r := &Relay{
		db:        db,
		publisher: publisher,
		topicFor:  CategoryTopic(topicPrefix),
		breaker:   circuit.New("outbox_relay", circuit.WithFailureThreshold(3)),
		logger:    slog.Default(),
		interval:  time.Second,
		batchSize: 100,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CategoryTopic returns a topic router reading the "category" payload field.
func CategoryTopic(prefix string) func(Entry) string {
	return func(e Entry) string {
		var p struct {
			Category string `json:"category"`
		}
		if err := json.Unmarshal(e.Payload, &p); err != nil || p.Category == "" {
			return prefix + ".operations"
		}
		return prefix + "." + p.Category
	}
}

// Run relays until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.RelayBatch(ctx); err != nil {
				r.logger.WarnContext(ctx, "outbox relay batch failed", "error", err)
			}
		}
	}
}

// RelayBatch publishes one batch inside a transaction and returns how many
// rows were marked published. Rows are locked with SKIP LOCKED so several
// relays can run side by side.
func (r *Relay) RelayBatch(ctx context.Context) (int, error) {
	sent := 0
	err := txcontext.Run(ctx, r.db, func(ctx context.Context) error {
		entries, err := r.pending(ctx)
		if err != nil {
			return err
		}
		exec := txcontext.Exec(ctx, r.db)
		for _, e := range entries {
			if err := r.publisher.Publish(ctx, r.topicFor(e), []byte(e.ID.String()), e.Payload,
				map[string]string{"event_type": e.EventType, "aggregate_type": e.AggregateType}); err != nil {
				if _, change := r.breaker.RecordFailure(); change.Opened {
					r.logger.ErrorContext(ctx, "outbox relay circuit opened", "error", err)
				}
				break
			}
			r.breaker.RecordSuccess()
			if _, err := exec.ExecContext(ctx,
				`UPDATE outbox SET published_at = $1 WHERE id = $2`, time.Now(), e.ID); err != nil {
				return fmt.Errorf("mark outbox entry published: %w", err)
			}
			sent++
		}
		return nil
	})
	return sent, err
}

func (r *Relay) pending(ctx context.Context) ([]Entry, error) {
	rows, err := txcontext.Exec(ctx, r.db).QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, r.batchSize)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
