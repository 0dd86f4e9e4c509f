// Package ops provides a fire-and-forget tracker for routine workflow events.
// Events go through a bounded buffer to a background writer. A full buffer or
// an open circuit drops events instead of blocking the request.
package ops

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "landreg/pkg/platform/audit"
	"landreg/pkg/platform/circuit"
)

const defaultBufferSize = 1024

// Tracker emits operational audit events asynchronously.
type Tracker struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
	breaker *circuit.Breaker
	// openedAt is only touched by the writer goroutine.
	openedAt time.Time
	cooldown time.Duration

	events    chan audit.Event
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option configures the Tracker.
type Option func(*Tracker)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(t *Tracker) { t.breaker = b }
}

// WithCooldown sets how long events are dropped after the circuit opens
// before the next write probes the store.
func WithCooldown(d time.Duration) Option {
	return func(t *Tracker) { t.cooldown = d }
}

func WithBufferSize(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.events = make(chan audit.Event, n)
		}
	}
}

// New starts a tracker writing to store.
func New(store audit.Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:    store,
		logger:   slog.Default(),
		breaker:  circuit.New("audit_ops"),
		events:   make(chan audit.Event, defaultBufferSize),
		cooldown: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.wg.Add(1)
	go t.run()
	return t
}

// Track enqueues event without blocking.
func (t *Tracker) Track(event audit.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Category = audit.CategoryOperations
	select {
	case t.events <- event:
	default:
		if t.metrics != nil {
			t.metrics.BufferDropped.Inc()
		}
	}
}

// Close drains buffered events and stops the writer.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() {
		close(t.events)
	})
	t.wg.Wait()
}

func (t *Tracker) run() {
	defer t.wg.Done()
	for event := range t.events {
		t.write(event)
	}
}

func (t *Tracker) write(event audit.Event) {
	if t.breaker.IsOpen() && time.Since(t.openedAt) < t.cooldown {
		if t.metrics != nil {
			t.metrics.CircuitBreakerDropped.Inc()
		}
		return
	}
	if err := t.persist(event); err != nil && t.metrics != nil {
		t.metrics.PersistFailures.Inc()
	}
}

func (t *Tracker) persist(event audit.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := t.store.Append(ctx, event); err != nil {
		_, change := t.breaker.RecordFailure()
		if change.Opened || t.breaker.IsOpen() {
			t.openedAt = time.Now()
		}
		if change.Opened {
			t.logger.Warn("ops audit circuit opened", "error", err)
			if t.metrics != nil {
				t.metrics.setCircuitState(true)
			}
		}
		return err
	}
	_, change := t.breaker.RecordSuccess()
	if change.Closed {
		t.logger.Info("ops audit circuit closed")
		if t.metrics != nil {
			t.metrics.setCircuitState(false)
		}
	}
	if t.metrics != nil {
		t.metrics.Tracked.Inc()
	}
	return nil
}
