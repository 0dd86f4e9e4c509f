//go:build integration

package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	audit "landreg/pkg/platform/audit"
	auditpostgres "landreg/pkg/platform/audit/store/postgres"
	"landreg/pkg/testutil/containers"
)

type published struct {
	topic   string
	headers map[string]string
}

type fakePublisher struct {
	mu   sync.Mutex
	err  error
	sent []published
}

func (p *fakePublisher) Publish(_ context.Context, topic string, _, _ []byte, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{topic: topic, headers: headers})
	return nil
}

type RelaySuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	audit *auditpostgres.Store
	ctx   context.Context
}

func TestRelaySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.audit = auditpostgres.New(s.pg.DB)
	s.ctx = context.Background()
}

func (s *RelaySuite) SetupTest() {
	s.Require().NoError(s.pg.Reset(s.ctx))
}

func (s *RelaySuite) appendEvents(actions ...audit.AuditEvent) {
	for _, action := range actions {
		s.Require().NoError(s.audit.Append(s.ctx, audit.Event{
			Timestamp:     time.Now(),
			AggregateType: "land_record",
			AggregateID:   "RP-26-000001-K",
			Subject:       "RP-26-000001-K",
			Action:        string(action),
		}))
	}
}

func (s *RelaySuite) unpublished() int {
	var n int
	s.Require().NoError(s.pg.DB.QueryRowContext(s.ctx,
		`SELECT count(*) FROM outbox WHERE published_at IS NULL`).Scan(&n))
	return n
}

func (s *RelaySuite) TestRelayBatch() {
	s.Run("publishes pending rows to their category topics", func() {
		s.Require().NoError(s.pg.Reset(s.ctx))
		s.appendEvents(audit.EventLandRecordClosed, audit.EventIntegrityViolation, audit.EventWorkflowTransition)
		publisher := &fakePublisher{}
		relay := New(s.pg.DB, publisher, "landreg.audit")

		sent, err := relay.RelayBatch(s.ctx)
		s.Require().NoError(err)
		s.Equal(3, sent)
		s.Zero(s.unpublished())

		topics := make([]string, 0, len(publisher.sent))
		for _, p := range publisher.sent {
			topics = append(topics, p.topic)
			s.Equal("land_record", p.headers["aggregate_type"])
		}
		s.ElementsMatch([]string{
			"landreg.audit.compliance", "landreg.audit.security", "landreg.audit.operations",
		}, topics)

		sent, err = relay.RelayBatch(s.ctx)
		s.Require().NoError(err)
		s.Zero(sent)
	})

	s.Run("leaves rows pending when the broker rejects them", func() {
		s.Require().NoError(s.pg.Reset(s.ctx))
		s.appendEvents(audit.EventCertificateIssued, audit.EventPaymentRegistered)
		publisher := &fakePublisher{err: errors.New("broker unavailable")}
		relay := New(s.pg.DB, publisher, "landreg.audit")

		sent, err := relay.RelayBatch(s.ctx)
		s.Require().NoError(err)
		s.Zero(sent)
		s.Equal(2, s.unpublished())

		publisher.err = nil
		sent, err = relay.RelayBatch(s.ctx)
		s.Require().NoError(err)
		s.Equal(2, sent)
		s.Zero(s.unpublished())
	})

	s.Run("respects the batch size", func() {
		s.Require().NoError(s.pg.Reset(s.ctx))
		s.appendEvents(audit.EventRecordingActAdded, audit.EventRecordingActAdded, audit.EventRecordingActAdded)
		relay := New(s.pg.DB, &fakePublisher{}, "landreg.audit", WithBatchSize(2))

		sent, err := relay.RelayBatch(s.ctx)
		s.Require().NoError(err)
		s.Equal(2, sent)
		s.Equal(1, s.unpublished())
	})
}
