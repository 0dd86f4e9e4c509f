package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
)

type BreakerSuite struct {
	suite.Suite
}

func TestBreakerSuite(t *testing.T) {
	suite.Run(t, new(BreakerSuite))
}

func (s *BreakerSuite) TestDefaults() {
	b := New("outbox_relay")
	s.Equal("outbox_relay", b.Name())
	s.Equal(StateClosed, b.State())
	s.Equal("closed", b.State().String())

	for range 4 {
		useFallback, _ := b.RecordFailure()
		s.False(useFallback)
	}
	useFallback, change := b.RecordFailure()
	s.True(useFallback)
	s.True(change.Opened)
	s.Equal("open", b.State().String())
}

func (s *BreakerSuite) TestBrokerOutage() {
	s.Run("opens once on the threshold failure", func() {
		b := New("audit_ops", WithFailureThreshold(2))
		_, change := b.RecordFailure()
		s.False(change.Opened)
		_, change = b.RecordFailure()
		s.True(change.Opened)

		useFallback, change := b.RecordFailure()
		s.True(useFallback)
		s.False(change.Opened, "an open breaker does not report opening again")
	})

	s.Run("a success in between resets the failure run", func() {
		b := New("audit_ops", WithFailureThreshold(2))
		b.RecordFailure()
		b.RecordSuccess()
		b.RecordFailure()
		s.False(b.IsOpen())
	})
}

func (s *BreakerSuite) TestRecovery() {
	s.Run("closes after the success run", func() {
		b := New("outbox_relay", WithFailureThreshold(1), WithSuccessThreshold(2))
		b.RecordFailure()
		s.Require().True(b.IsOpen())

		usePrimary, change := b.RecordSuccess()
		s.False(usePrimary)
		s.False(change.Closed)

		usePrimary, change = b.RecordSuccess()
		s.True(usePrimary)
		s.True(change.Closed)
		s.False(b.IsOpen())
	})

	s.Run("a failure while recovering restarts the success run", func() {
		b := New("outbox_relay", WithFailureThreshold(1), WithSuccessThreshold(2))
		b.RecordFailure()
		b.RecordSuccess()
		b.RecordFailure()
		_, change := b.RecordSuccess()
		s.False(change.Closed)
		s.True(b.IsOpen())
	})

	s.Run("reset closes immediately", func() {
		b := New("outbox_relay", WithFailureThreshold(1))
		b.RecordFailure()
		b.Reset()
		s.Equal(StateClosed, b.State())
	})

	s.Run("non-positive thresholds keep the defaults", func() {
		b := New("outbox_relay", WithFailureThreshold(0), WithSuccessThreshold(-1))
		b.RecordFailure()
		s.False(b.IsOpen())
	})
}

func (s *BreakerSuite) TestConcurrentRecording() {
	b := New("audit_ops", WithFailureThreshold(50))
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.RecordFailure()
		}()
	}
	wg.Wait()
	s.True(b.IsOpen())
}
