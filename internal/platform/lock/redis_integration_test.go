//go:build integration

package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"landreg/pkg/platform/sentinel"
	"landreg/pkg/testutil/containers"
)

type RedisLockSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisLockSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLockSuite))
}

func (s *RedisLockSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *RedisLockSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLockSuite) TestLockAll() {
	l := NewRedis(s.redis.Client, time.Second)

	s.Run("second holder waits until release", func() {
		release, err := l.LockAll(context.Background(), RecordKey("r1"), ResourceKey("p1"))
		s.Require().NoError(err)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_, err = l.LockAll(ctx, ResourceKey("p1"))
		s.True(errors.Is(err, sentinel.ErrLocked))

		release()
		release2, err := l.LockAll(context.Background(), ResourceKey("p1"))
		s.Require().NoError(err)
		release2()
	})

	s.Run("release does not delete a key taken over after expiry", func() {
		short := NewRedis(s.redis.Client, 50*time.Millisecond)
		release, err := short.LockAll(context.Background(), RecordKey("r2"))
		s.Require().NoError(err)
		time.Sleep(80 * time.Millisecond)

		release2, err := l.LockAll(context.Background(), RecordKey("r2"))
		s.Require().NoError(err)
		release()

		exists, err := s.redis.Client.Exists(context.Background(), "landreg:lock:"+RecordKey("r2")).Result()
		s.Require().NoError(err)
		s.Equal(int64(1), exists)
		release2()
	})
}
