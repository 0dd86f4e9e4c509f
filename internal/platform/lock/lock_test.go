package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharded_LockAll(t *testing.T) {
	t.Run("overlapping key sets serialize", func(t *testing.T) {
		l := NewSharded()
		var (
			mu      sync.Mutex
			active  int
			maxSeen int
			wg      sync.WaitGroup
		)
		for i := range 20 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				keys := []string{RecordKey("r1"), ResourceKey("p1")}
				if i%2 == 0 {
					keys = []string{ResourceKey("p1"), RecordKey("r1")}
				}
				release, err := l.LockAll(context.Background(), keys...)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				active++
				maxSeen = max(maxSeen, active)
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				release()
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, maxSeen)
	})

	t.Run("same key twice does not self-deadlock", func(t *testing.T) {
		l := NewSharded()
		release, err := l.LockAll(context.Background(), RecordKey("a"), RecordKey("a"))
		require.NoError(t, err)
		release()
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewSharded().LockAll(ctx, RecordKey("a"))
		require.Error(t, err)
	})
}
