// Package lock serializes concurrent mutations of the same land record or
// resource tract. Keys are acquired all at once, in a fixed order, so two
// registrars locking overlapping key sets cannot deadlock.
package lock

import (
	"context"
	"slices"
	"sync"
	"time"

	dErrors "landreg/pkg/domain-errors"
)

// Locker acquires a set of keys and returns a release function.
type Locker interface {
	LockAll(ctx context.Context, keys ...string) (release func(), err error)
}

// The Key functions namespace lock keys by aggregate.
func RecordKey(id string) string      { return "landrecord:" + id }
func ResourceKey(id string) string    { return "resource:" + id }
func CertificateKey(id string) string { return "certificate:" + id }
func TransactionKey(id string) string {
	return "transaction:" + id
}

const (
	numShards          = 128
	defaultLockTimeout = 5 * time.Second
)

// Sharded is the in-process Locker. Keys hash onto a fixed array of
// mutexes; shards are taken in ascending order.
type Sharded struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

// NewSharded returns an in-process locker.
func NewSharded() *Sharded {
	return &Sharded{timeout: defaultLockTimeout}
}

func (l *Sharded) LockAll(ctx context.Context, keys ...string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "lock aborted: context cancelled")
	}

	idx := make([]int, 0, len(keys))
	for _, k := range keys {
		idx = append(idx, int(hashString(k)%numShards))
	}
	slices.Sort(idx)
	idx = slices.Compact(idx)

	for _, i := range idx {
		l.shards[i].Lock()
	}
	release := func() {
		for j := len(idx) - 1; j >= 0; j-- {
			l.shards[idx[j]].Unlock()
		}
	}

	if err := ctx.Err(); err != nil {
		release()
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "lock aborted: context cancelled")
	}
	return release, nil
}

// hashString is FNV-1a.
func hashString(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
