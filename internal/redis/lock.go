package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockStore handles distributed locking in Redis. Sync commits take a
// per-aggregate exclusive lock so concurrent batches from the same
// owner serialize on the revision counter.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// retryInterval is how often a blocked acquire re-attempts SetNX.
const retryInterval = 50 * time.Millisecond

// AcquireAggregateLock attempts to acquire the exclusive lock for one
// aggregate, waiting up to maxWait. Returns true if the lock was
// acquired, false if the wait budget ran out.
func (s *LockStore) AcquireAggregateLock(ctx context.Context, ownerID, aggregateKey string, ttl, maxWait time.Duration) (bool, error) {
	key := aggregateLockKey(ownerID, aggregateKey)
	deadline := time.Now().Add(maxWait)

	for {
		ok, err := s.client.SetNX(ctx, key, "1", ttl).Result()
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if time.Now().Add(retryInterval).After(deadline) {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

// ReleaseAggregateLock releases the lock for the given aggregate.
func (s *LockStore) ReleaseAggregateLock(ctx context.Context, ownerID, aggregateKey string) error {
	return s.client.Del(ctx, aggregateLockKey(ownerID, aggregateKey)).Err()
}

func aggregateLockKey(ownerID, aggregateKey string) string {
	return fmt.Sprintf("lock:aggregate:%s:%s", ownerID, aggregateKey)
}
