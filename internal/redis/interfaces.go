package redis

import (
	"context"
	"time"
)

// LockStoreInterface defines the interface for aggregate locking.
type LockStoreInterface interface {
	AcquireAggregateLock(ctx context.Context, ownerID, aggregateKey string, ttl, maxWait time.Duration) (bool, error)
	ReleaseAggregateLock(ctx context.Context, ownerID, aggregateKey string) error
}

// OTPStoreInterface defines the interface for one-time code storage.
type OTPStoreInterface interface {
	Put(ctx context.Context, phone, code string) error
	Verify(ctx context.Context, phone, code string) (bool, error)
}

// SyncStatusStoreInterface defines the interface for the per-owner
// sync status cache.
type SyncStatusStoreInterface interface {
	Get(ctx context.Context, ownerID string) (*OwnerSyncStatus, error)
	Set(ctx context.Context, ownerID string, status *OwnerSyncStatus) error
}

// Ensure concrete types implement interfaces.
var (
	_ LockStoreInterface       = (*LockStore)(nil)
	_ OTPStoreInterface        = (*OTPStore)(nil)
	_ SyncStatusStoreInterface = (*SyncStatusStore)(nil)
)
