package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// SyncStatusStore caches per-owner sync state in Redis so the status
// endpoint never touches Postgres for the common poll.
type SyncStatusStore struct {
	client *redis.Client
}

// NewSyncStatusStore creates a new SyncStatusStore.
func NewSyncStatusStore(client *redis.Client) *SyncStatusStore {
	return &SyncStatusStore{client: client}
}

// Status entries outlive any reasonable client poll interval but still
// expire for owners that stop syncing.
const syncStatusTTL = 30 * 24 * time.Hour

const syncStatusPrefix = "sync:status:"

// OwnerSyncStatus is the cached record for one owner.
type OwnerSyncStatus struct {
	LastSyncAt time.Time `json:"last_sync_at"`
	ClientID   string    `json:"client_id"`
}

// Get retrieves an owner's cached sync status. Returns nil on a miss.
func (s *SyncStatusStore) Get(ctx context.Context, ownerID string) (*OwnerSyncStatus, error) {
	data, err := s.client.Get(ctx, syncStatusPrefix+ownerID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var status OwnerSyncStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Set stores an owner's sync status after a completed batch.
func (s *SyncStatusStore) Set(ctx context.Context, ownerID string, status *OwnerSyncStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, syncStatusPrefix+ownerID, data, syncStatusTTL).Err()
}
