package service

import (
	"context"
	"time"

	"travelsync/internal/redis"
	"travelsync/internal/repository"
)

// StatusService answers the client's "am I in sync?" poll from the
// Redis status cache plus the pending-conflict count.
type StatusService struct {
	conflicts repository.ConflictRepository
	status    redis.SyncStatusStoreInterface
}

// NewStatusService creates a new StatusService.
func NewStatusService(conflicts repository.ConflictRepository, status redis.SyncStatusStoreInterface) *StatusService {
	return &StatusService{conflicts: conflicts, status: status}
}

// SyncState values reported to clients.
const (
	SyncStateSynced  = "synced"
	SyncStatePending = "pending"
)

// OwnerStatus is the status endpoint's payload.
type OwnerStatus struct {
	State      string
	LastSyncAt time.Time // zero when the owner has never synced
}

// Get returns the owner's sync state. Pending conflicts make the state
// "pending"; the client should surface its resolution queue.
func (s *StatusService) Get(ctx context.Context, ownerID string) (*OwnerStatus, error) {
	if ownerID == "" {
		return nil, ErrInvalidOwnerID
	}

	pending, err := s.conflicts.CountPending(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	status := &OwnerStatus{State: SyncStateSynced}
	if pending > 0 {
		status.State = SyncStatePending
	}

	cached, err := s.status.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		status.LastSyncAt = cached.LastSyncAt
	}

	return status, nil
}
