package repository

import (
	"context"

	"travelsync/internal/domain"
)

// ConflictRepository defines the persistence operations for the
// conflict queue.
type ConflictRepository interface {
	// Create persists a newly detected conflict with status pending.
	Create(ctx context.Context, conflict *domain.ConflictRecord) error

	// GetByID retrieves a conflict by ID.
	GetByID(ctx context.Context, id string) (*domain.ConflictRecord, error)

	// ListByOwner retrieves the owner's conflicts ordered by DetectedAt
	// ascending. status filters when non-empty.
	ListByOwner(ctx context.Context, ownerID string, status domain.ConflictStatus) ([]*domain.ConflictRecord, error)

	// MarkResolved flips a pending conflict to resolved. Returns
	// ErrNotFound if the conflict does not exist or is already resolved.
	MarkResolved(ctx context.Context, id string, resolution domain.Resolution) error

	// CountPending returns the number of pending conflicts for an owner.
	CountPending(ctx context.Context, ownerID string) (int, error)
}
