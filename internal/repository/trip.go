package repository

import (
	"context"

	"travelsync/internal/domain"
)

// TripRepository defines the persistence operations for trips.
type TripRepository interface {
	// Create persists a new trip at its initial revision.
	Create(ctx context.Context, trip *domain.Trip) error

	// GetByID retrieves a trip by ID.
	GetByID(ctx context.Context, id string) (*domain.Trip, error)

	// ListByOwner retrieves the owner's trips, most recent start first.
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Trip, error)

	// Update persists a mutated trip. expectedRevision is the revision
	// the row must still hold; ErrRevisionMismatch otherwise. The
	// trip's Revision field carries the new value.
	Update(ctx context.Context, trip *domain.Trip, expectedRevision int64) error

	// Delete removes a trip. Location points are deleted by the caller
	// in the same transaction.
	Delete(ctx context.Context, id string) error
}
