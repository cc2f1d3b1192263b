package repository

import (
	"context"

	"travelsync/internal/domain"
)

// LocationRepository defines the persistence operations for location
// points. Points are append-only; there is no update.
type LocationRepository interface {
	// InsertBatch inserts points, silently skipping any that collide on
	// (tripID, timestamp) so re-uploads stay idempotent. Returns the
	// number of rows actually inserted.
	InsertBatch(ctx context.Context, points []*domain.LocationPoint) (int, error)

	// ListByTrip retrieves a trip's points ordered by timestamp ascending.
	ListByTrip(ctx context.Context, tripID string) ([]*domain.LocationPoint, error)

	// DeleteByTrip removes all points belonging to a trip.
	DeleteByTrip(ctx context.Context, tripID string) error
}
