package repository

import (
	"context"

	"travelsync/internal/domain"
)

// RevisionLogRepository stores a field snapshot per accepted revision
// of every versioned entity. The conflict detector diffs against the
// snapshot at a mutation's baseRevision.
type RevisionLogRepository interface {
	// Record persists the full field snapshot an entity holds at the
	// given revision.
	Record(ctx context.Context, entityType domain.EntityType, entityID string, revision int64, fields domain.FieldMap) error

	// GetSnapshot retrieves the snapshot at an exact revision.
	// Returns ErrNotFound when the revision was never recorded or has
	// been pruned.
	GetSnapshot(ctx context.Context, entityType domain.EntityType, entityID string, revision int64) (domain.FieldMap, error)

	// DeleteByEntity removes an entity's whole revision history.
	DeleteByEntity(ctx context.Context, entityType domain.EntityType, entityID string) error
}
