package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"travelsync/internal/domain"
	"travelsync/internal/repository"
)

// RevisionLogRepository is a PostgreSQL implementation of
// repository.RevisionLogRepository. Snapshots are stored as JSONB keyed
// by (entity_type, entity_id, revision).
type RevisionLogRepository struct {
	q Querier
}

// NewRevisionLogRepository creates a new PostgreSQL revision log repository.
func NewRevisionLogRepository(db *sql.DB) *RevisionLogRepository {
	return &RevisionLogRepository{q: db}
}

// NewRevisionLogRepositoryWithTx creates a revision log repository using a transaction.
func NewRevisionLogRepositoryWithTx(tx *sql.Tx) *RevisionLogRepository {
	return &RevisionLogRepository{q: tx}
}

// Record persists the full field snapshot an entity holds at the given
// revision. ON CONFLICT DO NOTHING keeps replays of an already-applied
// mutation harmless.
func (r *RevisionLogRepository) Record(ctx context.Context, entityType domain.EntityType, entityID string, revision int64, fields domain.FieldMap) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO entity_revisions (entity_type, entity_id, revision, fields, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (entity_type, entity_id, revision) DO NOTHING
	`

	_, err = r.q.ExecContext(ctx, query, entityType, entityID, revision, data, time.Now().UTC())
	return err
}

// GetSnapshot retrieves the snapshot at an exact revision.
func (r *RevisionLogRepository) GetSnapshot(ctx context.Context, entityType domain.EntityType, entityID string, revision int64) (domain.FieldMap, error) {
	query := `
		SELECT fields FROM entity_revisions
		WHERE entity_type = $1 AND entity_id = $2 AND revision = $3
	`

	var data []byte
	err := r.q.QueryRowContext(ctx, query, entityType, entityID, revision).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	var fields domain.FieldMap
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}

	return fields, nil
}

// DeleteByEntity removes an entity's whole revision history.
func (r *RevisionLogRepository) DeleteByEntity(ctx context.Context, entityType domain.EntityType, entityID string) error {
	query := `DELETE FROM entity_revisions WHERE entity_type = $1 AND entity_id = $2`
	_, err := r.q.ExecContext(ctx, query, entityType, entityID)
	return err
}

// Ensure RevisionLogRepository implements repository.RevisionLogRepository.
var _ repository.RevisionLogRepository = (*RevisionLogRepository)(nil)
