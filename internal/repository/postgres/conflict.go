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

// ConflictRepository is a PostgreSQL implementation of repository.ConflictRepository.
// Client and server values are stored as JSONB.
type ConflictRepository struct {
	q Querier
}

// NewConflictRepository creates a new PostgreSQL conflict repository.
func NewConflictRepository(db *sql.DB) *ConflictRepository {
	return &ConflictRepository{q: db}
}

// NewConflictRepositoryWithTx creates a conflict repository using a transaction.
func NewConflictRepositoryWithTx(tx *sql.Tx) *ConflictRepository {
	return &ConflictRepository{q: tx}
}

// Create persists a newly detected conflict with status pending.
func (r *ConflictRepository) Create(ctx context.Context, conflict *domain.ConflictRecord) error {
	clientValue, err := json.Marshal(conflict.ClientValue)
	if err != nil {
		return err
	}
	serverValue, err := json.Marshal(conflict.ServerValue)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sync_conflicts
			(id, entity_type, entity_id, client_id, owner_id, server_revision,
			 client_value, server_value, detected_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.q.ExecContext(ctx, query,
		conflict.ID,
		conflict.EntityType,
		conflict.EntityID,
		conflict.ClientID,
		conflict.OwnerID,
		conflict.ServerRevision,
		clientValue,
		serverValue,
		conflict.DetectedAt,
		domain.ConflictPending,
	)

	return err
}

// GetByID retrieves a conflict by ID.
func (r *ConflictRepository) GetByID(ctx context.Context, id string) (*domain.ConflictRecord, error) {
	query := conflictSelect + ` WHERE id = $1`

	conflict, err := scanConflict(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return conflict, nil
}

// ListByOwner retrieves the owner's conflicts ordered by detected_at
// ascending (oldest first, to encourage timely resolution).
func (r *ConflictRepository) ListByOwner(ctx context.Context, ownerID string, status domain.ConflictStatus) ([]*domain.ConflictRecord, error) {
	query := conflictSelect + ` WHERE owner_id = $1`
	args := []any{ownerID}

	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY detected_at ASC`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conflicts []*domain.ConflictRecord
	for rows.Next() {
		conflict, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, conflict)
	}

	return conflicts, rows.Err()
}

// MarkResolved flips a pending conflict to resolved. The status guard
// in the WHERE clause is what makes resolution idempotent.
func (r *ConflictRepository) MarkResolved(ctx context.Context, id string, resolution domain.Resolution) error {
	query := `
		UPDATE sync_conflicts
		SET status = $1, resolution = $2, resolved_at = $3
		WHERE id = $4 AND status = $5
	`

	result, err := r.q.ExecContext(ctx, query,
		domain.ConflictResolved,
		resolution,
		time.Now().UTC(),
		id,
		domain.ConflictPending,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// CountPending returns the number of pending conflicts for an owner.
func (r *ConflictRepository) CountPending(ctx context.Context, ownerID string) (int, error) {
	query := `SELECT COUNT(*) FROM sync_conflicts WHERE owner_id = $1 AND status = $2`

	var count int
	err := r.q.QueryRowContext(ctx, query, ownerID, domain.ConflictPending).Scan(&count)
	return count, err
}

const conflictSelect = `
	SELECT id, entity_type, entity_id, client_id, owner_id, server_revision,
	       client_value, server_value, detected_at, status, resolution, resolved_at
	FROM sync_conflicts
`

func scanConflict(row rowScanner) (*domain.ConflictRecord, error) {
	var conflict domain.ConflictRecord
	var clientValue, serverValue []byte
	var resolution sql.NullString
	var resolvedAt sql.NullTime

	err := row.Scan(
		&conflict.ID,
		&conflict.EntityType,
		&conflict.EntityID,
		&conflict.ClientID,
		&conflict.OwnerID,
		&conflict.ServerRevision,
		&clientValue,
		&serverValue,
		&conflict.DetectedAt,
		&conflict.Status,
		&resolution,
		&resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(clientValue, &conflict.ClientValue); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(serverValue, &conflict.ServerValue); err != nil {
		return nil, err
	}
	if resolution.Valid {
		conflict.Resolution = domain.Resolution(resolution.String)
	}
	if resolvedAt.Valid {
		conflict.ResolvedAt = resolvedAt.Time
	}

	return &conflict, nil
}

// Ensure ConflictRepository implements repository.ConflictRepository.
var _ repository.ConflictRepository = (*ConflictRepository)(nil)
