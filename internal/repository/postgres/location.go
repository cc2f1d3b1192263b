package postgres

import (
	"context"
	"database/sql"

	"travelsync/internal/domain"
	"travelsync/internal/repository"
)

// LocationRepository is a PostgreSQL implementation of repository.LocationRepository.
type LocationRepository struct {
	q Querier
}

// NewLocationRepository creates a new PostgreSQL location repository.
func NewLocationRepository(db *sql.DB) *LocationRepository {
	return &LocationRepository{q: db}
}

// NewLocationRepositoryWithTx creates a location repository using a transaction.
func NewLocationRepositoryWithTx(tx *sql.Tx) *LocationRepository {
	return &LocationRepository{q: tx}
}

// InsertBatch inserts points one by one, skipping (trip_id, ts)
// collisions so a re-uploaded batch stays idempotent.
func (r *LocationRepository) InsertBatch(ctx context.Context, points []*domain.LocationPoint) (int, error) {
	query := `
		INSERT INTO location_points (id, trip_id, lat, lng, ts, accuracy, speed, heading)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (trip_id, ts) DO NOTHING
	`

	inserted := 0
	for _, p := range points {
		result, err := r.q.ExecContext(ctx, query,
			p.ID,
			p.TripID,
			p.Lat,
			p.Lng,
			p.Timestamp,
			nullFloat(p.Accuracy),
			nullFloat(p.Speed),
			nullFloat(p.Heading),
		)
		if err != nil {
			return inserted, err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return inserted, err
		}
		inserted += int(rows)
	}

	return inserted, nil
}

// ListByTrip retrieves a trip's points ordered by timestamp ascending.
func (r *LocationRepository) ListByTrip(ctx context.Context, tripID string) ([]*domain.LocationPoint, error) {
	query := `
		SELECT id, trip_id, lat, lng, ts, accuracy, speed, heading
		FROM location_points WHERE trip_id = $1 ORDER BY ts ASC
	`

	rows, err := r.q.QueryContext(ctx, query, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []*domain.LocationPoint
	for rows.Next() {
		var p domain.LocationPoint
		var accuracy, speed, heading sql.NullFloat64

		if err := rows.Scan(
			&p.ID,
			&p.TripID,
			&p.Lat,
			&p.Lng,
			&p.Timestamp,
			&accuracy,
			&speed,
			&heading,
		); err != nil {
			return nil, err
		}

		p.Accuracy = floatPtr(accuracy)
		p.Speed = floatPtr(speed)
		p.Heading = floatPtr(heading)

		points = append(points, &p)
	}

	return points, rows.Err()
}

// DeleteByTrip removes all points belonging to a trip.
func (r *LocationRepository) DeleteByTrip(ctx context.Context, tripID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM location_points WHERE trip_id = $1`, tripID)
	return err
}

// Ensure LocationRepository implements repository.LocationRepository.
var _ repository.LocationRepository = (*LocationRepository)(nil)
