package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"travelsync/internal/domain"
	"travelsync/internal/repository"
)

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
type TripRepository struct {
	q Querier
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{q: db}
}

// NewTripRepositoryWithTx creates a trip repository using a transaction.
func NewTripRepositoryWithTx(tx *sql.Tx) *TripRepository {
	return &TripRepository{q: tx}
}

const tripColumns = `
	id, owner_id, origin, destination, origin_lat, origin_lng,
	destination_lat, destination_lng, start_time, end_time, travel_mode,
	trip_type, status, distance_meters, duration_seconds, revision,
	client_revision, updated_at
`

// Create persists a new trip at its initial revision.
func (r *TripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	query := `
		INSERT INTO trips (` + tripColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := r.q.ExecContext(ctx, query,
		trip.ID,
		trip.OwnerID,
		trip.Origin,
		trip.Destination,
		nullFloat(trip.OriginLat),
		nullFloat(trip.OriginLng),
		nullFloat(trip.DestinationLat),
		nullFloat(trip.DestinationLng),
		trip.StartTime,
		nullTime(trip.EndTime),
		trip.TravelMode,
		trip.TripType,
		trip.Status,
		trip.DistanceMeters,
		trip.DurationSeconds,
		trip.Revision,
		trip.ClientRevision,
		trip.UpdatedAt,
	)

	return err
}

// GetByID retrieves a trip by ID.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`

	trip, err := scanTrip(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return trip, nil
}

// ListByOwner retrieves the owner's trips, most recent start first.
func (r *TripRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE owner_id = $1 ORDER BY start_time DESC LIMIT 200`

	rows, err := r.q.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []*domain.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}

	return trips, rows.Err()
}

// Update persists a mutated trip guarded by expectedRevision.
func (r *TripRepository) Update(ctx context.Context, trip *domain.Trip, expectedRevision int64) error {
	query := `
		UPDATE trips
		SET origin = $1, destination = $2, origin_lat = $3, origin_lng = $4,
		    destination_lat = $5, destination_lng = $6, start_time = $7,
		    end_time = $8, travel_mode = $9, trip_type = $10, status = $11,
		    distance_meters = $12, duration_seconds = $13, revision = $14,
		    client_revision = $15, updated_at = $16
		WHERE id = $17 AND revision = $18
	`

	result, err := r.q.ExecContext(ctx, query,
		trip.Origin,
		trip.Destination,
		nullFloat(trip.OriginLat),
		nullFloat(trip.OriginLng),
		nullFloat(trip.DestinationLat),
		nullFloat(trip.DestinationLng),
		trip.StartTime,
		nullTime(trip.EndTime),
		trip.TravelMode,
		trip.TripType,
		trip.Status,
		trip.DistanceMeters,
		trip.DurationSeconds,
		trip.Revision,
		trip.ClientRevision,
		trip.UpdatedAt,
		trip.ID,
		expectedRevision,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		// Distinguish a missing row from a revision race.
		if _, err := r.GetByID(ctx, trip.ID); errors.Is(err, repository.ErrNotFound) {
			return repository.ErrNotFound
		}
		return repository.ErrRevisionMismatch
	}

	return nil
}

// Delete removes a trip.
func (r *TripRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM trips WHERE id = $1`, id)
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

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (*domain.Trip, error) {
	var trip domain.Trip
	var originLat, originLng, destLat, destLng sql.NullFloat64
	var endTime sql.NullTime

	err := row.Scan(
		&trip.ID,
		&trip.OwnerID,
		&trip.Origin,
		&trip.Destination,
		&originLat,
		&originLng,
		&destLat,
		&destLng,
		&trip.StartTime,
		&endTime,
		&trip.TravelMode,
		&trip.TripType,
		&trip.Status,
		&trip.DistanceMeters,
		&trip.DurationSeconds,
		&trip.Revision,
		&trip.ClientRevision,
		&trip.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	trip.OriginLat = floatPtr(originLat)
	trip.OriginLng = floatPtr(originLng)
	trip.DestinationLat = floatPtr(destLat)
	trip.DestinationLng = floatPtr(destLng)
	if endTime.Valid {
		trip.EndTime = endTime.Time
	}

	return &trip, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// Ensure TripRepository implements repository.TripRepository.
var _ repository.TripRepository = (*TripRepository)(nil)
