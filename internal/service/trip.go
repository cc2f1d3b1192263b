package service

import (
	"context"
	"log"

	"travelsync/internal/domain"
	"travelsync/internal/redis"
	"travelsync/internal/repository"
)

// TripService handles direct trip operations for the REST API. All
// mutations go through the sync engine as single-record batches, so a
// dashboard edit and a mobile sync obey the same revision rules.
type TripService struct {
	trips     repository.TripRepository
	locations repository.LocationRepository
	revisions repository.RevisionLogRepository
	tx        repository.TxRunner
	locks     redis.LockStoreInterface
	sync      *SyncService
}

// NewTripService creates a new TripService.
func NewTripService(
	trips repository.TripRepository,
	locations repository.LocationRepository,
	revisions repository.RevisionLogRepository,
	tx repository.TxRunner,
	locks redis.LockStoreInterface,
	sync *SyncService,
) *TripService {
	return &TripService{
		trips:     trips,
		locations: locations,
		revisions: revisions,
		tx:        tx,
		locks:     locks,
		sync:      sync,
	}
}

// Create validates and persists a new trip at revision 1.
func (s *TripService) Create(ctx context.Context, ownerID string, fields domain.FieldMap) (*domain.Trip, error) {
	entry, err := s.sync.ApplySingle(ctx, ownerID, domain.RecordMutation{
		EntityType:    domain.EntityTrip,
		ClientLocalID: "api-create",
		Fields:        fields,
	})
	if err != nil {
		return nil, err
	}
	if err := entryError(entry); err != nil {
		return nil, err
	}

	return s.trips.GetByID(ctx, entry.ServerID)
}

// Get returns a trip, enforcing ownership.
func (s *TripService) Get(ctx context.Context, ownerID, tripID string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.OwnerID != ownerID {
		return nil, ErrForbidden
	}

	return trip, nil
}

// List returns the owner's trips.
func (s *TripService) List(ctx context.Context, ownerID string) ([]*domain.Trip, error) {
	if ownerID == "" {
		return nil, ErrInvalidOwnerID
	}
	return s.trips.ListByOwner(ctx, ownerID)
}

// Update applies a revision-guarded edit. A concurrent overlapping
// edit surfaces as *ConflictDetectedError with the queued conflict's ID.
func (s *TripService) Update(ctx context.Context, ownerID, tripID string, baseRevision int64, fields domain.FieldMap) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	entry, err := s.sync.ApplySingle(ctx, ownerID, domain.RecordMutation{
		EntityType:    domain.EntityTrip,
		ClientLocalID: "api-update",
		ServerID:      tripID,
		BaseRevision:  baseRevision,
		Fields:        fields,
	})
	if err != nil {
		return nil, err
	}
	if err := entryError(entry); err != nil {
		return nil, err
	}

	return s.trips.GetByID(ctx, entry.ServerID)
}

// Delete removes a trip with its location points and revision history.
func (s *TripService) Delete(ctx context.Context, ownerID, tripID string) error {
	trip, err := s.Get(ctx, ownerID, tripID)
	if err != nil {
		return err
	}

	// Deletion mutates the aggregate, so it takes the same lock as a
	// sync commit for this trip.
	acquired, err := s.locks.AcquireAggregateLock(ctx, ownerID, "trip:"+trip.ID, s.sync.lockTTL, s.sync.lockWait)
	if err != nil {
		return err
	}
	if !acquired {
		return ErrBusy
	}

	commitCtx := context.WithoutCancel(ctx)
	defer func() {
		if err := s.locks.ReleaseAggregateLock(commitCtx, ownerID, "trip:"+trip.ID); err != nil {
			log.Printf("trip: lock release failed for %s: %v", trip.ID, err)
		}
	}()

	return s.tx.WithinTx(commitCtx, func(ctx context.Context, st repository.Stores) error {
		if err := st.Locations.DeleteByTrip(ctx, trip.ID); err != nil {
			return err
		}
		if err := st.Revisions.DeleteByEntity(ctx, domain.EntityTrip, trip.ID); err != nil {
			return err
		}
		return st.Trips.Delete(ctx, trip.ID)
	})
}

// Locations returns a trip's points ordered by timestamp ascending.
func (s *TripService) Locations(ctx context.Context, ownerID, tripID string) ([]*domain.LocationPoint, error) {
	if _, err := s.Get(ctx, ownerID, tripID); err != nil {
		return nil, err
	}
	return s.locations.ListByTrip(ctx, tripID)
}

// entryError translates a manifest entry into the service error the
// REST surface reports for a direct (non-batch) mutation.
func entryError(entry domain.ManifestEntry) error {
	switch entry.Status {
	case domain.RecordAccepted:
		return nil
	case domain.RecordConflict:
		return &ConflictDetectedError{ConflictID: entry.ConflictID}
	}

	switch entry.Reason {
	case domain.RejectBusy:
		return ErrBusy
	case domain.RejectAggregateCommitFailed:
		return ErrAggregateCommitFailed
	case domain.RejectMissingBaseRevision:
		return ErrMissingBaseRevision
	default:
		return &ValidationError{Err: ErrMalformedRecord}
	}
}
