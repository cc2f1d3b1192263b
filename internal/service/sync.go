package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"travelsync/internal/domain"
	"travelsync/internal/redis"
	"travelsync/internal/repository"
)

// SyncService is the sync session coordinator. A batch moves through
// Received -> Validating -> PerRecordProcessing -> Committing ->
// Completed, or Rejected on a batch-level validation failure.
//
// Batches from different owners run concurrently; commits for one
// aggregate serialize on a per-(owner, aggregate) Redis lock held only
// for the atomic commit step. Detection reads run lock-free.
type SyncService struct {
	trips     repository.TripRepository
	expenses  repository.ExpenseRepository
	conflicts repository.ConflictRepository
	revisions repository.RevisionLogRepository
	tx        repository.TxRunner
	locks     redis.LockStoreInterface
	status    redis.SyncStatusStoreInterface

	maxBatchSize int
	lockTTL      time.Duration
	lockWait     time.Duration
}

// SyncConfig carries the coordinator's tunables.
type SyncConfig struct {
	MaxBatchSize int
	LockTTL      time.Duration
	LockWait     time.Duration
}

// NewSyncService creates a new SyncService.
func NewSyncService(
	trips repository.TripRepository,
	expenses repository.ExpenseRepository,
	conflicts repository.ConflictRepository,
	revisions repository.RevisionLogRepository,
	tx repository.TxRunner,
	locks redis.LockStoreInterface,
	status redis.SyncStatusStoreInterface,
	cfg SyncConfig,
) *SyncService {
	return &SyncService{
		trips:        trips,
		expenses:     expenses,
		conflicts:    conflicts,
		revisions:    revisions,
		tx:           tx,
		locks:        locks,
		status:       status,
		maxBatchSize: cfg.MaxBatchSize,
		lockTTL:      cfg.LockTTL,
		lockWait:     cfg.LockWait,
	}
}

// indexedMutation pairs a mutation with its position in the batch so
// the manifest keeps input order.
type indexedMutation struct {
	index int
	mut   domain.RecordMutation
}

// aggregate is one atomic commit unit: a trip plus its location points
// from the same batch, or a single expense.
type aggregate struct {
	lockKey string
	trip    *indexedMutation
	points  []indexedMutation
	expense *indexedMutation
}

// ProcessBatch runs one sync session and returns the manifest. A
// non-nil error means the whole batch was Rejected before any
// mutation; record-level failures land in the manifest instead.
func (s *SyncService) ProcessBatch(ctx context.Context, ownerID string, batch domain.SyncBatch) (*domain.SyncManifest, error) {
	return s.process(ctx, ownerID, batch, false)
}

// ApplySingle routes one mutation through the full engine as a
// single-record batch. The CRUD services use it so direct API edits
// obey the same revision machinery as batch sync.
func (s *SyncService) ApplySingle(ctx context.Context, ownerID string, mut domain.RecordMutation) (domain.ManifestEntry, error) {
	manifest, err := s.process(ctx, ownerID, domain.SyncBatch{
		ClientID:    "api",
		SubmittedAt: time.Now().UTC(),
		Records:     []domain.RecordMutation{mut},
	}, false)
	if err != nil {
		return domain.ManifestEntry{}, err
	}
	return manifest.Entries[0], nil
}

// ProcessForce runs a force sync: every record is applied with
// keep-client semantics, bypassing conflict detection. Revisions still
// increment, so the operation remains auditable in the revision log.
func (s *SyncService) ProcessForce(ctx context.Context, ownerID string, batch domain.SyncBatch) (*domain.SyncManifest, error) {
	return s.process(ctx, ownerID, batch, true)
}

func (s *SyncService) process(ctx context.Context, ownerID string, batch domain.SyncBatch, force bool) (*domain.SyncManifest, error) {
	// Validating.
	if ownerID == "" {
		return nil, ErrInvalidOwnerID
	}
	if batch.ClientID == "" {
		return nil, &ValidationError{Err: ErrInvalidClientID}
	}
	if len(batch.Records) == 0 {
		return nil, ErrEmptyBatch
	}
	if s.maxBatchSize > 0 && len(batch.Records) > s.maxBatchSize {
		return nil, ErrBatchTooLarge
	}
	if err := s.checkOwnership(ctx, ownerID, batch.Records); err != nil {
		return nil, err
	}

	// PerRecordProcessing: shape-check every record and group the valid
	// ones into aggregates. A bad record is reported in the manifest and
	// never blocks its neighbors.
	entries := make([]domain.ManifestEntry, len(batch.Records))
	for i, mut := range batch.Records {
		entries[i] = domain.ManifestEntry{
			ClientLocalID: mut.ClientLocalID,
			EntityType:    mut.EntityType,
		}
	}

	aggregates := s.groupIntoAggregates(batch.Records, entries)

	// Committing: one lock + one transaction per aggregate.
	for _, agg := range aggregates {
		// Cancellation is honored between aggregates; an aggregate that
		// started committing always runs to completion.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.commitAggregate(ctx, ownerID, batch.ClientID, agg, entries, force)
	}

	// Completed.
	now := time.Now().UTC()
	if err := s.status.Set(ctx, ownerID, &redis.OwnerSyncStatus{LastSyncAt: now, ClientID: batch.ClientID}); err != nil {
		// Status cache is advisory; a write failure must not fail the batch.
		log.Printf("sync: status cache write failed for owner %s: %v", ownerID, err)
	}

	return &domain.SyncManifest{
		ClientID:    batch.ClientID,
		ProcessedAt: now,
		Entries:     entries,
	}, nil
}

// checkOwnership rejects the whole batch if any referenced record
// belongs to another owner. Reads are lock-free.
func (s *SyncService) checkOwnership(ctx context.Context, ownerID string, records []domain.RecordMutation) error {
	for _, mut := range records {
		switch mut.EntityType {
		case domain.EntityTrip:
			if mut.IsCreate() {
				continue
			}
			trip, err := s.trips.GetByID(ctx, mut.ServerID)
			if errors.Is(err, repository.ErrNotFound) {
				continue // treated as a create later
			}
			if err != nil {
				return err
			}
			if trip.OwnerID != ownerID {
				return ErrForbidden
			}
		case domain.EntityExpense:
			if mut.IsCreate() {
				continue
			}
			expense, err := s.expenses.GetByID(ctx, mut.ServerID)
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if expense.OwnerID != ownerID {
				return ErrForbidden
			}
		case domain.EntityLocationPoint:
			tripRef, _ := mut.Fields["tripId"].(string)
			if tripRef == "" {
				continue // rejected later as a validation failure
			}
			trip, err := s.trips.GetByID(ctx, tripRef)
			if errors.Is(err, repository.ErrNotFound) {
				continue // parent may be created in this batch
			}
			if err != nil {
				return err
			}
			if trip.OwnerID != ownerID {
				return ErrForbidden
			}
		}
	}
	return nil
}

// groupIntoAggregates partitions shape-valid mutations into atomic
// commit units. Records that fail shape validation get their manifest
// entry filled here and join no aggregate.
func (s *SyncService) groupIntoAggregates(records []domain.RecordMutation, entries []domain.ManifestEntry) []*aggregate {
	var order []*aggregate
	tripAggs := make(map[string]*aggregate) // keyed by server ID or client-local ID

	tripAggFor := func(ref string) *aggregate {
		if agg, ok := tripAggs[ref]; ok {
			return agg
		}
		agg := &aggregate{lockKey: "trip:" + ref}
		tripAggs[ref] = agg
		order = append(order, agg)
		return agg
	}

	// First pass: trips, so that points can find a trip created later
	// in the same batch by its client-local ID.
	for i, mut := range records {
		if mut.EntityType != domain.EntityTrip {
			continue
		}
		if !mut.IsCreate() && mut.BaseRevision <= 0 {
			entries[i].Status = domain.RecordRejected
			entries[i].Reason = domain.RejectMissingBaseRevision
			continue
		}
		ref := mut.ServerID
		if mut.IsCreate() {
			ref = "local:" + mut.ClientLocalID
		}
		agg := tripAggFor(ref)
		if agg.trip != nil {
			// One batch may carry at most one mutation per trip; a
			// duplicate is a malformed batch entry.
			entries[i].Status = domain.RecordRejected
			entries[i].Reason = domain.RejectValidation
			continue
		}
		agg.trip = &indexedMutation{index: i, mut: mut}
	}

	// Second pass: points and expenses.
	for i, mut := range records {
		if !domain.ValidEntityType(mut.EntityType) {
			entries[i].Status = domain.RecordRejected
			entries[i].Reason = domain.RejectUnknownEntity
			continue
		}

		im := indexedMutation{index: i, mut: mut}

		switch mut.EntityType {
		case domain.EntityTrip:
			// handled above

		case domain.EntityLocationPoint:
			tripRef, _ := mut.Fields["tripId"].(string)
			if tripRef == "" {
				entries[i].Status = domain.RecordRejected
				entries[i].Reason = domain.RejectValidation
				continue
			}
			// Points for a trip created in this batch reference its
			// client-local ID; otherwise the server ID.
			ref := tripRef
			if _, ok := tripAggs[ref]; !ok {
				if _, ok := tripAggs["local:"+tripRef]; ok {
					ref = "local:" + tripRef
				}
			}
			agg := tripAggFor(ref)
			agg.points = append(agg.points, im)

		case domain.EntityExpense:
			if !mut.IsCreate() && mut.BaseRevision <= 0 {
				entries[i].Status = domain.RecordRejected
				entries[i].Reason = domain.RejectMissingBaseRevision
				continue
			}
			ref := mut.ServerID
			if mut.IsCreate() {
				ref = "local:" + mut.ClientLocalID
			}
			order = append(order, &aggregate{lockKey: "expense:" + ref, expense: &im})
		}
	}

	return order
}

// commitAggregate takes the aggregate's lock, applies its mutations in
// one transaction, and fills the manifest entries. Failures mark every
// record of the aggregate rejected; they never abort the batch.
func (s *SyncService) commitAggregate(ctx context.Context, ownerID, clientID string, agg *aggregate, entries []domain.ManifestEntry, force bool) {
	indices := agg.recordIndices()

	acquired, err := s.locks.AcquireAggregateLock(ctx, ownerID, agg.lockKey, s.lockTTL, s.lockWait)
	if err != nil || !acquired {
		if err != nil {
			log.Printf("sync: lock acquire failed for %s: %v", agg.lockKey, err)
		}
		rejectAll(entries, indices, domain.RejectBusy)
		return
	}

	// The commit must finish even if the caller walks away mid-flight;
	// a half-applied aggregate would break the revision invariant.
	commitCtx := context.WithoutCancel(ctx)
	defer func() {
		if err := s.locks.ReleaseAggregateLock(commitCtx, ownerID, agg.lockKey); err != nil {
			log.Printf("sync: lock release failed for %s: %v", agg.lockKey, err)
		}
	}()

	// Stage results locally; they reach the manifest only if the
	// transaction commits.
	staged := make(map[int]domain.ManifestEntry)

	txErr := s.tx.WithinTx(commitCtx, func(ctx context.Context, st repository.Stores) error {
		if agg.expense != nil {
			return s.commitExpense(ctx, st, ownerID, clientID, agg.expense, staged, force)
		}
		return s.commitTrip(ctx, st, ownerID, clientID, agg, staged, force)
	})

	if txErr != nil {
		rejectAll(entries, indices, domain.RejectAggregateCommitFailed)
		return
	}

	for idx, entry := range staged {
		entries[idx] = entry
	}
}

// commitTrip applies a trip mutation plus its batch-mates' location
// points inside one transaction.
func (s *SyncService) commitTrip(ctx context.Context, st repository.Stores, ownerID, clientID string, agg *aggregate, staged map[int]domain.ManifestEntry, force bool) error {
	now := time.Now().UTC()

	var current *domain.Trip
	var tripAccepted bool

	// Resolve the aggregate's trip: it may exist server-side, be
	// created by this very batch, or be missing entirely.
	if agg.trip != nil {
		mut := agg.trip.mut
		if !mut.IsCreate() {
			trip, err := st.Trips.GetByID(ctx, mut.ServerID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			current = trip
		}

		entry, applied, err := s.applyTripMutation(ctx, st, ownerID, clientID, mut, current, now, force)
		if err != nil {
			return err
		}
		staged[agg.trip.index] = entry
		if applied != nil {
			current = applied
		}
		tripAccepted = entry.Status == domain.RecordAccepted
	} else if len(agg.points) > 0 {
		tripRef, _ := agg.points[0].mut.Fields["tripId"].(string)
		trip, err := st.Trips.GetByID(ctx, tripRef)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		current = trip
		tripAccepted = trip != nil && trip.OwnerID == ownerID
	}

	// Location points never commit independently of their parent
	// trip's acceptance. A parent that exists server-side counts as
	// accepted even when its own mutation was queued as a conflict.
	parentOK := tripAccepted || (current != nil && current.OwnerID == ownerID)

	if len(agg.points) == 0 {
		return nil
	}

	if !parentOK {
		for _, im := range agg.points {
			staged[im.index] = domain.ManifestEntry{
				ClientLocalID: im.mut.ClientLocalID,
				EntityType:    im.mut.EntityType,
				Status:        domain.RecordRejected,
				Reason:        domain.RejectValidation,
			}
		}
		return nil
	}

	var points []*domain.LocationPoint
	var pointIndices []indexedMutation
	for _, im := range agg.points {
		var p domain.LocationPoint
		if err := p.FromFields(im.mut.Fields); err != nil {
			staged[im.index] = domain.ManifestEntry{
				ClientLocalID: im.mut.ClientLocalID,
				EntityType:    im.mut.EntityType,
				Status:        domain.RecordRejected,
				Reason:        domain.RejectValidation,
			}
			continue
		}
		p.ID = uuid.New().String()
		p.TripID = current.ID // batch-local references resolve to the real trip
		points = append(points, &p)
		pointIndices = append(pointIndices, im)
	}

	if _, err := st.Locations.InsertBatch(ctx, points); err != nil {
		return err
	}

	for i, im := range pointIndices {
		staged[im.index] = domain.ManifestEntry{
			ClientLocalID: im.mut.ClientLocalID,
			EntityType:    im.mut.EntityType,
			Status:        domain.RecordAccepted,
			ServerID:      points[i].ID,
			Revision:      current.Revision,
		}
	}

	return nil
}

// applyTripMutation runs detection and resolution for one trip
// mutation. Returns the manifest entry plus the applied trip when a
// write happened.
func (s *SyncService) applyTripMutation(ctx context.Context, st repository.Stores, ownerID, clientID string, mut domain.RecordMutation, current *domain.Trip, now time.Time, force bool) (domain.ManifestEntry, *domain.Trip, error) {
	entry := domain.ManifestEntry{
		ClientLocalID: mut.ClientLocalID,
		EntityType:    mut.EntityType,
	}

	if force && current != nil {
		// Keep-client: overwrite unconditionally.
		applied, err := applyTripUpdate(ctx, st, current, overlay(current.Fields(), mut.Fields, nil), mut.BaseRevision, now)
		if err != nil {
			return rejectEntry(entry, err)
		}
		entry.Status = domain.RecordAccepted
		entry.ServerID = applied.ID
		entry.Revision = applied.Revision
		return entry, applied, nil
	}

	var currentFields, baseFields domain.FieldMap
	if current != nil {
		currentFields = current.Fields()
		snapshot, err := st.Revisions.GetSnapshot(ctx, domain.EntityTrip, current.ID, mut.BaseRevision)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return entry, nil, err
		}
		baseFields = snapshot
	}

	detection, err := DetectChange(mut.Fields, currentFields, currentRevisionOf(current), mut.BaseRevision, baseFields)
	if err != nil {
		return rejectEntry(entry, &ValidationError{Err: err})
	}

	switch detection.Kind {
	case ChangeCreate:
		applied, err := applyTripCreate(ctx, st, ownerID, mut.Fields, now)
		if err != nil {
			return rejectEntry(entry, err)
		}
		entry.Status = domain.RecordAccepted
		entry.ServerID = applied.ID
		entry.Revision = applied.Revision
		return entry, applied, nil

	case ChangeNoOp:
		entry.Status = domain.RecordAccepted
		entry.ServerID = current.ID
		entry.Revision = current.Revision
		return entry, nil, nil

	case ChangeCleanUpdate, ChangeStaleMerge:
		applied, err := applyTripUpdate(ctx, st, current, detection.Merged, mut.BaseRevision, now)
		if err != nil {
			return rejectEntry(entry, err)
		}
		entry.Status = domain.RecordAccepted
		entry.ServerID = applied.ID
		entry.Revision = applied.Revision
		return entry, applied, nil

	case ChangeConflict:
		conflictID, err := queueConflict(ctx, st, ownerID, clientID, domain.EntityTrip, current.ID, current.Revision, mut.Fields, currentFields, now)
		if err != nil {
			return entry, nil, err
		}
		entry.Status = domain.RecordConflict
		entry.ServerID = current.ID
		entry.ConflictID = conflictID
		return entry, nil, nil
	}

	return entry, nil, fmt.Errorf("unhandled change kind %d", detection.Kind)
}

// commitExpense applies one expense mutation inside its own transaction.
func (s *SyncService) commitExpense(ctx context.Context, st repository.Stores, ownerID, clientID string, im *indexedMutation, staged map[int]domain.ManifestEntry, force bool) error {
	mut := im.mut
	now := time.Now().UTC()

	entry := domain.ManifestEntry{
		ClientLocalID: mut.ClientLocalID,
		EntityType:    mut.EntityType,
	}

	var current *domain.Expense
	if !mut.IsCreate() {
		expense, err := st.Expenses.GetByID(ctx, mut.ServerID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		current = expense
	}

	if force && current != nil {
		applied, err := applyExpenseUpdate(ctx, st, current, overlay(current.Fields(), mut.Fields, nil), now)
		if err != nil {
			entry, _, err2 := rejectEntry(entry, err)
			staged[im.index] = entry
			return err2
		}
		staged[im.index] = acceptedEntry(entry, applied.ID, applied.Revision)
		return nil
	}

	var currentFields, baseFields domain.FieldMap
	var currentRevision int64
	if current != nil {
		currentFields = current.Fields()
		currentRevision = current.Revision
		snapshot, err := st.Revisions.GetSnapshot(ctx, domain.EntityExpense, current.ID, mut.BaseRevision)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		baseFields = snapshot
	}

	detection, err := DetectChange(mut.Fields, currentFields, currentRevision, mut.BaseRevision, baseFields)
	if err != nil {
		entry.Status = domain.RecordRejected
		entry.Reason = domain.RejectValidation
		staged[im.index] = entry
		return nil
	}

	switch detection.Kind {
	case ChangeCreate:
		applied, err := applyExpenseCreate(ctx, st, ownerID, mut.Fields, now)
		if err != nil {
			entry, _, err2 := rejectEntry(entry, err)
			staged[im.index] = entry
			return err2
		}
		staged[im.index] = acceptedEntry(entry, applied.ID, applied.Revision)

	case ChangeNoOp:
		staged[im.index] = acceptedEntry(entry, current.ID, current.Revision)

	case ChangeCleanUpdate, ChangeStaleMerge:
		applied, err := applyExpenseUpdate(ctx, st, current, detection.Merged, now)
		if err != nil {
			entry, _, err2 := rejectEntry(entry, err)
			staged[im.index] = entry
			return err2
		}
		staged[im.index] = acceptedEntry(entry, applied.ID, applied.Revision)

	case ChangeConflict:
		conflictID, err := queueConflict(ctx, st, ownerID, clientID, domain.EntityExpense, current.ID, current.Revision, mut.Fields, currentFields, now)
		if err != nil {
			return err
		}
		entry.Status = domain.RecordConflict
		entry.ServerID = current.ID
		entry.ConflictID = conflictID
		staged[im.index] = entry
	}

	return nil
}

func (agg *aggregate) recordIndices() []int {
	var indices []int
	if agg.trip != nil {
		indices = append(indices, agg.trip.index)
	}
	for _, im := range agg.points {
		indices = append(indices, im.index)
	}
	if agg.expense != nil {
		indices = append(indices, agg.expense.index)
	}
	return indices
}

func rejectAll(entries []domain.ManifestEntry, indices []int, reason domain.RejectReason) {
	for _, idx := range indices {
		entries[idx].Status = domain.RecordRejected
		entries[idx].Reason = reason
	}
}

// rejectEntry converts a record-level failure into a manifest entry.
// Validation failures stay record-level; anything else propagates and
// rolls back the aggregate.
func rejectEntry(entry domain.ManifestEntry, err error) (domain.ManifestEntry, *domain.Trip, error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		entry.Status = domain.RecordRejected
		entry.Reason = domain.RejectValidation
		return entry, nil, nil
	}
	return entry, nil, err
}

func acceptedEntry(entry domain.ManifestEntry, serverID string, revision int64) domain.ManifestEntry {
	entry.Status = domain.RecordAccepted
	entry.ServerID = serverID
	entry.Revision = revision
	return entry
}

func currentRevisionOf(trip *domain.Trip) int64 {
	if trip == nil {
		return 0
	}
	return trip.Revision
}
