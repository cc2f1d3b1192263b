package tests

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"travelsync/internal/domain"
	"travelsync/internal/repository"
	"travelsync/internal/service"
)

// ──────────────────────────────────────────────
// SYNC ENGINE SCENARIOS
// ──────────────────────────────────────────────

// syncEnv bundles the mocks behind one SyncService.
type syncEnv struct {
	trips     *MockTripRepository
	expenses  *MockExpenseRepository
	locations *MockLocationRepository
	conflicts *MockConflictRepository
	revisions *MockRevisionLogRepository
	locks     *MockLockStore
	status    *MockSyncStatusStore
	tx        *MockTxRunner
	sync      *service.SyncService
}

func newSyncEnv() *syncEnv {
	env := &syncEnv{
		trips:     NewMockTripRepository(),
		expenses:  NewMockExpenseRepository(),
		locations: NewMockLocationRepository(),
		conflicts: NewMockConflictRepository(),
		revisions: NewMockRevisionLogRepository(),
		locks:     NewMockLockStore(),
		status:    NewMockSyncStatusStore(),
	}
	env.tx = NewMockTxRunner(repository.Stores{
		Trips:     env.trips,
		Expenses:  env.expenses,
		Locations: env.locations,
		Conflicts: env.conflicts,
		Revisions: env.revisions,
	})
	env.sync = service.NewSyncService(
		env.trips, env.expenses, env.conflicts, env.revisions,
		env.tx, env.locks, env.status,
		service.SyncConfig{
			MaxBatchSize: 100,
			LockTTL:      time.Second,
			LockWait:     50 * time.Millisecond,
		},
	)
	return env
}

var tripStart = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// seedTrip stores a trip at the given revision and records its current
// field snapshot in the revision log.
func (env *syncEnv) seedTrip(t *testing.T, trip *domain.Trip) {
	t.Helper()
	env.trips.AddTrip(trip)
	if err := env.revisions.Record(context.Background(), domain.EntityTrip, trip.ID, trip.Revision, trip.Fields()); err != nil {
		t.Fatalf("seed revision: %v", err)
	}
}

func baseTrip(id, ownerID string) *domain.Trip {
	return &domain.Trip{
		ID:          id,
		OwnerID:     ownerID,
		Origin:      "Berlin",
		Destination: "Hamburg",
		StartTime:   tripStart,
		TravelMode:  domain.TravelModeDriving,
		TripType:    domain.TripTypeBusiness,
		Status:      domain.TripStatusInProgress,
		Revision:    1,
		UpdatedAt:   tripStart,
	}
}

func tripCreateFields() domain.FieldMap {
	return domain.FieldMap{
		"origin":          "Berlin",
		"destination":     "Hamburg",
		"startTime":       tripStart.Format(time.RFC3339),
		"travelMode":      "driving",
		"tripType":        "business",
		"status":          "inProgress",
		"distanceMeters":  float64(0),
		"durationSeconds": float64(0),
	}
}

func TestSync_CreateTripWithPoints_CommitsAtomically(t *testing.T) {
	t.Parallel()

	env := newSyncEnv()

	batch := domain.SyncBatch{
		ClientID: "phone-1",
		Records: []domain.RecordMutation{
			{
				EntityType:    domain.EntityLocationPoint,
				ClientLocalID: "p1",
				Fields: domain.FieldMap{
					"tripId":    "t1",
					"lat":       52.52,
					"lng":       13.40,
					"timestamp": tripStart.Add(time.Minute).Format(time.RFC3339),
				},
			},
			{
				EntityType:    domain.EntityTrip,
				ClientLocalID: "t1",
				Fields:        tripCreateFields(),
			},
			{
				EntityType:    domain.EntityLocationPoint,
				ClientLocalID: "p2",
				Fields: domain.FieldMap{
					"tripId":    "t1",
					"lat":       52.53,
					"lng":       13.41,
					"timestamp": tripStart.Add(2 * time.Minute).Format(time.RFC3339),
				},
			},
		},
	}

	manifest, err := env.sync.ProcessBatch(context.Background(), "owner-1", batch)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	for i, entry := range manifest.Entries {
		if entry.Status != domain.RecordAccepted {
			t.Fatalf("entry %d: expected accepted, got %s (%s)", i, entry.Status, entry.Reason)
		}
	}

	tripID := manifest.Entries[1].ServerID
	if tripID == "" {
		t.Fatal("expected server ID for created trip")
	}
	if manifest.Entries[1].Revision != 1 {
		t.Errorf("expected created trip at revision 1, got %d", manifest.Entries[1].Revision)
	}

	// Points resolve their batch-local trip reference to the real ID.
	if got := env.locations.CountPoints(tripID); got != 2 {
		t.Errorf("expected 2 points stored for trip, got %d", got)
	}
}

func TestSync_ReplayedBatch_IsIdempotent(t *testing.T) {
	t.Parallel()

	env := newSyncEnv()
	env.seedTrip(t, baseTrip("trip-1", "owner-1"))

	mutation := domain.RecordMutation{
		EntityType:    domain.EntityTrip,
		ClientLocalID: "m1",
		ServerID:      "trip-1",
		BaseRevision:  1,
		Fields:        domain.FieldMap{"destination": "Munich"},
	}
	batch := domain.SyncBatch{ClientID: "phone-1", Records: []domain.RecordMutation{mutation}}

	first, err := env.sync.ProcessBatch(context.Background(), "owner-1", batch)
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if first.Entries[0].Status != domain.RecordAccepted || first.Entries[0].Revision != 2 {
		t.Fatalf("first apply: expected accepted at revision 2, got %+v", first.Entries[0])
	}

	// The client never saw the manifest and retries the same batch.
	second, err := env.sync.ProcessBatch(context.Background(), "owner-1", batch)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if second.Entries[0].Status != domain.RecordAccepted {
		t.Fatalf("replay: expected accepted, got %+v", second.Entries[0])
	}
	if second.Entries[0].Revision != 2 {
		t.Errorf("replay must not bump the revision again: got %d", second.Entries[0].Revision)
	}
	if got := env.trips.GetTrip("trip-1").Destination; got != "Munich" {
		t.Errorf("expected destination Munich, got %s", got)
	}
}

func TestSync_StaleBaseDisjointFields_MergesBothEdits(t *testing.T) {
	t.Parallel()

	env := newSyncEnv()

	// Revision 4 is the client's base.
	trip := baseTrip("trip-1", "owner-1")
	trip.Revision = 4
	env.seedTrip(t, trip)

	// The server moved on: trip completed at revision 5.
	completed := *trip
	completed.Status = domain.TripStatusCompleted
	completed.EndTime = tripStart.Add(time.Hour)
	completed.Revision = 5
	env.trips.AddTrip(&completed)
	if err := env.revisions.Record(context.Background(), domain.EntityTrip, trip.ID, 5, completed.Fields()); err != nil {
		t.Fatal(err)
	}

	// The client, still on revision 4, recorded the distance.
	manifest, err := env.sync.ProcessBatch(context.Background(), "owner-1", domain.SyncBatch{
		ClientID: "phone-1",
		Records: []domain.RecordMutation{{
			EntityType:    domain.EntityTrip,
			ClientLocalID: "m1",
			ServerID:      "trip-1",
			BaseRevision:  4,
			Fields:        domain.FieldMap{"distanceMeters": float64(150)},
		}},
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	entry := manifest.Entries[0]
	if entry.Status != domain.RecordAccepted {
		t.Fatalf("expected accepted, got %s (%s)", entry.Status, entry.Reason)
	}
	if entry.Revision != 6 {
		t.Errorf("expected revision 6 after merge, got %d", entry.Revision)
	}

	merged := env.trips.GetTrip("trip-1")
	if merged.Status != domain.TripStatusCompleted {
		t.Errorf("merge must keep the server's status, got %s", merged.Status)
	}
	if merged.DistanceMeters != 150 {
		t.Errorf("merge must apply the client's distance, got %f", merged.DistanceMeters)
	}
	if len(env.conflicts.PendingConflicts()) != 0 {
		t.Error("disjoint edits must not queue a conflict")
	}
}

func TestSync_StaleBaseOverlappingField_QueuesConflict(t *testing.T) {
	t.Parallel()

	env := newSyncEnv()

	trip := baseTrip("trip-1", "owner-1")
	trip.Revision = 4
	env.seedTrip(t, trip)

	completed := *trip
	completed.Status = domain.TripStatusCompleted
	completed.EndTime = tripStart.Add(time.Hour)
	completed.Revision = 5
	env.trips.AddTrip(&completed)

	// The client changed status too, to a different value.
	manifest, err := env.sync.ProcessBatch(context.Background(), "owner-1", domain.SyncBatch{
		ClientID: "phone-1",
		Records: []domain.RecordMutation{{
			EntityType:    domain.EntityTrip,
			ClientLocalID: "m1",
			ServerID:      "trip-1",
			BaseRevision:  4,
			Fields:        domain.FieldMap{"status": "cancelled"},
		}},
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	entry := manifest.Entries[0]
	if entry.Status != domain.RecordConflict {
		t.Fatalf("expected conflict, got %s", entry.Status)
	}
	if entry.ConflictID == "" {
		t.Fatal("expected conflict ID in manifest")
	}

	// Server value stays untouched.
	current := env.trips.GetTrip("trip-1")
	if current.Status != domain.TripStatusCompleted || current.Revision != 5 {
		t.Errorf("server record must not change on conflict, got status=%s revision=%d", current.Status, current.Revision)
	}

	conflict := env.conflicts.GetConflict(entry.ConflictID)
	if conflict == nil {
		t.Fatal("expected conflict persisted")
	}
	if conflict.Status != domain.ConflictPending {
		t.Errorf("expected pending conflict, got %s", conflict.Status)
	}
	if conflict.ServerRevision != 5 {
		t.Errorf("expected server revision 5 captured, got %d", conflict.ServerRevision)
	}
}

func TestSync_BothSidesSameValue_IsNoConflict(t *testing.T) {
	t.Parallel()

	env := newSyncEnv()

	trip := baseTrip("trip-1", "owner-1")
	trip.Revision = 4
	env.seedTrip(t, trip)

	// Server and client independently set the same destination.
	updated := *trip
	updated.Destination = "Munich"
	updated.Revision = 5
	env.trips.AddTrip(&updated)

	manifest, err := env.sync.ProcessBatch(context.Background(), "owner-1", domain.SyncBatch{
		ClientID: "phone-1",
		Records: []domain.RecordMutation{{
			EntityType:    domain.EntityTrip,
			ClientLocalID: "m1",
			ServerID:      "trip-1",
			BaseRevision:  4,
			Fields:        domain.FieldMap{"destination": "Munich"},
		}},
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	entry := manifest.Entries[0]
	if entry.Status != domain.RecordAccepted {
		t.Fatalf("identical values on both sides must not conflict, got %s", entry.Status)
	}
	if entry.Revision != 5 {
		t.Errorf("a no-op must keep the server revision, got %d", entry.Revision)
	}
}

func TestSync_LockedAggregate_PartialSuccess(t *testing.T) {
	t.Parallel()

	env := newSyncEnv()

	var records []domain.RecordMutation
	for _, localID := range []string{"t1", "t2", "t3", "t4", "t5"} {
		records = append(records, domain.RecordMutation{
			EntityType:    domain.EntityTrip,
			ClientLocalID: localID,
			Fields:        tripCreateFields(),
		})
	}

	// A concurrent session holds t3's aggregate lock past the bounded wait.
	env.locks.BlockedKeys["trip:local:t3"] = true

	manifest, err := env.sync.ProcessBatch(context.Background(), "owner-1", domain.SyncBatch{
		ClientID: "phone-1",
		Records:  records,
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	for i, entry := range manifest.Entries {
		if i == 2 {
			if entry.Status != domain.RecordRejected || entry.Reason != domain.RejectBusy {
				t.Errorf("entry %d: expected Busy rejection, got %+v", i, entry)
			}
			continue
		}
		if entry.Status != domain.RecordAccepted {
			t.Errorf("entry %d: expected accepted, got %+v", i, entry)
		}
	}

	if got := env.trips.CountTrips(); got != 4 {
		t.Errorf("expected 4 trips committed, got %d", got)
	}
}

func TestSync_UpdateWithoutBaseRevision_Rejected(t *testing.T) {
	t.Parallel()

	env := newSyncEnv()
	env.seedTrip(t, baseTrip("trip-1", "owner-1"))

	manifest, err := env.sync.ProcessBatch(context.Background(), "owner-1", domain.SyncBatch{
		ClientID: "phone-1",
		Records: []domain.RecordMutation{{
			EntityType:    domain.EntityTrip,
			ClientLocalID: "m1",
			ServerID:      "trip-1",
			Fields:        domain.FieldMap{"destination": "Munich"},
		}},
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	entry := manifest.Entries[0]
	if entry.Status != domain.RecordRejected || entry.Reason != domain.RejectMissingBaseRevision {
		t.Errorf("expected MissingBaseRevision rejection, got %+v", entry)
	}
	if env.trips.GetTrip("trip-1").Destination != "Hamburg" {
		t.Error("rejected mutation must not modify the record")
	}
}

func TestSync_FutureBaseRevision_Rejected(t *testing.T) {
	t.Parallel()

	env := newSyncEnv()
	env.seedTrip(t, baseTrip("trip-1", "owner-1"))

	manifest, err := env.sync.ProcessBatch(context.Background(), "owner-1", domain.SyncBatch{
		ClientID: "phone-1",
		Records: []domain.RecordMutation{{
			EntityType:    domain.EntityTrip,
			ClientLocalID: "m1",
			ServerID:      "trip-1",
			BaseRevision:  7,
			Fields:        domain.FieldMap{"destination": "Munich"},
		}},
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	entry := manifest.Entries[0]
	if entry.Status != domain.RecordRejected || entry.Reason != domain.RejectValidation {
		t.Errorf("expected validation rejection for future base revision, got %+v", entry)
	}
}

func TestSync_PointsWithoutParentTrip_Rejected(t *testing.T) {
	t.Parallel()

	env := newSyncEnv()

	manifest, err := env.sync.ProcessBatch(context.Background(), "owner-1", domain.SyncBatch{
		ClientID: "phone-1",
		Records: []domain.RecordMutation{{
			EntityType:    domain.EntityLocationPoint,
			ClientLocalID: "p1",
			Fields: domain.FieldMap{
				"tripId":    "no-such-trip",
				"lat":       52.52,
				"lng":       13.40,
				"timestamp": tripStart.Format(time.RFC3339),
			},
		}},
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	entry := manifest.Entries[0]
	if entry.Status != domain.RecordRejected || entry.Reason != domain.RejectValidation {
		t.Errorf("expected validation rejection for orphan point, got %+v", entry)
	}
}

func TestSync_DuplicatePointUpload_Deduplicated(t *testing.T) {
	t.Parallel()

	env := newSyncEnv()
	env.seedTrip(t, baseTrip("trip-1", "owner-1"))

	point := domain.RecordMutation{
		EntityType:    domain.EntityLocationPoint,
		ClientLocalID: "p1",
		Fields: domain.FieldMap{
			"tripId":    "trip-1",
			"lat":       52.52,
			"lng":       13.40,
			"timestamp": tripStart.Add(time.Minute).Format(time.RFC3339),
		},
	}
	batch := domain.SyncBatch{ClientID: "phone-1", Records: []domain.RecordMutation{point}}

	for i := 0; i < 2; i++ {
		manifest, err := env.sync.ProcessBatch(context.Background(), "owner-1", batch)
		if err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
		if manifest.Entries[0].Status != domain.RecordAccepted {
			t.Fatalf("apply %d: expected accepted, got %+v", i, manifest.Entries[0])
		}
	}

	if got := env.locations.CountPoints("trip-1"); got != 1 {
		t.Errorf("expected replayed point stored once, got %d", got)
	}
}

func TestSync_ForeignRecord_RejectsWholeBatch(t *testing.T) {
	t.Parallel()

	env := newSyncEnv()
	env.seedTrip(t, baseTrip("trip-1", "someone-else"))

	_, err := env.sync.ProcessBatch(context.Background(), "owner-1", domain.SyncBatch{
		ClientID: "phone-1",
		Records: []domain.RecordMutation{
			{EntityType: domain.EntityTrip, ClientLocalID: "t-new", Fields: tripCreateFields()},
			{EntityType: domain.EntityTrip, ClientLocalID: "m1", ServerID: "trip-1", BaseRevision: 1, Fields: domain.FieldMap{"destination": "Munich"}},
		},
	})
	if !errors.Is(err, service.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got: %v", err)
	}

	// Nothing was committed, not even the valid create.
	if got := env.trips.CountTrips(); got != 1 {
		t.Errorf("expected no new trips, got %d total", got)
	}
}

func TestSync_BatchValidation(t *testing.T) {
	t.Parallel()

	env := newSyncEnv()

	_, err := env.sync.ProcessBatch(context.Background(), "owner-1", domain.SyncBatch{ClientID: "phone-1"})
	if !errors.Is(err, service.ErrEmptyBatch) {
		t.Errorf("expected ErrEmptyBatch, got: %v", err)
	}

	_, err = env.sync.ProcessBatch(context.Background(), "owner-1", domain.SyncBatch{
		Records: []domain.RecordMutation{{EntityType: domain.EntityTrip, ClientLocalID: "t1", Fields: tripCreateFields()}},
	})
	var verr *service.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected validation error for missing client ID, got: %v", err)
	}

	big := domain.SyncBatch{ClientID: "phone-1"}
	for i := 0; i < 101; i++ {
		big.Records = append(big.Records, domain.RecordMutation{EntityType: domain.EntityTrip, ClientLocalID: "t", Fields: tripCreateFields()})
	}
	_, err = env.sync.ProcessBatch(context.Background(), "owner-1", big)
	if !errors.Is(err, service.ErrBatchTooLarge) {
		t.Errorf("expected ErrBatchTooLarge, got: %v", err)
	}
}

func TestSync_UnknownEntityType_RejectedPerRecord(t *testing.T) {
	t.Parallel()

	env := newSyncEnv()

	manifest, err := env.sync.ProcessBatch(context.Background(), "owner-1", domain.SyncBatch{
		ClientID: "phone-1",
		Records: []domain.RecordMutation{
			{EntityType: "photo", ClientLocalID: "x1", Fields: domain.FieldMap{}},
			{EntityType: domain.EntityTrip, ClientLocalID: "t1", Fields: tripCreateFields()},
		},
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if manifest.Entries[0].Status != domain.RecordRejected || manifest.Entries[0].Reason != domain.RejectUnknownEntity {
		t.Errorf("expected UnknownEntity rejection, got %+v", manifest.Entries[0])
	}
	if manifest.Entries[1].Status != domain.RecordAccepted {
		t.Errorf("unknown entity must not block its neighbors, got %+v", manifest.Entries[1])
	}
}

func TestSync_DuplicateTripMutationInBatch_Rejected(t *testing.T) {
	t.Parallel()

	env := newSyncEnv()
	env.seedTrip(t, baseTrip("trip-1", "owner-1"))

	manifest, err := env.sync.ProcessBatch(context.Background(), "owner-1", domain.SyncBatch{
		ClientID: "phone-1",
		Records: []domain.RecordMutation{
			{EntityType: domain.EntityTrip, ClientLocalID: "m1", ServerID: "trip-1", BaseRevision: 1, Fields: domain.FieldMap{"destination": "Munich"}},
			{EntityType: domain.EntityTrip, ClientLocalID: "m2", ServerID: "trip-1", BaseRevision: 1, Fields: domain.FieldMap{"destination": "Cologne"}},
		},
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if manifest.Entries[0].Status != domain.RecordAccepted {
		t.Errorf("first mutation should apply, got %+v", manifest.Entries[0])
	}
	if manifest.Entries[1].Status != domain.RecordRejected {
		t.Errorf("second mutation of the same trip must be rejected, got %+v", manifest.Entries[1])
	}
}

func TestSync_ForceSync_OverwritesServerState(t *testing.T) {
	t.Parallel()

	env := newSyncEnv()

	trip := baseTrip("trip-1", "owner-1")
	trip.Revision = 5
	trip.Status = domain.TripStatusCompleted
	trip.EndTime = tripStart.Add(time.Hour)
	env.seedTrip(t, trip)

	manifest, err := env.sync.ProcessForce(context.Background(), "owner-1", domain.SyncBatch{
		ClientID: "phone-1",
		Records: []domain.RecordMutation{{
			EntityType:    domain.EntityTrip,
			ClientLocalID: "m1",
			ServerID:      "trip-1",
			BaseRevision:  4,
			Fields:        domain.FieldMap{"status": "cancelled"},
		}},
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	entry := manifest.Entries[0]
	if entry.Status != domain.RecordAccepted {
		t.Fatalf("force sync must accept, got %+v", entry)
	}
	if entry.Revision != 6 {
		t.Errorf("force sync still bumps the revision, got %d", entry.Revision)
	}
	if got := env.trips.GetTrip("trip-1").Status; got != domain.TripStatusCancelled {
		t.Errorf("expected client status applied, got %s", got)
	}
	if len(env.conflicts.PendingConflicts()) != 0 {
		t.Error("force sync must not queue conflicts")
	}
}

func TestSync_CommitFailure_RejectsAggregateOnly(t *testing.T) {
	t.Parallel()

	env := newSyncEnv()
	env.trips.CreateError = ErrMockDBConstraint

	manifest, err := env.sync.ProcessBatch(context.Background(), "owner-1", domain.SyncBatch{
		ClientID: "phone-1",
		Records: []domain.RecordMutation{
			{EntityType: domain.EntityTrip, ClientLocalID: "t1", Fields: tripCreateFields()},
			{EntityType: domain.EntityExpense, ClientLocalID: "e1", Fields: expenseCreateFields()},
		},
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if manifest.Entries[0].Status != domain.RecordRejected || manifest.Entries[0].Reason != domain.RejectAggregateCommitFailed {
		t.Errorf("expected AggregateCommitFailed, got %+v", manifest.Entries[0])
	}
	if manifest.Entries[1].Status != domain.RecordAccepted {
		t.Errorf("expense aggregate must still commit, got %+v", manifest.Entries[1])
	}
}

func TestSync_UpdatesStatusCache(t *testing.T) {
	t.Parallel()

	env := newSyncEnv()

	_, err := env.sync.ProcessBatch(context.Background(), "owner-1", domain.SyncBatch{
		ClientID: "phone-1",
		Records: []domain.RecordMutation{
			{EntityType: domain.EntityTrip, ClientLocalID: "t1", Fields: tripCreateFields()},
		},
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	cached, err := env.status.Get(context.Background(), "owner-1")
	if err != nil || cached == nil {
		t.Fatalf("expected cached status, got %v (%v)", cached, err)
	}
	if cached.ClientID != "phone-1" || cached.LastSyncAt.IsZero() {
		t.Errorf("unexpected cached status: %+v", cached)
	}
}

// ──────────────────────────────────────────────
// EXPENSE SCENARIOS
// ──────────────────────────────────────────────

func expenseCreateFields() domain.FieldMap {
	return domain.FieldMap{
		"amount":   float64(42.50),
		"currency": "EUR",
		"category": "food",
		"date":     tripStart.Format(time.RFC3339),
	}
}

func TestSync_ExpenseCreateAndCleanUpdate(t *testing.T) {
	t.Parallel()

	env := newSyncEnv()

	created, err := env.sync.ProcessBatch(context.Background(), "owner-1", domain.SyncBatch{
		ClientID: "phone-1",
		Records: []domain.RecordMutation{
			{EntityType: domain.EntityExpense, ClientLocalID: "e1", Fields: expenseCreateFields()},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	entry := created.Entries[0]
	if entry.Status != domain.RecordAccepted || entry.Revision != 1 {
		t.Fatalf("expected expense created at revision 1, got %+v", entry)
	}

	updated, err := env.sync.ProcessBatch(context.Background(), "owner-1", domain.SyncBatch{
		ClientID: "phone-1",
		Records: []domain.RecordMutation{{
			EntityType:    domain.EntityExpense,
			ClientLocalID: "e1-edit",
			ServerID:      entry.ServerID,
			BaseRevision:  1,
			Fields:        domain.FieldMap{"amount": float64(50)},
		}},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Entries[0].Status != domain.RecordAccepted || updated.Entries[0].Revision != 2 {
		t.Fatalf("expected clean update to revision 2, got %+v", updated.Entries[0])
	}
	if got := env.expenses.GetExpense(entry.ServerID).Amount; got != 50 {
		t.Errorf("expected amount 50, got %f", got)
	}
}

func TestSync_ExpenseNegativeAmount_Rejected(t *testing.T) {
	t.Parallel()

	env := newSyncEnv()

	fields := expenseCreateFields()
	fields["amount"] = float64(-1)

	manifest, err := env.sync.ProcessBatch(context.Background(), "owner-1", domain.SyncBatch{
		ClientID: "phone-1",
		Records: []domain.RecordMutation{
			{EntityType: domain.EntityExpense, ClientLocalID: "e1", Fields: fields},
		},
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	entry := manifest.Entries[0]
	if entry.Status != domain.RecordRejected || entry.Reason != domain.RejectValidation {
		t.Errorf("expected validation rejection, got %+v", entry)
	}
}

func TestSync_ConcurrentBatches_SerializeRevisions(t *testing.T) {
	t.Parallel()

	env := newSyncEnv()
	env.seedTrip(t, baseTrip("trip-1", "owner-1"))

	// A generous wait budget so contending sessions queue on the
	// aggregate lock instead of reporting Busy.
	svc := service.NewSyncService(
		env.trips, env.expenses, env.conflicts, env.revisions,
		env.tx, env.locks, env.status,
		service.SyncConfig{
			MaxBatchSize: 100,
			LockTTL:      time.Second,
			LockWait:     2 * time.Second,
		},
	)

	// Four clients edited revision 1 offline, each touching a different
	// field, and upload simultaneously.
	mutations := []domain.FieldMap{
		{"distanceMeters": float64(1200)},
		{"durationSeconds": float64(900)},
		{"destination": "Munich"},
		{"origin": "Potsdam"},
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var accepted []int64

	for i, fields := range mutations {
		wg.Add(1)
		go func(clientID string, fields domain.FieldMap) {
			defer wg.Done()

			manifest, err := svc.ProcessBatch(context.Background(), "owner-1", domain.SyncBatch{
				ClientID: clientID,
				Records: []domain.RecordMutation{{
					EntityType:    domain.EntityTrip,
					ClientLocalID: "m1",
					ServerID:      "trip-1",
					BaseRevision:  1,
					Fields:        fields,
				}},
			})
			if err != nil {
				t.Errorf("batch %s: %v", clientID, err)
				return
			}
			entry := manifest.Entries[0]
			if entry.Status != domain.RecordAccepted {
				t.Errorf("batch %s: expected accepted, got %+v", clientID, entry)
				return
			}

			mu.Lock()
			accepted = append(accepted, entry.Revision)
			mu.Unlock()
		}("phone-"+strconv.Itoa(i+1), fields)
	}
	wg.Wait()

	// Every accepted mutation bumped the revision by exactly one: the
	// four sessions land on 2..5 with no duplicates and no gaps.
	if len(accepted) != 4 {
		t.Fatalf("expected 4 accepted mutations, got %d", len(accepted))
	}
	seen := make(map[int64]bool)
	for _, rev := range accepted {
		if seen[rev] {
			t.Errorf("revision %d assigned twice", rev)
		}
		seen[rev] = true
	}
	for rev := int64(2); rev <= 5; rev++ {
		if !seen[rev] {
			t.Errorf("revision %d skipped", rev)
		}
	}

	trip := env.trips.GetTrip("trip-1")
	if trip.Revision != 5 {
		t.Errorf("expected final revision 5, got %d", trip.Revision)
	}
	if trip.DistanceMeters != 1200 || trip.DurationSeconds != 900 {
		t.Errorf("expected numeric edits merged, got %+v", trip)
	}
	if trip.Origin != "Potsdam" || trip.Destination != "Munich" {
		t.Errorf("expected route edits merged, got %+v", trip)
	}
	if pending := env.conflicts.PendingConflicts(); len(pending) != 0 {
		t.Errorf("disjoint concurrent edits must not conflict, got %d pending", len(pending))
	}

	// Each intermediate revision left a snapshot for future merges.
	for rev := int64(2); rev <= 5; rev++ {
		if _, err := env.revisions.GetSnapshot(context.Background(), domain.EntityTrip, "trip-1", rev); err != nil {
			t.Errorf("expected snapshot at revision %d: %v", rev, err)
		}
	}
}
