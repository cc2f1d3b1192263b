package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"travelsync/internal/domain"
	"travelsync/internal/service"
)

// ──────────────────────────────────────────────
// CONFLICT RESOLUTION SCENARIOS
// ──────────────────────────────────────────────

// conflictEnv extends syncEnv with the conflict and status services.
type conflictEnv struct {
	*syncEnv
	conflictSvc *service.ConflictService
	statusSvc   *service.StatusService
}

func newConflictEnv() *conflictEnv {
	env := newSyncEnv()
	cfg := service.SyncConfig{
		MaxBatchSize: 100,
		LockTTL:      time.Second,
		LockWait:     50 * time.Millisecond,
	}
	return &conflictEnv{
		syncEnv:     env,
		conflictSvc: service.NewConflictService(env.trips, env.expenses, env.conflicts, env.tx, env.locks, cfg),
		statusSvc:   service.NewStatusService(env.conflicts, env.status),
	}
}

// queueTripConflict seeds a completed-vs-cancelled status conflict and
// returns its ID. Server is at revision 5 with status completed.
func (env *conflictEnv) queueTripConflict(t *testing.T) string {
	t.Helper()

	trip := baseTrip("trip-1", "owner-1")
	trip.Revision = 4
	env.seedTrip(t, trip)

	completed := *trip
	completed.Status = domain.TripStatusCompleted
	completed.EndTime = tripStart.Add(time.Hour)
	completed.Revision = 5
	env.trips.AddTrip(&completed)

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
		t.Fatalf("queueing conflict: %v", err)
	}
	if manifest.Entries[0].Status != domain.RecordConflict {
		t.Fatalf("expected conflict, got %+v", manifest.Entries[0])
	}
	return manifest.Entries[0].ConflictID
}

func TestConflictResolve_KeepServer_LeavesRecordUntouched(t *testing.T) {
	t.Parallel()

	env := newConflictEnv()
	conflictID := env.queueTripConflict(t)

	result, err := env.conflictSvc.Resolve(context.Background(), "owner-1", service.ResolveRequest{
		ConflictID: conflictID,
		Resolution: domain.ResolutionKeepServer,
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if result.Revision != 5 {
		t.Errorf("keep-server must not bump the revision, got %d", result.Revision)
	}
	if got := env.trips.GetTrip("trip-1").Status; got != domain.TripStatusCompleted {
		t.Errorf("expected server status kept, got %s", got)
	}
	if env.conflicts.GetConflict(conflictID).Status != domain.ConflictResolved {
		t.Error("expected conflict marked resolved")
	}
}

func TestConflictResolve_KeepClient_AppliesQueuedValue(t *testing.T) {
	t.Parallel()

	env := newConflictEnv()
	conflictID := env.queueTripConflict(t)

	result, err := env.conflictSvc.Resolve(context.Background(), "owner-1", service.ResolveRequest{
		ConflictID: conflictID,
		Resolution: domain.ResolutionKeepClient,
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if result.Revision != 6 {
		t.Errorf("keep-client applies a mutation, expected revision 6, got %d", result.Revision)
	}
	if got := env.trips.GetTrip("trip-1").Status; got != domain.TripStatusCancelled {
		t.Errorf("expected client status applied, got %s", got)
	}
}

func TestConflictResolve_KeepClient_ReplayedBatchIsNoOp(t *testing.T) {
	t.Parallel()

	env := newConflictEnv()
	conflictID := env.queueTripConflict(t)

	if _, err := env.conflictSvc.Resolve(context.Background(), "owner-1", service.ResolveRequest{
		ConflictID: conflictID,
		Resolution: domain.ResolutionKeepClient,
	}); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// The offline client never learned its value won and uploads the
	// same batch again. The replay must be absorbed as a no-op: entry
	// accepted at the unchanged revision, no second conflict queued.
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
		t.Fatalf("replay: %v", err)
	}

	entry := manifest.Entries[0]
	if entry.Status != domain.RecordAccepted {
		t.Fatalf("expected replay accepted, got %+v", entry)
	}
	if entry.Revision != 6 {
		t.Errorf("replay must not bump the revision, got %d", entry.Revision)
	}
	if got := env.trips.GetTrip("trip-1").Revision; got != 6 {
		t.Errorf("expected trip still at revision 6, got %d", got)
	}
	if pending := env.conflicts.PendingConflicts(); len(pending) != 0 {
		t.Errorf("replay must not queue a new conflict, got %d pending", len(pending))
	}
}

func TestConflictResolve_Merged_AppliesSuppliedFields(t *testing.T) {
	t.Parallel()

	env := newConflictEnv()
	conflictID := env.queueTripConflict(t)

	result, err := env.conflictSvc.Resolve(context.Background(), "owner-1", service.ResolveRequest{
		ConflictID:   conflictID,
		Resolution:   domain.ResolutionMerged,
		MergedFields: domain.FieldMap{"status": "completed", "distanceMeters": float64(150)},
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	trip := env.trips.GetTrip("trip-1")
	if trip.Status != domain.TripStatusCompleted || trip.DistanceMeters != 150 {
		t.Errorf("expected merged fields applied, got status=%s distance=%f", trip.Status, trip.DistanceMeters)
	}
	if result.Revision != 6 {
		t.Errorf("expected revision 6 after merged resolution, got %d", result.Revision)
	}
}

func TestConflictResolve_SecondAttempt_Fails(t *testing.T) {
	t.Parallel()

	env := newConflictEnv()
	conflictID := env.queueTripConflict(t)

	req := service.ResolveRequest{ConflictID: conflictID, Resolution: domain.ResolutionKeepServer}
	if _, err := env.conflictSvc.Resolve(context.Background(), "owner-1", req); err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	_, err := env.conflictSvc.Resolve(context.Background(), "owner-1", req)
	if !errors.Is(err, service.ErrConflictAlreadyResolved) {
		t.Fatalf("expected ErrConflictAlreadyResolved, got: %v", err)
	}

	if got := env.trips.GetTrip("trip-1").Revision; got != 5 {
		t.Errorf("repeated resolution must not mutate the record, revision now %d", got)
	}
}

func TestConflictResolve_MergedWithoutFields_Fails(t *testing.T) {
	t.Parallel()

	env := newConflictEnv()
	conflictID := env.queueTripConflict(t)

	_, err := env.conflictSvc.Resolve(context.Background(), "owner-1", service.ResolveRequest{
		ConflictID: conflictID,
		Resolution: domain.ResolutionMerged,
	})
	if !errors.Is(err, service.ErrMissingMergedFields) {
		t.Fatalf("expected ErrMissingMergedFields, got: %v", err)
	}
}

func TestConflictResolve_ForeignConflict_Forbidden(t *testing.T) {
	t.Parallel()

	env := newConflictEnv()
	conflictID := env.queueTripConflict(t)

	_, err := env.conflictSvc.Resolve(context.Background(), "intruder", service.ResolveRequest{
		ConflictID: conflictID,
		Resolution: domain.ResolutionKeepServer,
	})
	if !errors.Is(err, service.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got: %v", err)
	}
}

func TestConflictList_OldestFirst(t *testing.T) {
	t.Parallel()

	env := newConflictEnv()

	for i, id := range []string{"c-new", "c-old"} {
		env.conflicts.AddConflict(&domain.ConflictRecord{
			ID:         id,
			EntityType: domain.EntityTrip,
			EntityID:   "trip-1",
			OwnerID:    "owner-1",
			DetectedAt: tripStart.Add(time.Duration(-i) * time.Hour),
			Status:     domain.ConflictPending,
		})
	}

	conflicts, err := env.conflictSvc.List(context.Background(), "owner-1", domain.ConflictPending)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(conflicts) != 2 {
		t.Fatalf("expected 2 conflicts, got %d", len(conflicts))
	}
	if conflicts[0].ID != "c-old" {
		t.Errorf("expected oldest conflict first, got %s", conflicts[0].ID)
	}
}

func TestSyncStatus_ReflectsPendingConflicts(t *testing.T) {
	t.Parallel()

	env := newConflictEnv()

	status, err := env.statusSvc.Get(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if status.State != service.SyncStateSynced {
		t.Errorf("expected synced with no conflicts, got %s", status.State)
	}

	conflictID := env.queueTripConflict(t)

	status, err = env.statusSvc.Get(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if status.State != service.SyncStatePending {
		t.Errorf("expected pending with a queued conflict, got %s", status.State)
	}
	if status.LastSyncAt.IsZero() {
		t.Error("expected last sync time from the status cache")
	}

	if _, err := env.conflictSvc.Resolve(context.Background(), "owner-1", service.ResolveRequest{
		ConflictID: conflictID,
		Resolution: domain.ResolutionKeepServer,
	}); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	status, err = env.statusSvc.Get(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if status.State != service.SyncStateSynced {
		t.Errorf("expected synced after resolution, got %s", status.State)
	}
}
