package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"travelsync/internal/domain"
	"travelsync/internal/repository"
)

// resolver.go holds the apply side of the merge policy: every accepted
// mutation lands here, bumps the revision by exactly one, stamps
// updatedAt, and records the new snapshot in the revision log. All
// functions run inside the caller's transaction-scoped stores.

func applyTripCreate(ctx context.Context, st repository.Stores, ownerID string, fields domain.FieldMap, now time.Time) (*domain.Trip, error) {
	trip := &domain.Trip{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Revision:  1,
		UpdatedAt: now,
	}

	if err := trip.ApplyFields(fields); err != nil {
		return nil, &ValidationError{Err: err}
	}
	if err := trip.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}

	if err := st.Trips.Create(ctx, trip); err != nil {
		return nil, err
	}
	if err := st.Revisions.Record(ctx, domain.EntityTrip, trip.ID, trip.Revision, trip.Fields()); err != nil {
		return nil, err
	}

	return trip, nil
}

func applyTripUpdate(ctx context.Context, st repository.Stores, current *domain.Trip, merged domain.FieldMap, clientRevision int64, now time.Time) (*domain.Trip, error) {
	updated := *current
	if err := updated.ApplyFields(merged); err != nil {
		return nil, &ValidationError{Err: err}
	}
	if err := updated.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}

	updated.Revision = current.Revision + 1
	updated.ClientRevision = clientRevision
	updated.UpdatedAt = now

	if err := st.Trips.Update(ctx, &updated, current.Revision); err != nil {
		return nil, err
	}
	if err := st.Revisions.Record(ctx, domain.EntityTrip, updated.ID, updated.Revision, updated.Fields()); err != nil {
		return nil, err
	}

	return &updated, nil
}

func applyExpenseCreate(ctx context.Context, st repository.Stores, ownerID string, fields domain.FieldMap, now time.Time) (*domain.Expense, error) {
	expense := &domain.Expense{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Revision:  1,
		UpdatedAt: now,
	}

	if err := expense.ApplyFields(fields); err != nil {
		return nil, &ValidationError{Err: err}
	}
	if err := expense.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}

	if err := st.Expenses.Create(ctx, expense); err != nil {
		return nil, err
	}
	if err := st.Revisions.Record(ctx, domain.EntityExpense, expense.ID, expense.Revision, expense.Fields()); err != nil {
		return nil, err
	}

	return expense, nil
}

func applyExpenseUpdate(ctx context.Context, st repository.Stores, current *domain.Expense, merged domain.FieldMap, now time.Time) (*domain.Expense, error) {
	updated := *current
	if err := updated.ApplyFields(merged); err != nil {
		return nil, &ValidationError{Err: err}
	}
	if err := updated.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}

	updated.Revision = current.Revision + 1
	updated.UpdatedAt = now

	if err := st.Expenses.Update(ctx, &updated, current.Revision); err != nil {
		return nil, err
	}
	if err := st.Revisions.Record(ctx, domain.EntityExpense, updated.ID, updated.Revision, updated.Fields()); err != nil {
		return nil, err
	}

	return &updated, nil
}

// queueConflict inserts a pending conflict record and returns its ID.
// The server value is left untouched; no automatic resolution is ever
// attempted for overlapping edits.
func queueConflict(ctx context.Context, st repository.Stores, ownerID, clientID string, entityType domain.EntityType, entityID string, serverRevision int64, clientValue, serverValue domain.FieldMap, now time.Time) (string, error) {
	conflict := &domain.ConflictRecord{
		ID:             uuid.New().String(),
		EntityType:     entityType,
		EntityID:       entityID,
		ClientID:       clientID,
		OwnerID:        ownerID,
		ServerRevision: serverRevision,
		ClientValue:    clientValue.Clone(),
		ServerValue:    serverValue.Clone(),
		DetectedAt:     now,
		Status:         domain.ConflictPending,
	}

	if err := st.Conflicts.Create(ctx, conflict); err != nil {
		return "", err
	}

	return conflict.ID, nil
}
