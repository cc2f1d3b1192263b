package service

import (
	"context"
	"errors"
	"log"
	"time"

	"travelsync/internal/domain"
	"travelsync/internal/redis"
	"travelsync/internal/repository"
)

// ConflictService exposes the durable conflict queue: list what is
// pending, inspect one conflict, and apply a user's resolution.
type ConflictService struct {
	trips     repository.TripRepository
	expenses  repository.ExpenseRepository
	conflicts repository.ConflictRepository
	tx        repository.TxRunner
	locks     redis.LockStoreInterface

	lockTTL  time.Duration
	lockWait time.Duration
}

// NewConflictService creates a new ConflictService.
func NewConflictService(
	trips repository.TripRepository,
	expenses repository.ExpenseRepository,
	conflicts repository.ConflictRepository,
	tx repository.TxRunner,
	locks redis.LockStoreInterface,
	cfg SyncConfig,
) *ConflictService {
	return &ConflictService{
		trips:     trips,
		expenses:  expenses,
		conflicts: conflicts,
		tx:        tx,
		locks:     locks,
		lockTTL:   cfg.LockTTL,
		lockWait:  cfg.LockWait,
	}
}

// List returns the owner's conflicts, oldest first. status filters
// when non-empty.
func (s *ConflictService) List(ctx context.Context, ownerID string, status domain.ConflictStatus) ([]*domain.ConflictRecord, error) {
	if ownerID == "" {
		return nil, ErrInvalidOwnerID
	}
	return s.conflicts.ListByOwner(ctx, ownerID, status)
}

// Get returns one conflict, enforcing ownership.
func (s *ConflictService) Get(ctx context.Context, ownerID, conflictID string) (*domain.ConflictRecord, error) {
	if conflictID == "" {
		return nil, ErrInvalidConflictID
	}

	conflict, err := s.conflicts.GetByID(ctx, conflictID)
	if err != nil {
		return nil, err
	}
	if conflict.OwnerID != ownerID {
		return nil, ErrForbidden
	}

	return conflict, nil
}

// ResolveRequest carries a user's decision on a queued conflict.
type ResolveRequest struct {
	ConflictID   string
	Resolution   domain.Resolution
	MergedFields domain.FieldMap // required for ResolutionMerged
}

// ResolveResult reports the entity state after resolution.
type ResolveResult struct {
	Conflict *domain.ConflictRecord
	EntityID string
	Revision int64
	Fields   domain.FieldMap
}

// Resolve applies a resolution to a pending conflict.
//
//   - keep-server discards the client proposal; no mutation happens.
//   - keep-client force-applies the queued client value regardless of
//     the server's current revision.
//   - merged applies the caller-supplied field values.
//
// Resolution is idempotent: a second resolve fails with
// ErrConflictAlreadyResolved.
func (s *ConflictService) Resolve(ctx context.Context, ownerID string, req ResolveRequest) (*ResolveResult, error) {
	if req.ConflictID == "" {
		return nil, ErrInvalidConflictID
	}
	if !domain.ValidResolution(req.Resolution) {
		return nil, ErrInvalidResolution
	}
	if req.Resolution == domain.ResolutionMerged && len(req.MergedFields) == 0 {
		return nil, ErrMissingMergedFields
	}

	conflict, err := s.conflicts.GetByID(ctx, req.ConflictID)
	if err != nil {
		return nil, err
	}
	if conflict.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	if conflict.Status == domain.ConflictResolved {
		return nil, ErrConflictAlreadyResolved
	}

	// Applying a resolution mutates the entity, so it serializes on the
	// same aggregate lock as sync commits.
	lockKey := string(conflict.EntityType) + ":" + conflict.EntityID
	acquired, err := s.locks.AcquireAggregateLock(ctx, ownerID, lockKey, s.lockTTL, s.lockWait)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrBusy
	}

	commitCtx := context.WithoutCancel(ctx)
	defer func() {
		if err := s.locks.ReleaseAggregateLock(commitCtx, ownerID, lockKey); err != nil {
			log.Printf("conflict: lock release failed for %s: %v", lockKey, err)
		}
	}()

	result := &ResolveResult{EntityID: conflict.EntityID}

	err = s.tx.WithinTx(commitCtx, func(ctx context.Context, st repository.Stores) error {
		// MarkResolved's pending-status guard catches a concurrent
		// resolver that slipped in between our read and the lock.
		if err := st.Conflicts.MarkResolved(ctx, conflict.ID, req.Resolution); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrConflictAlreadyResolved
			}
			return err
		}

		switch req.Resolution {
		case domain.ResolutionKeepServer:
			return s.captureCurrent(ctx, st, conflict, result)
		case domain.ResolutionKeepClient:
			return s.applyResolution(ctx, st, conflict, conflict.ClientValue, result)
		case domain.ResolutionMerged:
			return s.applyResolution(ctx, st, conflict, req.MergedFields, result)
		}
		return ErrInvalidResolution
	})
	if err != nil {
		return nil, err
	}

	conflict.Status = domain.ConflictResolved
	conflict.Resolution = req.Resolution
	result.Conflict = conflict
	return result, nil
}

func (s *ConflictService) captureCurrent(ctx context.Context, st repository.Stores, conflict *domain.ConflictRecord, result *ResolveResult) error {
	switch conflict.EntityType {
	case domain.EntityTrip:
		trip, err := st.Trips.GetByID(ctx, conflict.EntityID)
		if err != nil {
			return err
		}
		result.Revision = trip.Revision
		result.Fields = trip.Fields()
	case domain.EntityExpense:
		expense, err := st.Expenses.GetByID(ctx, conflict.EntityID)
		if err != nil {
			return err
		}
		result.Revision = expense.Revision
		result.Fields = expense.Fields()
	}
	return nil
}

func (s *ConflictService) applyResolution(ctx context.Context, st repository.Stores, conflict *domain.ConflictRecord, fields domain.FieldMap, result *ResolveResult) error {
	now := time.Now().UTC()

	switch conflict.EntityType {
	case domain.EntityTrip:
		current, err := st.Trips.GetByID(ctx, conflict.EntityID)
		if err != nil {
			return err
		}
		applied, err := applyTripUpdate(ctx, st, current, overlay(current.Fields(), fields, nil), current.Revision, now)
		if err != nil {
			return err
		}
		result.Revision = applied.Revision
		result.Fields = applied.Fields()

	case domain.EntityExpense:
		current, err := st.Expenses.GetByID(ctx, conflict.EntityID)
		if err != nil {
			return err
		}
		applied, err := applyExpenseUpdate(ctx, st, current, overlay(current.Fields(), fields, nil), now)
		if err != nil {
			return err
		}
		result.Revision = applied.Revision
		result.Fields = applied.Fields()
	}

	return nil
}
