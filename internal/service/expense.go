package service

import (
	"context"
	"log"

	"travelsync/internal/domain"
	"travelsync/internal/redis"
	"travelsync/internal/repository"
)

// ExpenseService handles direct expense operations for the REST API.
// Like trips, every mutation is a single-record batch through the sync
// engine.
type ExpenseService struct {
	expenses  repository.ExpenseRepository
	revisions repository.RevisionLogRepository
	tx        repository.TxRunner
	locks     redis.LockStoreInterface
	sync      *SyncService
}

// NewExpenseService creates a new ExpenseService.
func NewExpenseService(
	expenses repository.ExpenseRepository,
	revisions repository.RevisionLogRepository,
	tx repository.TxRunner,
	locks redis.LockStoreInterface,
	sync *SyncService,
) *ExpenseService {
	return &ExpenseService{
		expenses:  expenses,
		revisions: revisions,
		tx:        tx,
		locks:     locks,
		sync:      sync,
	}
}

// Create validates and persists a new expense at revision 1.
func (s *ExpenseService) Create(ctx context.Context, ownerID string, fields domain.FieldMap) (*domain.Expense, error) {
	entry, err := s.sync.ApplySingle(ctx, ownerID, domain.RecordMutation{
		EntityType:    domain.EntityExpense,
		ClientLocalID: "api-create",
		Fields:        fields,
	})
	if err != nil {
		return nil, err
	}
	if err := entryError(entry); err != nil {
		return nil, err
	}

	return s.expenses.GetByID(ctx, entry.ServerID)
}

// Get returns an expense, enforcing ownership.
func (s *ExpenseService) Get(ctx context.Context, ownerID, expenseID string) (*domain.Expense, error) {
	if expenseID == "" {
		return nil, ErrInvalidExpenseID
	}

	expense, err := s.expenses.GetByID(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if expense.OwnerID != ownerID {
		return nil, ErrForbidden
	}

	return expense, nil
}

// List returns the owner's expenses.
func (s *ExpenseService) List(ctx context.Context, ownerID string) ([]*domain.Expense, error) {
	if ownerID == "" {
		return nil, ErrInvalidOwnerID
	}
	return s.expenses.ListByOwner(ctx, ownerID)
}

// Update applies a revision-guarded edit.
func (s *ExpenseService) Update(ctx context.Context, ownerID, expenseID string, baseRevision int64, fields domain.FieldMap) (*domain.Expense, error) {
	if expenseID == "" {
		return nil, ErrInvalidExpenseID
	}

	entry, err := s.sync.ApplySingle(ctx, ownerID, domain.RecordMutation{
		EntityType:    domain.EntityExpense,
		ClientLocalID: "api-update",
		ServerID:      expenseID,
		BaseRevision:  baseRevision,
		Fields:        fields,
	})
	if err != nil {
		return nil, err
	}
	if err := entryError(entry); err != nil {
		return nil, err
	}

	return s.expenses.GetByID(ctx, entry.ServerID)
}

// Delete removes an expense with its revision history.
func (s *ExpenseService) Delete(ctx context.Context, ownerID, expenseID string) error {
	expense, err := s.Get(ctx, ownerID, expenseID)
	if err != nil {
		return err
	}

	lockKey := "expense:" + expense.ID
	acquired, err := s.locks.AcquireAggregateLock(ctx, ownerID, lockKey, s.sync.lockTTL, s.sync.lockWait)
	if err != nil {
		return err
	}
	if !acquired {
		return ErrBusy
	}

	commitCtx := context.WithoutCancel(ctx)
	defer func() {
		if err := s.locks.ReleaseAggregateLock(commitCtx, ownerID, lockKey); err != nil {
			log.Printf("expense: lock release failed for %s: %v", expense.ID, err)
		}
	}()

	return s.tx.WithinTx(commitCtx, func(ctx context.Context, st repository.Stores) error {
		if err := st.Revisions.DeleteByEntity(ctx, domain.EntityExpense, expense.ID); err != nil {
			return err
		}
		return st.Expenses.Delete(ctx, expense.ID)
	})
}
