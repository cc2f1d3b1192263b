package repository

import (
	"context"

	"travelsync/internal/domain"
)

// ExpenseRepository defines the persistence operations for expenses.
type ExpenseRepository interface {
	// Create persists a new expense at its initial revision.
	Create(ctx context.Context, expense *domain.Expense) error

	// GetByID retrieves an expense by ID.
	GetByID(ctx context.Context, id string) (*domain.Expense, error)

	// ListByOwner retrieves the owner's expenses, most recent date first.
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Expense, error)

	// Update persists a mutated expense guarded by expectedRevision.
	Update(ctx context.Context, expense *domain.Expense, expectedRevision int64) error

	// Delete removes an expense.
	Delete(ctx context.Context, id string) error
}
