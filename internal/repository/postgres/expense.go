package postgres

import (
	"context"
	"database/sql"
	"errors"

	"travelsync/internal/domain"
	"travelsync/internal/repository"
)

// ExpenseRepository is a PostgreSQL implementation of repository.ExpenseRepository.
type ExpenseRepository struct {
	q Querier
}

// NewExpenseRepository creates a new PostgreSQL expense repository.
func NewExpenseRepository(db *sql.DB) *ExpenseRepository {
	return &ExpenseRepository{q: db}
}

// NewExpenseRepositoryWithTx creates an expense repository using a transaction.
func NewExpenseRepositoryWithTx(tx *sql.Tx) *ExpenseRepository {
	return &ExpenseRepository{q: tx}
}

// Create persists a new expense at its initial revision.
func (r *ExpenseRepository) Create(ctx context.Context, expense *domain.Expense) error {
	query := `
		INSERT INTO expenses (id, owner_id, trip_id, amount, currency, category, expense_date, revision, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.ExecContext(ctx, query,
		expense.ID,
		expense.OwnerID,
		nullString(expense.TripID),
		expense.Amount,
		expense.Currency,
		expense.Category,
		expense.Date,
		expense.Revision,
		expense.UpdatedAt,
	)

	return err
}

// GetByID retrieves an expense by ID.
func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (*domain.Expense, error) {
	query := `
		SELECT id, owner_id, trip_id, amount, currency, category, expense_date, revision, updated_at
		FROM expenses WHERE id = $1
	`

	expense, err := scanExpense(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return expense, nil
}

// ListByOwner retrieves the owner's expenses, most recent date first.
func (r *ExpenseRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Expense, error) {
	query := `
		SELECT id, owner_id, trip_id, amount, currency, category, expense_date, revision, updated_at
		FROM expenses WHERE owner_id = $1 ORDER BY expense_date DESC LIMIT 200
	`

	rows, err := r.q.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []*domain.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, expense)
	}

	return expenses, rows.Err()
}

// Update persists a mutated expense guarded by expectedRevision.
func (r *ExpenseRepository) Update(ctx context.Context, expense *domain.Expense, expectedRevision int64) error {
	query := `
		UPDATE expenses
		SET trip_id = $1, amount = $2, currency = $3, category = $4,
		    expense_date = $5, revision = $6, updated_at = $7
		WHERE id = $8 AND revision = $9
	`

	result, err := r.q.ExecContext(ctx, query,
		nullString(expense.TripID),
		expense.Amount,
		expense.Currency,
		expense.Category,
		expense.Date,
		expense.Revision,
		expense.UpdatedAt,
		expense.ID,
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
		if _, err := r.GetByID(ctx, expense.ID); errors.Is(err, repository.ErrNotFound) {
			return repository.ErrNotFound
		}
		return repository.ErrRevisionMismatch
	}

	return nil
}

// Delete removes an expense.
func (r *ExpenseRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
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

func scanExpense(row rowScanner) (*domain.Expense, error) {
	var expense domain.Expense
	var tripID sql.NullString

	err := row.Scan(
		&expense.ID,
		&expense.OwnerID,
		&tripID,
		&expense.Amount,
		&expense.Currency,
		&expense.Category,
		&expense.Date,
		&expense.Revision,
		&expense.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if tripID.Valid {
		expense.TripID = tripID.String
	}

	return &expense, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Ensure ExpenseRepository implements repository.ExpenseRepository.
var _ repository.ExpenseRepository = (*ExpenseRepository)(nil)
