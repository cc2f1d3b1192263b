package postgres

import (
	"context"
	"database/sql"

	"travelsync/internal/repository"
)

// TxRunner runs functions inside a single PostgreSQL transaction with
// transaction-scoped repositories.
type TxRunner struct {
	db *sql.DB
}

// NewTxRunner creates a TxRunner on the given database handle.
func NewTxRunner(db *sql.DB) *TxRunner {
	return &TxRunner{db: db}
}

// WithinTx begins a transaction, builds transaction-scoped stores, and
// commits if fn succeeds.
func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, st repository.Stores) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	st := repository.Stores{
		Trips:     NewTripRepositoryWithTx(tx),
		Expenses:  NewExpenseRepositoryWithTx(tx),
		Locations: NewLocationRepositoryWithTx(tx),
		Conflicts: NewConflictRepositoryWithTx(tx),
		Revisions: NewRevisionLogRepositoryWithTx(tx),
	}

	if err := fn(ctx, st); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// Ensure TxRunner implements repository.TxRunner.
var _ repository.TxRunner = (*TxRunner)(nil)
