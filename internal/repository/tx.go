package repository

import "context"

// Stores bundles the repositories one atomic commit works against.
// Inside WithinTx every store is scoped to the same transaction.
type Stores struct {
	Trips     TripRepository
	Expenses  ExpenseRepository
	Locations LocationRepository
	Conflicts ConflictRepository
	Revisions RevisionLogRepository
}

// TxRunner executes fn against transaction-scoped stores, committing
// when fn returns nil and rolling back otherwise.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, st Stores) error) error
}
