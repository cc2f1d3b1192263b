package service

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyBatch is returned when a sync batch contains no records.
	ErrEmptyBatch = errors.New("sync batch is empty")

	// ErrBatchTooLarge is returned when a sync batch exceeds the configured maximum.
	ErrBatchTooLarge = errors.New("sync batch exceeds maximum size")

	// ErrForbidden is returned when a batch touches records owned by another user.
	ErrForbidden = errors.New("record belongs to another owner")

	// ErrMissingBaseRevision is returned when a mutation against an existing
	// record omits the revision the client last observed.
	ErrMissingBaseRevision = errors.New("mutation missing base revision")

	// ErrConflictAlreadyResolved is returned when resolving a conflict twice.
	ErrConflictAlreadyResolved = errors.New("conflict already resolved")

	// ErrInvalidResolution is returned for an unknown resolution kind.
	ErrInvalidResolution = errors.New("invalid conflict resolution")

	// ErrMissingMergedFields is returned when a merged resolution carries no fields.
	ErrMissingMergedFields = errors.New("merged resolution requires field values")

	// ErrInvalidOwnerID is returned when the owner ID is empty.
	ErrInvalidOwnerID = errors.New("invalid owner id")

	// ErrInvalidClientID is returned when the sync client ID is empty.
	ErrInvalidClientID = errors.New("invalid client id")

	// ErrInvalidTripID is returned when a trip ID is empty.
	ErrInvalidTripID = errors.New("invalid trip id")

	// ErrInvalidExpenseID is returned when an expense ID is empty.
	ErrInvalidExpenseID = errors.New("invalid expense id")

	// ErrInvalidConflictID is returned when a conflict ID is empty.
	ErrInvalidConflictID = errors.New("invalid conflict id")

	// ErrInvalidPhone is returned when a phone number is empty.
	ErrInvalidPhone = errors.New("invalid phone number")

	// ErrInvalidOTP is returned when an OTP code is missing, expired, or wrong.
	ErrInvalidOTP = errors.New("invalid or expired code")

	// ErrFutureBaseRevision is returned when a client claims a base revision
	// the server has never issued.
	ErrFutureBaseRevision = errors.New("base revision ahead of server")

	// ErrBusy is returned when the aggregate lock could not be acquired
	// within the wait budget. Safe to retry.
	ErrBusy = errors.New("aggregate busy, retry later")

	// ErrAggregateCommitFailed is returned when an aggregate's
	// transaction failed and rolled back. Safe to retry.
	ErrAggregateCommitFailed = errors.New("aggregate commit failed")

	// ErrMalformedRecord is returned when a record's fields fail to
	// decode or violate an entity invariant.
	ErrMalformedRecord = errors.New("malformed record")
)

// ConflictDetectedError reports that a direct mutation was queued as a
// conflict instead of being applied. It is a normal outcome, not a
// failure, but API callers need the queue entry's ID.
type ConflictDetectedError struct {
	ConflictID string
}

func (e *ConflictDetectedError) Error() string {
	return fmt.Sprintf("conflicting concurrent edit queued as conflict %s", e.ConflictID)
}

// ValidationError wraps a malformed-record failure so handlers can map
// it to a 400 without losing the cause.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
