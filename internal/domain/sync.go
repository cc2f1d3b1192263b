package domain

import "time"

// EntityType identifies which kind of record a mutation targets.
type EntityType string

const (
	EntityTrip          EntityType = "trip"
	EntityExpense       EntityType = "expense"
	EntityLocationPoint EntityType = "locationPoint"
)

// ValidEntityType reports whether t names a syncable entity type.
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntityTrip, EntityExpense, EntityLocationPoint:
		return true
	}
	return false
}

// RecordMutation is one client-proposed change inside a sync batch.
// ServerID is empty for creates. BaseRevision is the revision the
// client observed before editing; it is mandatory for every mutation
// against an existing record.
type RecordMutation struct {
	EntityType    EntityType
	ClientLocalID string
	ServerID      string
	BaseRevision  int64
	Fields        FieldMap
}

// IsCreate reports whether the mutation proposes a new record.
func (m *RecordMutation) IsCreate() bool {
	return m.ServerID == ""
}

// SyncBatch is one client submission. It is ephemeral: processed and
// discarded, never persisted.
type SyncBatch struct {
	ClientID    string
	SubmittedAt time.Time
	Records     []RecordMutation
}

// RecordStatus is the per-record outcome reported in the manifest.
type RecordStatus string

const (
	RecordAccepted RecordStatus = "accepted"
	RecordConflict RecordStatus = "conflict"
	RecordRejected RecordStatus = "rejected"
)

// RejectReason explains a rejected manifest entry.
type RejectReason string

const (
	RejectMissingBaseRevision   RejectReason = "MissingBaseRevision"
	RejectValidation            RejectReason = "ValidationError"
	RejectBusy                  RejectReason = "Busy"
	RejectAggregateCommitFailed RejectReason = "AggregateCommitFailed"
	RejectUnknownEntity         RejectReason = "UnknownEntity"
)

// ManifestEntry is the coordinator's verdict on one input record.
type ManifestEntry struct {
	ClientLocalID string
	EntityType    EntityType
	Status        RecordStatus
	ServerID      string       // set when accepted
	Revision      int64        // set when accepted
	ConflictID    string       // set when status is conflict
	Reason        RejectReason // set when status is rejected
}

// SyncManifest is the coordinator's per-record outcome report, in the
// same order as the submitted batch.
type SyncManifest struct {
	ClientID    string
	ProcessedAt time.Time
	Entries     []ManifestEntry
}
