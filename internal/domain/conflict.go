package domain

import "time"

// ConflictStatus is the lifecycle state of a queued conflict.
type ConflictStatus string

const (
	ConflictPending  ConflictStatus = "pending"
	ConflictResolved ConflictStatus = "resolved"
)

// Resolution is the user's decision on a queued conflict.
type Resolution string

const (
	ResolutionKeepServer Resolution = "keep-server"
	ResolutionKeepClient Resolution = "keep-client"
	ResolutionMerged     Resolution = "merged"
)

// ValidResolution reports whether r is a known resolution.
func ValidResolution(r Resolution) bool {
	switch r {
	case ResolutionKeepServer, ResolutionKeepClient, ResolutionMerged:
		return true
	}
	return false
}

// ConflictRecord is a durable record of a concurrent edit the engine
// refused to merge automatically. The server value stays untouched
// until a user resolves it.
type ConflictRecord struct {
	ID             string
	EntityType     EntityType
	EntityID       string
	ClientID       string
	OwnerID        string
	ServerRevision int64 // server revision at detection time
	ClientValue    FieldMap
	ServerValue    FieldMap
	DetectedAt     time.Time
	Status         ConflictStatus
	Resolution     Resolution // empty while pending
	ResolvedAt     time.Time  // zero while pending
}
