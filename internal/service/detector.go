package service

import (
	"sort"

	"travelsync/internal/domain"
)

// ChangeKind is the detector's classification of one client mutation.
// Every caller switches over all five kinds; there is no default path.
type ChangeKind int

const (
	// ChangeCreate: the record does not exist server-side.
	ChangeCreate ChangeKind = iota

	// ChangeNoOp: the proposal equals the current server state.
	ChangeNoOp

	// ChangeCleanUpdate: the client edited the latest revision.
	ChangeCleanUpdate

	// ChangeStaleMerge: the client edited a stale revision, but its
	// changed fields are disjoint from the server's, so a merge is safe.
	ChangeStaleMerge

	// ChangeConflict: client and server changed the same field to
	// different values. Never applied automatically.
	ChangeConflict
)

// Detection is the detector's verdict on one mutation.
type Detection struct {
	Kind ChangeKind

	// Merged holds the full post-apply field set for CleanUpdate and
	// StaleMerge.
	Merged domain.FieldMap

	// ConflictingFields names the overlapping fields for Conflict,
	// sorted for stable output.
	ConflictingFields []string
}

// DetectChange classifies a client proposal against the current server
// record. current is nil for a record the server has never seen. base
// is the field snapshot at the client's baseRevision, nil when that
// snapshot is unavailable (pruned history).
//
// The tie-break rule: a field conflicts only when client and server
// both changed it relative to the base snapshot AND the two new values
// differ. Both sides arriving at the same value is a per-field no-op.
func DetectChange(proposed domain.FieldMap, current domain.FieldMap, currentRevision, baseRevision int64, base domain.FieldMap) (Detection, error) {
	if current == nil {
		return Detection{Kind: ChangeCreate}, nil
	}

	if baseRevision > currentRevision {
		return Detection{}, ErrFutureBaseRevision
	}

	// A proposal identical to the server state is a no-op regardless of
	// how stale the client's base was.
	if equalForKeys(proposed, current) {
		return Detection{Kind: ChangeNoOp}, nil
	}

	if baseRevision == currentRevision {
		return Detection{Kind: ChangeCleanUpdate, Merged: overlay(current, proposed, nil)}, nil
	}

	// Stale base. Without the base snapshot there is no way to tell
	// which side changed what, so degrade conservatively to a conflict
	// rather than guess.
	if base == nil {
		return Detection{Kind: ChangeConflict, ConflictingFields: differingKeys(proposed, current)}, nil
	}

	clientChanged := changedKeys(proposed, base)
	serverChanged := changedSince(base, current)

	var conflicting []string
	for key := range clientChanged {
		if !serverChanged[key] {
			continue
		}
		// Changed on both sides: conflicts only if the values diverge.
		if !domain.ValuesEqual(proposed[key], current[key]) {
			conflicting = append(conflicting, key)
		}
	}

	if len(conflicting) > 0 {
		sort.Strings(conflicting)
		return Detection{Kind: ChangeConflict, ConflictingFields: conflicting}, nil
	}

	return Detection{Kind: ChangeStaleMerge, Merged: overlay(current, proposed, clientChanged)}, nil
}

// equalForKeys reports whether every proposed field already holds the
// proposed value on the server.
func equalForKeys(proposed, current domain.FieldMap) bool {
	for key, value := range proposed {
		if !domain.ValuesEqual(value, current[key]) {
			return false
		}
	}
	return true
}

// changedKeys returns the proposed keys whose values differ from base.
func changedKeys(proposed, base domain.FieldMap) map[string]bool {
	changed := make(map[string]bool)
	for key, value := range proposed {
		if !domain.ValuesEqual(value, base[key]) {
			changed[key] = true
		}
	}
	return changed
}

// changedSince returns the keys the server has changed since base,
// considering the union of both key sets.
func changedSince(base, current domain.FieldMap) map[string]bool {
	changed := make(map[string]bool)
	for key, value := range current {
		if !domain.ValuesEqual(value, base[key]) {
			changed[key] = true
		}
	}
	for key, value := range base {
		if _, ok := current[key]; !ok && value != nil {
			changed[key] = true
		}
	}
	return changed
}

// differingKeys lists proposed keys whose values differ from current.
func differingKeys(proposed, current domain.FieldMap) []string {
	var keys []string
	for key, value := range proposed {
		if !domain.ValuesEqual(value, current[key]) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// overlay builds the post-apply field set: current values, overwritten
// by the proposal. When only is non-nil, just those proposed keys are
// taken: the field-disjoint merge, where the server keeps its own
// changes and the client contributes only what it actually edited.
func overlay(current, proposed domain.FieldMap, only map[string]bool) domain.FieldMap {
	merged := current.Clone()
	for key, value := range proposed {
		if only != nil && !only[key] {
			continue
		}
		merged[key] = value
	}
	return merged
}
