package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelsync/internal/domain"
)

func TestDetectChange_Create(t *testing.T) {
	detection, err := DetectChange(domain.FieldMap{"origin": "Berlin"}, nil, 0, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, ChangeCreate, detection.Kind)
}

func TestDetectChange_NoOp(t *testing.T) {
	current := domain.FieldMap{"origin": "Berlin", "destination": "Hamburg"}

	// Proposal equal to the server state, even from a stale base.
	detection, err := DetectChange(domain.FieldMap{"destination": "Hamburg"}, current, 5, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, ChangeNoOp, detection.Kind)
}

func TestDetectChange_CleanUpdate(t *testing.T) {
	current := domain.FieldMap{"origin": "Berlin", "destination": "Hamburg"}

	detection, err := DetectChange(domain.FieldMap{"destination": "Munich"}, current, 5, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, ChangeCleanUpdate, detection.Kind)
	assert.Equal(t, "Munich", detection.Merged["destination"])
	assert.Equal(t, "Berlin", detection.Merged["origin"])
}

func TestDetectChange_FutureBaseRevision(t *testing.T) {
	current := domain.FieldMap{"origin": "Berlin"}

	_, err := DetectChange(domain.FieldMap{"origin": "Potsdam"}, current, 3, 4, nil)
	assert.ErrorIs(t, err, ErrFutureBaseRevision)
}

func TestDetectChange_StaleDisjoint_Merges(t *testing.T) {
	base := domain.FieldMap{"status": "inProgress", "distanceMeters": float64(0)}
	current := domain.FieldMap{"status": "completed", "distanceMeters": float64(0)}

	detection, err := DetectChange(domain.FieldMap{"distanceMeters": float64(150)}, current, 5, 4, base)
	require.NoError(t, err)
	assert.Equal(t, ChangeStaleMerge, detection.Kind)

	// Server keeps its status, client contributes its distance.
	assert.Equal(t, "completed", detection.Merged["status"])
	assert.Equal(t, float64(150), detection.Merged["distanceMeters"])
}

func TestDetectChange_StaleOverlap_Conflicts(t *testing.T) {
	base := domain.FieldMap{"status": "inProgress"}
	current := domain.FieldMap{"status": "completed"}

	detection, err := DetectChange(domain.FieldMap{"status": "cancelled"}, current, 5, 4, base)
	require.NoError(t, err)
	assert.Equal(t, ChangeConflict, detection.Kind)
	assert.Equal(t, []string{"status"}, detection.ConflictingFields)
}

func TestDetectChange_StaleOverlapSameValue_NoConflict(t *testing.T) {
	base := domain.FieldMap{"status": "inProgress", "destination": "Hamburg"}
	current := domain.FieldMap{"status": "completed", "destination": "Hamburg"}

	// Both sides set status to completed; the client also moved the
	// destination, which the server did not touch.
	detection, err := DetectChange(
		domain.FieldMap{"status": "completed", "destination": "Munich"},
		current, 5, 4, base,
	)
	require.NoError(t, err)
	assert.Equal(t, ChangeStaleMerge, detection.Kind)
	assert.Equal(t, "Munich", detection.Merged["destination"])
}

func TestDetectChange_StaleWithoutSnapshot_ConservativeConflict(t *testing.T) {
	current := domain.FieldMap{"status": "completed"}

	// Pruned history: no snapshot at the base revision. Any difference
	// must be treated as a conflict rather than guessed at.
	detection, err := DetectChange(domain.FieldMap{"status": "cancelled"}, current, 5, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, ChangeConflict, detection.Kind)
	assert.Equal(t, []string{"status"}, detection.ConflictingFields)
}

func TestDetectChange_NumericTypesCompareByValue(t *testing.T) {
	current := domain.FieldMap{"distanceMeters": float64(150)}

	// Clients decode JSON numbers in different ways; 150 and 150.0 are
	// the same value.
	detection, err := DetectChange(domain.FieldMap{"distanceMeters": 150}, current, 2, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, ChangeNoOp, detection.Kind)
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, domain.ValuesEqual("a", "a"))
	assert.True(t, domain.ValuesEqual(nil, nil))
	assert.True(t, domain.ValuesEqual(float64(1), int(1)))
	assert.True(t, domain.ValuesEqual(int64(7), float64(7)))
	assert.False(t, domain.ValuesEqual("a", "b"))
	assert.False(t, domain.ValuesEqual(nil, "a"))
	assert.False(t, domain.ValuesEqual(true, false))
	assert.False(t, domain.ValuesEqual(float64(1), "1"))
}
