package domain

import (
	"fmt"
	"math"
	"time"
)

// FieldMap is the wire-level projection of a syncable entity: field
// name to JSON scalar (string, float64, bool, or nil). Batches decoded
// from JSON, revision-log snapshots loaded from the database, and
// server entities projected via Fields() all share this shape, so
// detector comparisons are plain value comparisons.
type FieldMap map[string]any

// Clone returns a shallow copy. Values are scalars, so shallow is deep.
func (f FieldMap) Clone() FieldMap {
	out := make(FieldMap, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// ValuesEqual reports whether two field values are equal. Numeric
// values compare as float64 regardless of the Go type they arrived in.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// UnknownFieldError is returned when a mutation names a field the
// entity does not have.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q", e.Field)
}

// FieldTypeError is returned when a mutation supplies a value of the
// wrong type for a field.
type FieldTypeError struct {
	Field string
	Value any
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("field %q: unexpected value %v", e.Field, e.Value)
}

// Sync timestamps are exchanged as RFC3339 and truncated to whole
// seconds so a round trip through the client never creates a spurious
// diff.
func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

func formatNullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func floatOrNil(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func applyString(key string, value any, dst *string) error {
	s, ok := value.(string)
	if !ok {
		return &FieldTypeError{Field: key, Value: value}
	}
	*dst = s
	return nil
}

func applyEnumString(key string, value any, dst *string) error {
	// Enum validity is enforced by Validate after the merge; here we
	// only require a string.
	return applyString(key, value, dst)
}

func applyFloat(key string, value any, dst *float64) error {
	f, ok := toFloat(value)
	if !ok {
		return &FieldTypeError{Field: key, Value: value}
	}
	*dst = f
	return nil
}

func applyInt(key string, value any, dst *int64) error {
	f, ok := toFloat(value)
	if !ok || f != math.Trunc(f) {
		return &FieldTypeError{Field: key, Value: value}
	}
	*dst = int64(f)
	return nil
}

func applyNullableFloat(key string, value any, dst **float64) error {
	if value == nil {
		*dst = nil
		return nil
	}
	f, ok := toFloat(value)
	if !ok {
		return &FieldTypeError{Field: key, Value: value}
	}
	*dst = &f
	return nil
}

func applyTime(key string, value any, dst *time.Time) error {
	s, ok := value.(string)
	if !ok {
		return &FieldTypeError{Field: key, Value: value}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return &FieldTypeError{Field: key, Value: value}
	}
	*dst = t.UTC().Truncate(time.Second)
	return nil
}

func applyNullableTime(key string, value any, dst *time.Time) error {
	if value == nil {
		*dst = time.Time{}
		return nil
	}
	return applyTime(key, value, dst)
}
