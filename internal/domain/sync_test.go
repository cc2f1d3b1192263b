package domain

import "testing"

func TestValidEntityType(t *testing.T) {
	t.Parallel()

	for _, et := range []EntityType{EntityTrip, EntityExpense, EntityLocationPoint} {
		if !ValidEntityType(et) {
			t.Errorf("expected %q valid", et)
		}
	}
	for _, et := range []EntityType{"", "ride", "Trip"} {
		if ValidEntityType(et) {
			t.Errorf("expected %q invalid", et)
		}
	}
}

func TestRecordMutationIsCreate(t *testing.T) {
	t.Parallel()

	create := RecordMutation{EntityType: EntityTrip, ClientLocalID: "t1"}
	if !create.IsCreate() {
		t.Error("mutation without a server ID must be a create")
	}

	update := RecordMutation{EntityType: EntityTrip, ServerID: "trip-1", BaseRevision: 3}
	if update.IsCreate() {
		t.Error("mutation with a server ID must not be a create")
	}
}
