package domain

import (
	"errors"
	"testing"
	"time"
)

func validTrip() *Trip {
	return &Trip{
		ID:          "trip-1",
		OwnerID:     "owner-1",
		Origin:      "Berlin",
		Destination: "Hamburg",
		StartTime:   time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		TravelMode:  TravelModeDriving,
		TripType:    TripTypeBusiness,
		Status:      TripStatusInProgress,
		Revision:    1,
	}
}

func TestTripValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		mutate  func(*Trip)
		wantErr error
	}{
		{
			name:   "valid in-progress trip",
			mutate: func(tr *Trip) {},
		},
		{
			name: "end before start",
			mutate: func(tr *Trip) {
				tr.EndTime = tr.StartTime.Add(-time.Hour)
			},
			wantErr: ErrEndBeforeStart,
		},
		{
			name: "completed without end time",
			mutate: func(tr *Trip) {
				tr.Status = TripStatusCompleted
			},
			wantErr: ErrCompletedWithoutEnd,
		},
		{
			name: "completed with end time",
			mutate: func(tr *Trip) {
				tr.Status = TripStatusCompleted
				tr.EndTime = tr.StartTime.Add(time.Hour)
			},
		},
		{
			name: "unknown travel mode",
			mutate: func(tr *Trip) {
				tr.TravelMode = "teleport"
			},
			wantErr: ErrInvalidEnum,
		},
		{
			name: "unknown status",
			mutate: func(tr *Trip) {
				tr.Status = "paused"
			},
			wantErr: ErrInvalidEnum,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			trip := validTrip()
			tc.mutate(trip)

			err := trip.Validate()
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestTripFieldsRoundTrip(t *testing.T) {
	t.Parallel()

	lat := 52.52
	trip := validTrip()
	trip.OriginLat = &lat
	trip.DistanceMeters = 1500
	trip.DurationSeconds = 3600

	var decoded Trip
	if err := decoded.ApplyFields(trip.Fields()); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if decoded.Origin != trip.Origin || decoded.Destination != trip.Destination {
		t.Errorf("route fields lost in round trip: %+v", decoded)
	}
	if decoded.OriginLat == nil || *decoded.OriginLat != lat {
		t.Errorf("expected origin latitude %f, got %v", lat, decoded.OriginLat)
	}
	if !decoded.StartTime.Equal(trip.StartTime) {
		t.Errorf("expected start time %v, got %v", trip.StartTime, decoded.StartTime)
	}
	if !decoded.EndTime.IsZero() {
		t.Errorf("expected zero end time, got %v", decoded.EndTime)
	}
	if decoded.DistanceMeters != 1500 || decoded.DurationSeconds != 3600 {
		t.Errorf("numeric fields lost: %+v", decoded)
	}
}

func TestTripApplyFieldsRejectsBadInput(t *testing.T) {
	t.Parallel()

	var trip Trip

	var unknownErr *UnknownFieldError
	if err := trip.ApplyFields(FieldMap{"color": "red"}); !errors.As(err, &unknownErr) {
		t.Errorf("expected UnknownFieldError, got %v", err)
	}

	var typeErr *FieldTypeError
	if err := trip.ApplyFields(FieldMap{"distanceMeters": "far"}); !errors.As(err, &typeErr) {
		t.Errorf("expected FieldTypeError, got %v", err)
	}
	if err := trip.ApplyFields(FieldMap{"startTime": "yesterday"}); !errors.As(err, &typeErr) {
		t.Errorf("expected FieldTypeError for bad timestamp, got %v", err)
	}
}

func TestLocationPointFromFields(t *testing.T) {
	t.Parallel()

	var point LocationPoint
	err := point.FromFields(FieldMap{
		"tripId":    "trip-1",
		"lat":       52.52,
		"lng":       13.40,
		"timestamp": "2026-03-14T09:01:00Z",
		"accuracy":  5.0,
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if point.TripID != "trip-1" || point.Lat != 52.52 {
		t.Errorf("unexpected point: %+v", point)
	}
	if point.Accuracy == nil || *point.Accuracy != 5.0 {
		t.Errorf("expected accuracy 5.0, got %v", point.Accuracy)
	}
	if point.Speed != nil {
		t.Errorf("expected nil speed, got %v", point.Speed)
	}

	var typeErr *FieldTypeError
	if err := point.FromFields(FieldMap{"lat": "north"}); !errors.As(err, &typeErr) {
		t.Errorf("expected FieldTypeError, got %v", err)
	}
}
