package domain

import (
	"errors"
	"time"
)

// TripStatus represents the current status of a trip.
type TripStatus string

const (
	TripStatusPlanned    TripStatus = "planned"
	TripStatusInProgress TripStatus = "inProgress"
	TripStatusCompleted  TripStatus = "completed"
	TripStatusCancelled  TripStatus = "cancelled"
)

// TravelMode represents how a trip was travelled.
type TravelMode string

const (
	TravelModeWalking         TravelMode = "walking"
	TravelModeCycling         TravelMode = "cycling"
	TravelModeDriving         TravelMode = "driving"
	TravelModePublicTransport TravelMode = "publicTransport"
	TravelModeFlight          TravelMode = "flight"
	TravelModeTrain           TravelMode = "train"
	TravelModeBus             TravelMode = "bus"
	TravelModeTaxi            TravelMode = "taxi"
	TravelModeOther           TravelMode = "other"
)

// TripType represents the purpose of a trip.
type TripType string

const (
	TripTypeBusiness  TripType = "business"
	TripTypeLeisure   TripType = "leisure"
	TripTypeCommute   TripType = "commute"
	TripTypeShopping  TripType = "shopping"
	TripTypeMedical   TripType = "medical"
	TripTypeEducation TripType = "education"
	TripTypeSocial    TripType = "social"
	TripTypeOtherType TripType = "other"
)

// Trip is the aggregate root for a recorded journey. A trip owns its
// location points; the pair is always committed atomically.
type Trip struct {
	ID              string
	OwnerID         string
	Origin          string
	Destination     string
	OriginLat       *float64
	OriginLng       *float64
	DestinationLat  *float64
	DestinationLng  *float64
	StartTime       time.Time
	EndTime         time.Time // zero while trip is in progress
	TravelMode      TravelMode
	TripType        TripType
	Status          TripStatus
	DistanceMeters  float64
	DurationSeconds int64
	Revision        int64 // monotonic, +1 per accepted mutation
	ClientRevision  int64 // last revision the client acknowledged
	UpdatedAt       time.Time
}

var (
	// ErrEndBeforeStart is returned when a trip ends before it starts.
	ErrEndBeforeStart = errors.New("trip end time before start time")

	// ErrCompletedWithoutEnd is returned when a completed trip has no end time.
	ErrCompletedWithoutEnd = errors.New("completed trip requires an end time")

	// ErrInvalidEnum is returned when an enum field has an unknown value.
	ErrInvalidEnum = errors.New("invalid enum value")
)

// Validate checks the trip's internal invariants.
func (t *Trip) Validate() error {
	if !t.EndTime.IsZero() && t.EndTime.Before(t.StartTime) {
		return ErrEndBeforeStart
	}
	if t.Status == TripStatusCompleted && t.EndTime.IsZero() {
		return ErrCompletedWithoutEnd
	}
	if !validTripStatus(t.Status) || !validTravelMode(t.TravelMode) || !validTripType(t.TripType) {
		return ErrInvalidEnum
	}
	return nil
}

func validTripStatus(s TripStatus) bool {
	switch s {
	case TripStatusPlanned, TripStatusInProgress, TripStatusCompleted, TripStatusCancelled:
		return true
	}
	return false
}

func validTravelMode(m TravelMode) bool {
	switch m {
	case TravelModeWalking, TravelModeCycling, TravelModeDriving, TravelModePublicTransport,
		TravelModeFlight, TravelModeTrain, TravelModeBus, TravelModeTaxi, TravelModeOther:
		return true
	}
	return false
}

func validTripType(t TripType) bool {
	switch t {
	case TripTypeBusiness, TripTypeLeisure, TripTypeCommute, TripTypeShopping,
		TripTypeMedical, TripTypeEducation, TripTypeSocial, TripTypeOtherType:
		return true
	}
	return false
}

// Fields projects the trip's syncable fields into a FieldMap.
// Revision metadata is deliberately excluded.
func (t *Trip) Fields() FieldMap {
	return FieldMap{
		"origin":          t.Origin,
		"destination":     t.Destination,
		"originLat":       floatOrNil(t.OriginLat),
		"originLng":       floatOrNil(t.OriginLng),
		"destinationLat":  floatOrNil(t.DestinationLat),
		"destinationLng":  floatOrNil(t.DestinationLng),
		"startTime":       formatTime(t.StartTime),
		"endTime":         formatNullableTime(t.EndTime),
		"travelMode":      string(t.TravelMode),
		"tripType":        string(t.TripType),
		"status":          string(t.Status),
		"distanceMeters":  t.DistanceMeters,
		"durationSeconds": float64(t.DurationSeconds),
	}
}

// ApplyFields overwrites the trip's syncable fields from a FieldMap.
// Unknown keys are rejected. Callers re-check Validate once the full
// merge has been applied.
func (t *Trip) ApplyFields(fields FieldMap) error {
	for key, value := range fields {
		if err := t.applyField(key, value); err != nil {
			return err
		}
	}
	return nil
}

func (t *Trip) applyField(key string, value any) error {
	switch key {
	case "origin":
		return applyString(key, value, &t.Origin)
	case "destination":
		return applyString(key, value, &t.Destination)
	case "originLat":
		return applyNullableFloat(key, value, &t.OriginLat)
	case "originLng":
		return applyNullableFloat(key, value, &t.OriginLng)
	case "destinationLat":
		return applyNullableFloat(key, value, &t.DestinationLat)
	case "destinationLng":
		return applyNullableFloat(key, value, &t.DestinationLng)
	case "startTime":
		return applyTime(key, value, &t.StartTime)
	case "endTime":
		return applyNullableTime(key, value, &t.EndTime)
	case "travelMode":
		return applyEnumString(key, value, (*string)(&t.TravelMode))
	case "tripType":
		return applyEnumString(key, value, (*string)(&t.TripType))
	case "status":
		return applyEnumString(key, value, (*string)(&t.Status))
	case "distanceMeters":
		return applyFloat(key, value, &t.DistanceMeters)
	case "durationSeconds":
		return applyInt(key, value, &t.DurationSeconds)
	default:
		return &UnknownFieldError{Field: key}
	}
}
