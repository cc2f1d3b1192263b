package domain

import "time"

// LocationPoint is a GPS sample recorded during a trip. Points are
// append-only: unique by (TripID, Timestamp), never updated after
// insert, and only deleted together with their parent trip.
type LocationPoint struct {
	ID        string
	TripID    string
	Lat       float64
	Lng       float64
	Timestamp time.Time
	Accuracy  *float64
	Speed     *float64
	Heading   *float64
}

// FromFields builds a location point from a mutation's field map.
// Points have no revision machinery, so this is the whole decode path.
func (p *LocationPoint) FromFields(fields FieldMap) error {
	for key, value := range fields {
		var err error
		switch key {
		case "tripId":
			err = applyString(key, value, &p.TripID)
		case "lat":
			err = applyFloat(key, value, &p.Lat)
		case "lng":
			err = applyFloat(key, value, &p.Lng)
		case "timestamp":
			err = applyTime(key, value, &p.Timestamp)
		case "accuracy":
			err = applyNullableFloat(key, value, &p.Accuracy)
		case "speed":
			err = applyNullableFloat(key, value, &p.Speed)
		case "heading":
			err = applyNullableFloat(key, value, &p.Heading)
		default:
			err = &UnknownFieldError{Field: key}
		}
		if err != nil {
			return err
		}
	}
	return nil
}
