package domain

import (
	"errors"
	"time"
)

// ErrNegativeAmount is returned when an expense amount is negative.
var ErrNegativeAmount = errors.New("expense amount must not be negative")

// ExpenseCategory classifies an expense.
type ExpenseCategory string

const (
	ExpenseCategoryTransport     ExpenseCategory = "transport"
	ExpenseCategoryAccommodation ExpenseCategory = "accommodation"
	ExpenseCategoryFood          ExpenseCategory = "food"
	ExpenseCategoryEntertainment ExpenseCategory = "entertainment"
	ExpenseCategoryShopping      ExpenseCategory = "shopping"
	ExpenseCategoryOther         ExpenseCategory = "other"
)

// Expense is an independent versioned entity, optionally linked to a
// trip. It follows the same optimistic-concurrency contract as Trip.
type Expense struct {
	ID        string
	OwnerID   string
	TripID    string // empty when not linked to a trip
	Amount    float64
	Currency  string
	Category  ExpenseCategory
	Date      time.Time
	Revision  int64
	UpdatedAt time.Time
}

// Validate checks the expense's internal invariants.
func (e *Expense) Validate() error {
	if e.Amount < 0 {
		return ErrNegativeAmount
	}
	switch e.Category {
	case ExpenseCategoryTransport, ExpenseCategoryAccommodation, ExpenseCategoryFood,
		ExpenseCategoryEntertainment, ExpenseCategoryShopping, ExpenseCategoryOther:
	default:
		return ErrInvalidEnum
	}
	return nil
}

// Fields projects the expense's syncable fields into a FieldMap.
func (e *Expense) Fields() FieldMap {
	var tripID any
	if e.TripID != "" {
		tripID = e.TripID
	}
	return FieldMap{
		"tripId":   tripID,
		"amount":   e.Amount,
		"currency": e.Currency,
		"category": string(e.Category),
		"date":     formatTime(e.Date),
	}
}

// ApplyFields overwrites the expense's syncable fields from a FieldMap.
func (e *Expense) ApplyFields(fields FieldMap) error {
	for key, value := range fields {
		var err error
		switch key {
		case "tripId":
			if value == nil {
				e.TripID = ""
			} else {
				err = applyString(key, value, &e.TripID)
			}
		case "amount":
			err = applyFloat(key, value, &e.Amount)
		case "currency":
			err = applyString(key, value, &e.Currency)
		case "category":
			err = applyEnumString(key, value, (*string)(&e.Category))
		case "date":
			err = applyTime(key, value, &e.Date)
		default:
			err = &UnknownFieldError{Field: key}
		}
		if err != nil {
			return err
		}
	}
	return nil
}
