package daterange

import (
	"errors"
	"strings"
	"time"
)

const (
	// DateLayout is the wire format of calendar dates.
	DateLayout = "2006-01-02"
	// MaxNights bounds a single stay.
	MaxNights = 365

	secondsPerDay = 24 * 60 * 60
)

var (
	ErrInvalidRange = errors.New("daterange: checkout must be after checkin")
	ErrInvalidDate  = errors.New("daterange: invalid date")
	ErrStayTooLong  = errors.New("daterange: stay exceeds the maximum number of nights")
)

// DateRange represents a half-open interval [checkIn, checkOut) of calendar days.
// Both ends are kept at midnight UTC.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// New builds a validated range, truncating both ends to their calendar day.
func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: Day(checkIn), CheckOut: Day(checkOut)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Day returns the calendar day of t as midnight UTC.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ErrInvalidDate
	}
	t, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	if dr.Nights() > MaxNights {
		return ErrStayTooLong
	}
	return nil
}

// Nights counts whole calendar days between check-in and check-out. Unix seconds
// are used because time.Duration saturates after about 292 years.
func (dr DateRange) Nights() int {
	return int((Day(dr.CheckOut).Unix() - Day(dr.CheckIn).Unix()) / secondsPerDay)
}

// Overlaps reports whether two half-open ranges share at least one day:
// a.CheckIn < b.CheckOut && b.CheckIn < a.CheckOut. Touching endpoints do not overlap.
func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}

func (dr DateRange) String() string {
	return dr.CheckIn.Format(DateLayout) + "/" + dr.CheckOut.Format(DateLayout)
}
