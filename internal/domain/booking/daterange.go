package booking

import (
	"errors"
	"time"

	"partyspace/internal/domain/shared/daterange"
)

var ErrCheckInInPast = errors.New("booking: check-in date is in the past")

// ValidateCheckIn rejects check-in days before the current UTC date.
func ValidateCheckIn(checkIn time.Time, now time.Time) error {
	if daterange.Day(checkIn).Before(daterange.Day(now)) {
		return ErrCheckInInPast
	}
	return nil
}
