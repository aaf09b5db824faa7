package booking

import (
	"errors"
	"time"

	"partyspace/internal/domain/shared/daterange"
)

// ErrAlreadyStarted is returned when a confirmed stay is cancelled on or after its check-in day passed.
var ErrAlreadyStarted = errors.New("booking: confirmed booking already started and cannot be cancelled")

// CheckCancellable applies the cancellation window: a CONFIRMED booking whose
// check-in day is before today is immutable. Pending bookings can always be withdrawn.
func CheckCancellable(b *Booking, now time.Time) error {
	if b.State != StateConfirmed {
		return nil
	}
	if b.Range.CheckIn.Before(daterange.Day(now)) {
		return ErrAlreadyStarted
	}
	return nil
}
