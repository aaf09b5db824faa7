package booking

import (
	"time"

	"partyspace/internal/domain/listings"
	"partyspace/internal/domain/shared/daterange"
	"partyspace/internal/domain/shared/money"
)

const (
	EventRequested = "booking.requested"
	EventConfirmed = "booking.confirmed"
	EventCancelled = "booking.cancelled"
)

type BookingRequested struct {
	BookingID BookingID
	ListingID listings.ListingID
	HostID    listings.HostID
	GuestID   string
	Range     daterange.DateRange
	Total     money.Money
	At        time.Time
}

func (e BookingRequested) EventName() string     { return EventRequested }
func (e BookingRequested) AggregateID() string   { return string(e.BookingID) }
func (e BookingRequested) OccurredAt() time.Time { return e.At }

type BookingConfirmed struct {
	BookingID BookingID
	ListingID listings.ListingID
	GuestID   string
	Range     daterange.DateRange
	At        time.Time
}

func (e BookingConfirmed) EventName() string     { return EventConfirmed }
func (e BookingConfirmed) AggregateID() string   { return string(e.BookingID) }
func (e BookingConfirmed) OccurredAt() time.Time { return e.At }

type BookingCancelled struct {
	BookingID   BookingID
	ListingID   listings.ListingID
	HostID      listings.HostID
	GuestID     string
	CancelledBy string
	At          time.Time
}

func (e BookingCancelled) EventName() string     { return EventCancelled }
func (e BookingCancelled) AggregateID() string   { return string(e.BookingID) }
func (e BookingCancelled) OccurredAt() time.Time { return e.At }

// ByGuest reports whether the guest withdrew the booking.
func (e BookingCancelled) ByGuest() bool {
	return e.CancelledBy == e.GuestID
}
