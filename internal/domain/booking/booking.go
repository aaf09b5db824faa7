package booking

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"partyspace/internal/domain/listings"
	"partyspace/internal/domain/shared/daterange"
	"partyspace/internal/domain/shared/events"
	"partyspace/internal/domain/shared/money"
)

var (
	ErrGuestRequired   = errors.New("booking: guest id required")
	ErrSelfBooking     = errors.New("booking: owner cannot book own listing")
	ErrInvalidState    = errors.New("booking: invalid state transition")
	ErrBookingNotFound = errors.New("booking: not found")
	// ErrOverlap is returned by stores when an active booking already occupies part of the range.
	ErrOverlap = errors.New("booking: dates unavailable")
	// ErrStaleState is returned by Transition when the stored state no longer matches the expected one.
	ErrStaleState = errors.New("booking: state changed concurrently")
)

type BookingID string

type BookingState string

const (
	StatePending   BookingState = "PENDING"
	StateConfirmed BookingState = "CONFIRMED"
	StateCancelled BookingState = "CANCELLED"
)

// Occupies reports whether a booking in this state blocks its date range.
func (s BookingState) Occupies() bool {
	return s == StatePending || s == StateConfirmed
}

func (s BookingState) Valid() bool {
	switch s {
	case StatePending, StateConfirmed, StateCancelled:
		return true
	}
	return false
}

type Booking struct {
	ID        BookingID
	ListingID listings.ListingID
	HostID    listings.HostID
	GuestID   string
	Range     daterange.DateRange
	Total     money.Money
	State     BookingState
	CreatedAt time.Time
	UpdatedAt time.Time
	events.EventRecorder
}

// Repository is the interval store. Cancelled bookings are invisible to every reader.
type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	FindOverlapping(ctx context.Context, listingID listings.ListingID, dr daterange.DateRange) ([]*Booking, error)
	// Create inserts a booking and returns ErrOverlap when the range is taken at commit time.
	Create(ctx context.Context, booking *Booking) error
	// Transition moves a booking from one state to another, failing with ErrStaleState
	// if the stored state is no longer from.
	Transition(ctx context.Context, id BookingID, from, to BookingState, at time.Time) error
	ListByGuest(ctx context.Context, guestID string) ([]*Booking, error)
	ListByListing(ctx context.Context, listingID listings.ListingID) ([]*Booking, error)
	ListByHost(ctx context.Context, hostID listings.HostID) ([]*Booking, error)
}

type CreateParams struct {
	ID           BookingID
	ListingID    listings.ListingID
	HostID       listings.HostID
	GuestID      string
	Range        daterange.DateRange
	NightlyPrice money.Money
	CreatedAt    time.Time
}

// NewBooking prices the stay and returns a PENDING booking.
func NewBooking(params CreateParams) (*Booking, error) {
	guest := strings.TrimSpace(params.GuestID)
	if guest == "" {
		return nil, ErrGuestRequired
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	if string(params.HostID) == guest {
		return nil, ErrSelfBooking
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:        params.ID,
		ListingID: params.ListingID,
		HostID:    params.HostID,
		GuestID:   guest,
		Range:     params.Range,
		Total:     Quote(params.NightlyPrice, params.Range),
		State:     StatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.Record(BookingRequested{BookingID: b.ID, ListingID: b.ListingID, HostID: b.HostID, GuestID: b.GuestID, Range: b.Range, Total: b.Total, At: now})
	return b, nil
}

// Quote is the nightly price multiplied by the number of nights.
func Quote(nightly money.Money, dr daterange.DateRange) money.Money {
	return nightly.Multiply(int64(dr.Nights()))
}

// Confirm accepts a pending booking.
func (b *Booking) Confirm(now time.Time) error {
	if b.State != StatePending {
		return ErrInvalidState
	}
	b.State = StateConfirmed
	b.UpdatedAt = now.UTC()
	b.Record(BookingConfirmed{BookingID: b.ID, ListingID: b.ListingID, GuestID: b.GuestID, Range: b.Range, At: b.UpdatedAt})
	return nil
}

// Cancel releases the booking's dates. by is the actor who cancelled.
func (b *Booking) Cancel(by string, now time.Time) error {
	if !b.State.Occupies() {
		return ErrInvalidState
	}
	if err := CheckCancellable(b, now); err != nil {
		return err
	}
	b.State = StateCancelled
	b.UpdatedAt = now.UTC()
	b.Record(BookingCancelled{
		BookingID:   b.ID,
		ListingID:   b.ListingID,
		HostID:      b.HostID,
		GuestID:     b.GuestID,
		CancelledBy: by,
		At:          b.UpdatedAt,
	})
	return nil
}

func (b *Booking) IsGuest(userID string) bool {
	return b != nil && b.GuestID == userID
}

func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	out := *b
	out.EventRecorder = events.EventRecorder{}
	return &out
}

// SortByCreatedDesc orders bookings newest first.
func SortByCreatedDesc(items []*Booking) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

// SortByCheckInDesc orders bookings by check-in, latest first.
func SortByCheckInDesc(items []*Booking) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Range.CheckIn.Equal(items[j].Range.CheckIn) {
			return items[i].ID > items[j].ID
		}
		return items[i].Range.CheckIn.After(items[j].Range.CheckIn)
	})
}
