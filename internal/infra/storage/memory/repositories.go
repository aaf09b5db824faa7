package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	domainbooking "partyspace/internal/domain/booking"
	domainlistings "partyspace/internal/domain/listings"
	"partyspace/internal/domain/shared/daterange"
)

// ErrDuplicateBooking is returned when a booking id is reused.
var ErrDuplicateBooking = errors.New("memory: booking already exists")

// ListingDirectory is an in-memory listing directory for local runs and tests.
type ListingDirectory struct {
	mu    sync.RWMutex
	items map[domainlistings.ListingID]*domainlistings.Listing
}

func NewListingDirectory(items ...*domainlistings.Listing) *ListingDirectory {
	d := &ListingDirectory{items: make(map[domainlistings.ListingID]*domainlistings.Listing)}
	for _, l := range items {
		_ = d.Save(context.Background(), l)
	}
	return d
}

// ByID returns a copy of the listing or ErrListingNotFound.
func (d *ListingDirectory) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	listing, ok := d.items[id]
	if !ok {
		return nil, domainlistings.ErrListingNotFound
	}
	out := *listing
	return &out, nil
}

// Save stores or replaces a listing.
func (d *ListingDirectory) Save(ctx context.Context, listing *domainlistings.Listing) error {
	if listing == nil || listing.ID == "" {
		return domainlistings.ErrListingNotFound
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *listing
	d.items[listing.ID] = &cp
	return nil
}

// BookingStore is the in-memory interval store. Direct calls apply immediately;
// units stage their writes and apply them atomically on commit.
type BookingStore struct {
	mu    sync.RWMutex
	items map[domainbooking.BookingID]*domainbooking.Booking
}

func NewBookingStore() *BookingStore {
	return &BookingStore{items: make(map[domainbooking.BookingID]*domainbooking.Booking)}
}

func (s *BookingStore) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.items[id]
	if !ok || !b.State.Occupies() {
		return nil, domainbooking.ErrBookingNotFound
	}
	return b.Clone(), nil
}

func (s *BookingStore) FindOverlapping(ctx context.Context, listingID domainlistings.ListingID, dr daterange.DateRange) ([]*domainbooking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(b *domainbooking.Booking) bool {
		return b.ListingID == listingID && b.Range.Overlaps(dr)
	}), nil
}

func (s *BookingStore) Create(ctx context.Context, b *domainbooking.Booking) error {
	assignID(b)
	return s.apply([]bookingOp{{kind: opCreate, booking: b.Clone()}})
}

func (s *BookingStore) Transition(ctx context.Context, id domainbooking.BookingID, from, to domainbooking.BookingState, at time.Time) error {
	return s.apply([]bookingOp{{kind: opTransition, id: id, from: from, to: to, at: at}})
}

func (s *BookingStore) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.collect(func(b *domainbooking.Booking) bool { return b.GuestID == guestID })
	domainbooking.SortByCreatedDesc(out)
	return out, nil
}

func (s *BookingStore) ListByListing(ctx context.Context, listingID domainlistings.ListingID) ([]*domainbooking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.collect(func(b *domainbooking.Booking) bool { return b.ListingID == listingID })
	domainbooking.SortByCheckInDesc(out)
	return out, nil
}

func (s *BookingStore) ListByHost(ctx context.Context, hostID domainlistings.HostID) ([]*domainbooking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.collect(func(b *domainbooking.Booking) bool { return b.HostID == hostID })
	domainbooking.SortByCheckInDesc(out)
	return out, nil
}

// collect returns clones of active bookings matching keep. Caller holds the lock.
func (s *BookingStore) collect(keep func(*domainbooking.Booking) bool) []*domainbooking.Booking {
	out := make([]*domainbooking.Booking, 0)
	for _, b := range s.items {
		if b.State.Occupies() && keep(b) {
			out = append(out, b.Clone())
		}
	}
	return out
}

type opKind int

const (
	opCreate opKind = iota + 1
	opTransition
)

type bookingOp struct {
	kind    opKind
	booking *domainbooking.Booking
	id      domainbooking.BookingID
	from    domainbooking.BookingState
	to      domainbooking.BookingState
	at      time.Time
}

// apply validates and applies ops atomically under the write lock. Overlap is
// re-evaluated here, so two units racing on one listing cannot both commit.
func (s *BookingStore) apply(ops []bookingOp) error {
	if len(ops) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[domainbooking.BookingID]*domainbooking.Booking, len(ops))
	current := func(id domainbooking.BookingID) (*domainbooking.Booking, bool) {
		if b, ok := staged[id]; ok {
			return b, true
		}
		b, ok := s.items[id]
		return b, ok
	}
	for _, op := range ops {
		switch op.kind {
		case opCreate:
			if _, exists := current(op.booking.ID); exists {
				return ErrDuplicateBooking
			}
			if s.overlapsLocked(op.booking, staged) {
				return domainbooking.ErrOverlap
			}
			staged[op.booking.ID] = op.booking.Clone()
		case opTransition:
			b, ok := current(op.id)
			if !ok || !b.State.Occupies() {
				return domainbooking.ErrBookingNotFound
			}
			if b.State != op.from {
				return domainbooking.ErrStaleState
			}
			next := b.Clone()
			next.State = op.to
			next.UpdatedAt = op.at.UTC()
			staged[op.id] = next
		}
	}
	for id, b := range staged {
		s.items[id] = b
	}
	return nil
}

func (s *BookingStore) overlapsLocked(candidate *domainbooking.Booking, staged map[domainbooking.BookingID]*domainbooking.Booking) bool {
	conflicts := func(b *domainbooking.Booking) bool {
		return b.ID != candidate.ID && b.ListingID == candidate.ListingID && b.State.Occupies() && b.Range.Overlaps(candidate.Range)
	}
	for id, b := range s.items {
		if _, shadowed := staged[id]; shadowed {
			continue
		}
		if conflicts(b) {
			return true
		}
	}
	for _, b := range staged {
		if conflicts(b) {
			return true
		}
	}
	return false
}

func assignID(b *domainbooking.Booking) {
	if b.ID == "" {
		b.ID = domainbooking.BookingID(uuid.NewString())
	}
}

var _ domainlistings.Directory = (*ListingDirectory)(nil)
var _ domainbooking.Repository = (*BookingStore)(nil)
