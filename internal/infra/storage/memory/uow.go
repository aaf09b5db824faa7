package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"partyspace/internal/app/uow"
	domainbooking "partyspace/internal/domain/booking"
	domainlistings "partyspace/internal/domain/listings"
	"partyspace/internal/domain/shared/daterange"
)

var (
	// ErrFactoryMisconfigured indicates a missing booking store.
	ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")
	ErrReadOnlyUnit         = errors.New("memory: write attempted in read-only unit")
	ErrUnitFinished         = errors.New("memory: unit already committed or rolled back")
)

// Factory opens units over a shared BookingStore.
type Factory struct {
	Bookings *BookingStore
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Bookings == nil {
		return nil, ErrFactoryMisconfigured
	}
	u := &Unit{store: f.Bookings, readOnly: opts.ReadOnly}
	u.repo = &stagedBookings{unit: u}
	return u, nil
}

// Unit buffers writes and applies them in one atomic step on Commit. Reads see
// committed state only.
type Unit struct {
	store    *BookingStore
	readOnly bool
	repo     *stagedBookings

	mu   sync.Mutex
	ops  []bookingOp
	done bool
}

func (u *Unit) Bookings() domainbooking.Repository {
	return u.repo
}

func (u *Unit) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return ErrUnitFinished
	}
	u.done = true
	ops := u.ops
	u.ops = nil
	return u.store.apply(ops)
}

func (u *Unit) Rollback(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.done = true
	u.ops = nil
	return nil
}

func (u *Unit) stage(op bookingOp) error {
	if u.readOnly {
		return ErrReadOnlyUnit
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return ErrUnitFinished
	}
	u.ops = append(u.ops, op)
	return nil
}

type stagedBookings struct {
	unit *Unit
}

func (r *stagedBookings) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	return r.unit.store.ByID(ctx, id)
}

func (r *stagedBookings) FindOverlapping(ctx context.Context, listingID domainlistings.ListingID, dr daterange.DateRange) ([]*domainbooking.Booking, error) {
	return r.unit.store.FindOverlapping(ctx, listingID, dr)
}

func (r *stagedBookings) Create(ctx context.Context, b *domainbooking.Booking) error {
	assignID(b)
	return r.unit.stage(bookingOp{kind: opCreate, booking: b.Clone()})
}

func (r *stagedBookings) Transition(ctx context.Context, id domainbooking.BookingID, from, to domainbooking.BookingState, at time.Time) error {
	return r.unit.stage(bookingOp{kind: opTransition, id: id, from: from, to: to, at: at})
}

func (r *stagedBookings) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	return r.unit.store.ListByGuest(ctx, guestID)
}

func (r *stagedBookings) ListByListing(ctx context.Context, listingID domainlistings.ListingID) ([]*domainbooking.Booking, error) {
	return r.unit.store.ListByListing(ctx, listingID)
}

func (r *stagedBookings) ListByHost(ctx context.Context, hostID domainlistings.HostID) ([]*domainbooking.Booking, error) {
	return r.unit.store.ListByHost(ctx, hostID)
}

var _ uow.UoWFactory = Factory{}
var _ domainbooking.Repository = (*stagedBookings)(nil)
