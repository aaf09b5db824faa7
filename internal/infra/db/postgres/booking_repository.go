package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	domainbooking "partyspace/internal/domain/booking"
	"partyspace/internal/domain/listings"
	"partyspace/internal/domain/shared/daterange"
	"partyspace/internal/domain/shared/money"
)

const (
	exclusionViolation   = "23P01"
	uniqueViolation      = "23505"
	serializationFailure = "40001"

	bookingColumns = "id, listing_id, host_id, guest_id, check_in, check_out, total, currency, status, created_at, updated_at"
	activeOnly     = "status <> 'CANCELLED'"
)

var ErrDuplicateBooking = errors.New("postgres: booking already exists")

// executor is satisfied by both *sqlx.DB and *sqlx.Tx.
type executor interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// BookingRepository keeps bookings in postgres. The exclusion constraint on the table
// is the last word on overlaps; the application check only gives a friendlier path.
type BookingRepository struct {
	db *sqlx.DB
}

func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) exec(ctx context.Context) executor {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return r.db
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var row bookingRow
	err := r.exec(ctx).GetContext(ctx, &row, "SELECT "+bookingColumns+" FROM bookings WHERE id = $1 AND "+activeOnly, string(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return row.toAggregate()
}

func (r *BookingRepository) FindOverlapping(ctx context.Context, listingID listings.ListingID, dr daterange.DateRange) ([]*domainbooking.Booking, error) {
	return r.list(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE listing_id = $1 AND "+activeOnly+
		" AND check_in < $3 AND check_out > $2 ORDER BY check_in", string(listingID), dr.CheckIn, dr.CheckOut)
}

func (r *BookingRepository) Create(ctx context.Context, b *domainbooking.Booking) error {
	if b.ID == "" {
		b.ID = domainbooking.BookingID(uuid.NewString())
	}
	_, err := r.exec(ctx).ExecContext(ctx,
		"INSERT INTO bookings ("+bookingColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)",
		string(b.ID), string(b.ListingID), string(b.HostID), b.GuestID,
		b.Range.CheckIn, b.Range.CheckOut, b.Total.Amount, b.Total.Currency,
		string(b.State), b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
	)
	if code(err) == serializationFailure {
		return domainbooking.ErrOverlap
	}
	return mapError(err)
}

func (r *BookingRepository) Transition(ctx context.Context, id domainbooking.BookingID, from, to domainbooking.BookingState, at time.Time) error {
	res, err := r.exec(ctx).ExecContext(ctx,
		"UPDATE bookings SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2",
		string(id), string(from), string(to), at.UTC(),
	)
	if err != nil {
		if code(err) == serializationFailure {
			return domainbooking.ErrStaleState
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var status string
	err = r.exec(ctx).GetContext(ctx, &status, "SELECT status FROM bookings WHERE id = $1", string(id))
	if errors.Is(err, sql.ErrNoRows) || (err == nil && status == string(domainbooking.StateCancelled)) {
		return domainbooking.ErrBookingNotFound
	}
	if err != nil {
		return err
	}
	return domainbooking.ErrStaleState
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	return r.list(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE guest_id = $1 AND "+activeOnly+
		" ORDER BY created_at DESC, id DESC", guestID)
}

func (r *BookingRepository) ListByListing(ctx context.Context, listingID listings.ListingID) ([]*domainbooking.Booking, error) {
	return r.list(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE listing_id = $1 AND "+activeOnly+
		" ORDER BY check_in DESC, id DESC", string(listingID))
}

func (r *BookingRepository) ListByHost(ctx context.Context, hostID listings.HostID) ([]*domainbooking.Booking, error) {
	return r.list(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE host_id = $1 AND "+activeOnly+
		" ORDER BY check_in DESC, id DESC", string(hostID))
}

func (r *BookingRepository) list(ctx context.Context, query string, args ...any) ([]*domainbooking.Booking, error) {
	var rows []bookingRow
	if err := r.exec(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]*domainbooking.Booking, 0, len(rows))
	for _, row := range rows {
		b, err := row.toAggregate()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

type bookingRow struct {
	ID        string          `db:"id"`
	ListingID string          `db:"listing_id"`
	HostID    string          `db:"host_id"`
	GuestID   string          `db:"guest_id"`
	CheckIn   time.Time       `db:"check_in"`
	CheckOut  time.Time       `db:"check_out"`
	Total     decimal.Decimal `db:"total"`
	Currency  string          `db:"currency"`
	Status    string          `db:"status"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func (r bookingRow) toAggregate() (*domainbooking.Booking, error) {
	total, err := money.New(r.Total, r.Currency)
	if err != nil {
		return nil, err
	}
	return &domainbooking.Booking{
		ID:        domainbooking.BookingID(r.ID),
		ListingID: listings.ListingID(r.ListingID),
		HostID:    listings.HostID(r.HostID),
		GuestID:   r.GuestID,
		Range:     daterange.DateRange{CheckIn: daterange.Day(r.CheckIn), CheckOut: daterange.Day(r.CheckOut)},
		Total:     total,
		State:     domainbooking.BookingState(r.Status),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}, nil
}

// mapError turns constraint violations into domain errors. A serialization failure
// outside an insert means a concurrent unit changed the rows this one read.
func mapError(err error) error {
	switch code(err) {
	case "":
		return err
	case exclusionViolation:
		return domainbooking.ErrOverlap
	case serializationFailure:
		return domainbooking.ErrStaleState
	case uniqueViolation:
		return ErrDuplicateBooking
	}
	return err
}

func code(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
