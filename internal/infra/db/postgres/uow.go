package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"partyspace/internal/app/uow"
	domainbooking "partyspace/internal/domain/booking"
)

var ErrUnitOfWorkNotConfigured = errors.New("postgres: unit of work factory missing database")

type txKey struct{}

func txFromContext(ctx context.Context) (*sqlx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx, ok && tx != nil
}

// Factory opens SERIALIZABLE transactions so concurrent check-then-insert sequences
// on one listing cannot both commit.
type Factory struct {
	DB       *sqlx.DB
	Bookings *BookingRepository
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil || f.Bookings == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	tx, err := f.DB.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable, ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, err
	}
	return &Unit{tx: tx, bookings: f.Bookings}, nil
}

type Unit struct {
	tx       *sqlx.Tx
	bookings *BookingRepository
	inserted bool
}

func (u *Unit) Bookings() domainbooking.Repository {
	return unitBookings{BookingRepository: u.bookings, unit: u}
}

// Commit reports a serialization failure as an overlap when the unit inserted a
// booking and as a stale state otherwise.
func (u *Unit) Commit(ctx context.Context) error {
	err := u.tx.Commit()
	if code(err) == serializationFailure && u.inserted {
		return domainbooking.ErrOverlap
	}
	return mapError(err)
}

func (u *Unit) Rollback(ctx context.Context) error {
	err := u.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// InjectContext hands the transaction to the repository.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, txKey{}, u.tx)
}

// unitBookings remembers whether the unit attempted an insert.
type unitBookings struct {
	*BookingRepository
	unit *Unit
}

func (b unitBookings) Create(ctx context.Context, booking *domainbooking.Booking) error {
	b.unit.inserted = true
	return b.BookingRepository.Create(ctx, booking)
}

var _ uow.UoWFactory = Factory{}
var _ uow.ContextInjector = (*Unit)(nil)
