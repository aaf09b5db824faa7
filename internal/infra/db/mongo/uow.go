package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"partyspace/internal/app/uow"
	domainbooking "partyspace/internal/domain/booking"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB       *mongo.Database
	Bookings *BookingRepository
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Begin starts a MongoDB session/transaction. Write units use majority read and write
// concerns so the guard document conflicts are detected across replicas.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil || f.Bookings == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetReadConcern(readconcern.Snapshot()).SetWriteConcern(writeconcern.Majority())
	if opts.ReadOnly {
		txnOpts = options.Transaction().SetReadConcern(readconcern.Majority())
	}
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{session: session, bookings: f.Bookings}, nil
}

type Unit struct {
	session  mongo.Session
	bookings *BookingRepository
	inserted bool
}

func (u *Unit) Bookings() domainbooking.Repository {
	return unitBookings{BookingRepository: u.bookings, unit: u}
}

// Commit reports a write conflict as an overlap when the unit created a booking,
// since the listing guard was contended, and as a stale state otherwise.
func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	err := u.session.CommitTransaction(ctx)
	switch {
	case err == nil:
		return nil
	case isWriteConflict(err) && u.inserted:
		return domainbooking.ErrOverlap
	case isWriteConflict(err):
		return domainbooking.ErrStaleState
	}
	return err
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

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
