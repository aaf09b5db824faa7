package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "partyspace/internal/domain/booking"
	"partyspace/internal/domain/listings"
	"partyspace/internal/domain/shared/daterange"
	"partyspace/internal/domain/shared/money"
)

const (
	bookingsCollection = "bookings"
	guardsCollection   = "booking_guards"

	writeConflictCode = 112
)

var ErrDuplicateBooking = errors.New("mongo: booking already exists")

// BookingRepository stores bookings in Mongo. Inside a unit of work every call runs in
// the session transaction carried by ctx.
type BookingRepository struct {
	col    *mongo.Collection
	guards *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{col: db.Collection(bookingsCollection), guards: db.Collection(guardsCollection)}
}

// EnsureIndexes creates the indexes backing the overlap and listing queries.
func (r *BookingRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "state", Value: 1}, {Key: "check_in", Value: 1}}},
		{Keys: bson.D{{Key: "guest_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "host_id", Value: 1}, {Key: "check_in", Value: -1}}},
	})
	return err
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, activeByID(id)).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return doc.toAggregate()
}

func (r *BookingRepository) FindOverlapping(ctx context.Context, listingID listings.ListingID, dr daterange.DateRange) ([]*domainbooking.Booking, error) {
	return r.find(ctx, overlapFilter(listingID, dr), nil)
}

// Create bumps the listing guard document before inserting. Two transactions creating
// bookings for one listing therefore write the same document and one of them aborts
// with a write conflict, which is reported as ErrOverlap.
func (r *BookingRepository) Create(ctx context.Context, b *domainbooking.Booking) error {
	if b.ID == "" {
		b.ID = domainbooking.BookingID(uuid.NewString())
	}
	_, err := r.guards.UpdateOne(ctx,
		bson.M{"_id": string(b.ListingID)},
		bson.M{"$inc": bson.M{"seq": 1}, "$set": bson.M{"updated_at": b.CreatedAt}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if isWriteConflict(err) {
			return domainbooking.ErrOverlap
		}
		return err
	}
	n, err := r.col.CountDocuments(ctx, overlapFilter(b.ListingID, b.Range))
	if err != nil {
		return err
	}
	if n > 0 {
		return domainbooking.ErrOverlap
	}
	doc, err := newBookingDocument(b)
	if err != nil {
		return err
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		switch {
		case mongo.IsDuplicateKeyError(err):
			return ErrDuplicateBooking
		case isWriteConflict(err):
			return domainbooking.ErrOverlap
		}
		return err
	}
	return nil
}

func (r *BookingRepository) Transition(ctx context.Context, id domainbooking.BookingID, from, to domainbooking.BookingState, at time.Time) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": string(id), "state": string(from)},
		bson.M{"$set": bson.M{"state": string(to), "updated_at": at.UTC()}},
	)
	if err != nil {
		if isWriteConflict(err) {
			return domainbooking.ErrStaleState
		}
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}
	n, err := r.col.CountDocuments(ctx, activeByID(id))
	if err != nil {
		return err
	}
	if n == 0 {
		return domainbooking.ErrBookingNotFound
	}
	return domainbooking.ErrStaleState
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	sort := bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	return r.find(ctx, activeWhere(bson.M{"guest_id": guestID}), sort)
}

func (r *BookingRepository) ListByListing(ctx context.Context, listingID listings.ListingID) ([]*domainbooking.Booking, error) {
	sort := bson.D{{Key: "check_in", Value: -1}, {Key: "_id", Value: -1}}
	return r.find(ctx, activeWhere(bson.M{"listing_id": string(listingID)}), sort)
}

func (r *BookingRepository) ListByHost(ctx context.Context, hostID listings.HostID) ([]*domainbooking.Booking, error) {
	sort := bson.D{{Key: "check_in", Value: -1}, {Key: "_id", Value: -1}}
	return r.find(ctx, activeWhere(bson.M{"host_id": string(hostID)}), sort)
}

func (r *BookingRepository) find(ctx context.Context, filter bson.M, sort bson.D) ([]*domainbooking.Booking, error) {
	opts := options.Find()
	if sort != nil {
		opts.SetSort(sort)
	}
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*domainbooking.Booking
	for cur.Next(ctx) {
		var doc bookingDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		b, err := doc.toAggregate()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, cur.Err()
}

func activeWhere(filter bson.M) bson.M {
	filter["state"] = bson.M{"$ne": string(domainbooking.StateCancelled)}
	return filter
}

func activeByID(id domainbooking.BookingID) bson.M {
	return activeWhere(bson.M{"_id": string(id)})
}

// overlapFilter matches active bookings sharing at least one night with dr.
func overlapFilter(listingID listings.ListingID, dr daterange.DateRange) bson.M {
	return activeWhere(bson.M{
		"listing_id": string(listingID),
		"check_in":   bson.M{"$lt": dr.CheckOut},
		"check_out":  bson.M{"$gt": dr.CheckIn},
	})
}

// isWriteConflict matches only the server's WriteConflict code. Other errors
// labelled TransientTransactionError, such as network failures, stay retryable.
func isWriteConflict(err error) bool {
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorCode(writeConflictCode)
	}
	return false
}

type bookingDocument struct {
	ID        string               `bson:"_id"`
	ListingID string               `bson:"listing_id"`
	HostID    string               `bson:"host_id"`
	GuestID   string               `bson:"guest_id"`
	CheckIn   time.Time            `bson:"check_in"`
	CheckOut  time.Time            `bson:"check_out"`
	Total     primitive.Decimal128 `bson:"total"`
	Currency  string               `bson:"currency"`
	State     string               `bson:"state"`
	CreatedAt time.Time            `bson:"created_at"`
	UpdatedAt time.Time            `bson:"updated_at"`
}

func newBookingDocument(b *domainbooking.Booking) (bookingDocument, error) {
	total, err := toDecimal128(b.Total.Amount)
	if err != nil {
		return bookingDocument{}, err
	}
	return bookingDocument{
		ID:        string(b.ID),
		ListingID: string(b.ListingID),
		HostID:    string(b.HostID),
		GuestID:   b.GuestID,
		CheckIn:   b.Range.CheckIn,
		CheckOut:  b.Range.CheckOut,
		Total:     total,
		Currency:  b.Total.Currency,
		State:     string(b.State),
		CreatedAt: b.CreatedAt.UTC(),
		UpdatedAt: b.UpdatedAt.UTC(),
	}, nil
}

func (d bookingDocument) toAggregate() (*domainbooking.Booking, error) {
	amount, err := fromDecimal128(d.Total)
	if err != nil {
		return nil, fmt.Errorf("booking %s: %w", d.ID, err)
	}
	total, err := money.New(amount, d.Currency)
	if err != nil {
		return nil, fmt.Errorf("booking %s: %w", d.ID, err)
	}
	return &domainbooking.Booking{
		ID:        domainbooking.BookingID(d.ID),
		ListingID: listings.ListingID(d.ListingID),
		HostID:    listings.HostID(d.HostID),
		GuestID:   d.GuestID,
		Range:     daterange.DateRange{CheckIn: daterange.Day(d.CheckIn), CheckOut: daterange.Day(d.CheckOut)},
		Total:     total,
		State:     domainbooking.BookingState(d.State),
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	return primitive.ParseDecimal128(d.String())
}

func fromDecimal128(d primitive.Decimal128) (decimal.Decimal, error) {
	return decimal.NewFromString(d.String())
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
