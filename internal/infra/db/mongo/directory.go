package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"partyspace/internal/domain/listings"
	"partyspace/internal/domain/shared/money"
	domainuser "partyspace/internal/domain/user"
)

// ListingDirectory reads listings owned by the catalog service from its collection.
type ListingDirectory struct {
	col *mongo.Collection
}

func NewListingDirectory(db *mongo.Database) *ListingDirectory {
	return &ListingDirectory{col: db.Collection("listings")}
}

func (d *ListingDirectory) ByID(ctx context.Context, id listings.ListingID) (*listings.Listing, error) {
	var doc listingDocument
	if err := d.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, listings.ErrListingNotFound
		}
		return nil, err
	}
	return doc.toListing()
}

// Save upserts a listing; used to seed fixtures.
func (d *ListingDirectory) Save(ctx context.Context, l *listings.Listing) error {
	doc, err := newListingDocument(l)
	if err != nil {
		return err
	}
	_, err = d.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

type listingDocument struct {
	ID           string               `bson:"_id"`
	Host         string               `bson:"host_id"`
	Title        string               `bson:"title"`
	NightlyPrice primitive.Decimal128 `bson:"nightly_price"`
	Currency     string               `bson:"currency"`
	State        string               `bson:"state"`
	CreatedAt    time.Time            `bson:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at"`
}

func newListingDocument(l *listings.Listing) (listingDocument, error) {
	price, err := toDecimal128(l.NightlyPrice.Amount)
	if err != nil {
		return listingDocument{}, err
	}
	return listingDocument{
		ID:           string(l.ID),
		Host:         string(l.Host),
		Title:        l.Title,
		NightlyPrice: price,
		Currency:     l.NightlyPrice.Currency,
		State:        string(l.State),
		CreatedAt:    l.CreatedAt.UTC(),
		UpdatedAt:    l.UpdatedAt.UTC(),
	}, nil
}

func (d listingDocument) toListing() (*listings.Listing, error) {
	amount, err := fromDecimal128(d.NightlyPrice)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", d.ID, err)
	}
	price, err := money.New(amount, d.Currency)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", d.ID, err)
	}
	return &listings.Listing{
		ID:           listings.ListingID(d.ID),
		Host:         listings.HostID(d.Host),
		Title:        d.Title,
		NightlyPrice: price,
		State:        listings.ListingState(d.State),
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}, nil
}

// UserDirectory reads public user profiles.
type UserDirectory struct {
	col *mongo.Collection
}

func NewUserDirectory(db *mongo.Database) *UserDirectory {
	return &UserDirectory{col: db.Collection("users")}
}

func (d *UserDirectory) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	var doc userDocument
	if err := d.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainuser.ErrNotFound
		}
		return nil, err
	}
	return &domainuser.User{ID: domainuser.ID(doc.ID), Name: doc.Name, CreatedAt: doc.CreatedAt, UpdatedAt: doc.UpdatedAt}, nil
}

func (d *UserDirectory) Save(ctx context.Context, u *domainuser.User) error {
	doc := userDocument{ID: string(u.ID), Name: u.Name, CreatedAt: u.CreatedAt.UTC(), UpdatedAt: u.UpdatedAt.UTC()}
	_, err := d.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

type userDocument struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

var _ listings.Directory = (*ListingDirectory)(nil)
var _ domainuser.Directory = (*UserDirectory)(nil)
