package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"partyspace/internal/app/apperr"
	"partyspace/internal/app/locks"
	"partyspace/internal/app/policies"
	"partyspace/internal/app/uow"
	domainbooking "partyspace/internal/domain/booking"
	domainlistings "partyspace/internal/domain/listings"
	domainuser "partyspace/internal/domain/user"
)

// Metrics receives booking lifecycle counters.
type Metrics interface {
	BookingOutcome(outcome string)
	BookingCancelled()
}

// Deps are the collaborators shared by the booking handlers.
type Deps struct {
	UoWFactory uow.UoWFactory
	Listings   domainlistings.Directory
	Users      domainuser.Directory
	Locker     locks.ListingLocker
	Notifier   policies.Notifier
	Metrics    Metrics
	Logger     *slog.Logger
	Now        func() time.Time
	NewID      func() string
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d Deps) newID() domainbooking.BookingID {
	if d.NewID != nil {
		return domainbooking.BookingID(d.NewID())
	}
	return domainbooking.BookingID(uuid.NewString())
}

func (d Deps) lock(ctx context.Context, listingID domainlistings.ListingID) (func(), error) {
	if d.Locker == nil {
		return func() {}, nil
	}
	release, err := d.Locker.Lock(ctx, string(listingID))
	if err != nil {
		return nil, apperr.Unavailable("listing is busy, retry later", err)
	}
	return release, nil
}

// ownerOf resolves who may act as host for a booking: the listing's current owner,
// or the owner captured at creation when the listing is gone from the directory.
func (d Deps) ownerOf(ctx context.Context, b *domainbooking.Booking) (domainlistings.HostID, string, error) {
	listing, err := d.Listings.ByID(ctx, b.ListingID)
	if err != nil {
		if errors.Is(err, domainlistings.ErrListingNotFound) {
			return b.HostID, string(b.ListingID), nil
		}
		return "", "", apperr.Unavailable("listing directory unavailable", err)
	}
	return listing.Host, listing.Title, nil
}

func (d Deps) recordOutcome(err error) {
	if d.Metrics == nil {
		return
	}
	if err == nil {
		d.Metrics.BookingOutcome("created")
		return
	}
	d.Metrics.BookingOutcome(outcomeLabel(apperr.KindOf(err)))
}

func outcomeLabel(kind apperr.Kind) string {
	switch kind {
	case apperr.KindInvalidRequest:
		return "invalid"
	case apperr.KindNotFound:
		return "not_found"
	case apperr.KindForbidden:
		return "forbidden"
	case apperr.KindConflict:
		return "conflict"
	default:
		return "unavailable"
	}
}

func displayName(ctx context.Context, users domainuser.Directory, id string, cache map[string]string) string {
	if name, ok := cache[id]; ok {
		return name
	}
	name := domainuser.DisplayName(ctx, users, id)
	if cache != nil {
		cache[id] = name
	}
	return name
}
