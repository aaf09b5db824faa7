package booking

import (
	"context"
	"errors"

	"partyspace/internal/app/apperr"
	"partyspace/internal/app/dto"
	handlersupport "partyspace/internal/app/handlers/support"
	"partyspace/internal/app/queries"
	domainbooking "partyspace/internal/domain/booking"
	domainlistings "partyspace/internal/domain/listings"
)

const (
	listGuestBookingsKey   = "booking.list.guest"
	listListingBookingsKey = "booking.list.listing"
	listHostBookingsKey    = "booking.list.host"
)

type ListGuestBookingsQuery struct {
	GuestID string `validate:"required,max=128"`
}

func (q ListGuestBookingsQuery) Key() string { return listGuestBookingsKey }

type ListListingBookingsQuery struct {
	ListingID string `validate:"required,max=128"`
	ActorID   string `validate:"required,max=128"`
}

func (q ListListingBookingsQuery) Key() string { return listListingBookingsKey }

type ListHostBookingsQuery struct {
	HostID string `validate:"required,max=128"`
}

func (q ListHostBookingsQuery) Key() string { return listHostBookingsKey }

// ListGuestBookingsHandler returns the guest's active bookings, newest first.
type ListGuestBookingsHandler struct {
	Deps
}

func (h *ListGuestBookingsHandler) Handle(ctx context.Context, q ListGuestBookingsQuery) (dto.BookingCollection, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, apperr.Classify(err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	bookings, err := unit.Bookings().ListByGuest(execCtx, q.GuestID)
	if err != nil {
		return dto.BookingCollection{}, apperr.Classify(err)
	}
	domainbooking.SortByCreatedDesc(bookings)

	items := h.views(execCtx, bookings, nil)
	if h.Logger != nil {
		h.Logger.Debug("guest bookings listed", "guest_id", q.GuestID, "count", len(items))
	}
	return dto.BookingCollection{Items: items}, nil
}

// ListListingBookingsHandler returns a listing's active bookings to its owner.
type ListListingBookingsHandler struct {
	Deps
}

func (h *ListListingBookingsHandler) Handle(ctx context.Context, q ListListingBookingsQuery) (dto.BookingCollection, error) {
	listing, err := h.Listings.ByID(ctx, domainlistings.ListingID(q.ListingID))
	if err != nil {
		if errors.Is(err, domainlistings.ErrListingNotFound) {
			return dto.BookingCollection{}, apperr.New(apperr.KindNotFound, "listing not found", err)
		}
		return dto.BookingCollection{}, apperr.Unavailable("listing directory unavailable", err)
	}
	if !listing.OwnedBy(q.ActorID) {
		return dto.BookingCollection{}, apperr.Forbidden("only the host can list bookings of this listing")
	}

	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, apperr.Classify(err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	bookings, err := unit.Bookings().ListByListing(execCtx, listing.ID)
	if err != nil {
		return dto.BookingCollection{}, apperr.Classify(err)
	}
	domainbooking.SortByCheckInDesc(bookings)

	titles := map[domainlistings.ListingID]string{listing.ID: listing.Title}
	return dto.BookingCollection{Items: h.views(execCtx, bookings, titles)}, nil
}

// ListHostBookingsHandler returns bookings across every listing the host owns.
type ListHostBookingsHandler struct {
	Deps
}

func (h *ListHostBookingsHandler) Handle(ctx context.Context, q ListHostBookingsQuery) (dto.BookingCollection, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, apperr.Classify(err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	bookings, err := unit.Bookings().ListByHost(execCtx, domainlistings.HostID(q.HostID))
	if err != nil {
		return dto.BookingCollection{}, apperr.Classify(err)
	}
	domainbooking.SortByCheckInDesc(bookings)

	items := h.views(execCtx, bookings, nil)
	if h.Logger != nil {
		h.Logger.Debug("host bookings listed", "host_id", q.HostID, "count", len(items))
	}
	return dto.BookingCollection{Items: items}, nil
}

func (d Deps) views(ctx context.Context, bookings []*domainbooking.Booking, titles map[domainlistings.ListingID]string) []dto.BookingView {
	if titles == nil {
		titles = make(map[domainlistings.ListingID]string)
	}
	names := make(map[string]string)
	items := make([]dto.BookingView, 0, len(bookings))
	for _, b := range bookings {
		title, ok := titles[b.ListingID]
		if !ok {
			title = d.listingTitle(ctx, b.ListingID)
			titles[b.ListingID] = title
		}
		items = append(items, dto.MapBookingView(b, title, displayName(ctx, d.Users, b.GuestID, names)))
	}
	return items
}

func (d Deps) listingTitle(ctx context.Context, id domainlistings.ListingID) string {
	if d.Listings == nil {
		return string(id)
	}
	listing, err := d.Listings.ByID(ctx, id)
	if err != nil {
		if d.Logger != nil && !errors.Is(err, domainlistings.ErrListingNotFound) {
			d.Logger.Warn("listing snapshot missing for booking", "listing_id", id, "err", err)
		}
		return string(id)
	}
	return listing.Title
}

var _ queries.Handler[ListGuestBookingsQuery, dto.BookingCollection] = (*ListGuestBookingsHandler)(nil)
var _ queries.Handler[ListListingBookingsQuery, dto.BookingCollection] = (*ListListingBookingsHandler)(nil)
var _ queries.Handler[ListHostBookingsQuery, dto.BookingCollection] = (*ListHostBookingsHandler)(nil)
