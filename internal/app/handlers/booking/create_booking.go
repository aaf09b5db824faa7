package booking

import (
	"context"
	"errors"
	"time"

	"partyspace/internal/app/apperr"
	"partyspace/internal/app/commands"
	"partyspace/internal/app/dto"
	handlersupport "partyspace/internal/app/handlers/support"
	"partyspace/internal/app/middleware"
	"partyspace/internal/app/uow"
	domainbooking "partyspace/internal/domain/booking"
	domainlistings "partyspace/internal/domain/listings"
	"partyspace/internal/domain/shared/daterange"
)

const createBookingKey = "booking.create"

type CreateBookingCommand struct {
	ListingID       string    `validate:"required,max=128"`
	GuestID         string    `validate:"required,max=128"`
	CheckIn         time.Time `validate:"required"`
	CheckOut        time.Time `validate:"required"`
	IdempotencyKeyV string
}

func (c CreateBookingCommand) Key() string { return createBookingKey }

// IdempotencyKey is scoped to the guest so two users can never collide on a key.
func (c CreateBookingCommand) IdempotencyKey() string {
	if c.IdempotencyKeyV == "" {
		return ""
	}
	return c.GuestID + ":" + c.IdempotencyKeyV
}

func (c CreateBookingCommand) ResultPrototype() any { return &dto.BookingView{} }

type CreateBookingHandler struct {
	Deps
}

// Handle validates the request in a fixed order (first failure wins), then takes the
// listing lock, re-checks overlap inside a write unit and persists a PENDING booking.
// The host is notified only after commit.
func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*dto.BookingView, error) {
	b, listing, err := h.create(ctx, cmd)
	h.recordOutcome(err)
	if err != nil {
		return nil, apperr.Classify(err)
	}

	guestName := displayName(ctx, h.Users, b.GuestID, nil)
	h.publish(ctx, listing.Title, b.Drain())
	if h.Logger != nil {
		h.Logger.Info("booking created", "booking_id", b.ID, "listing_id", b.ListingID, "guest_id", b.GuestID, "range", b.Range.String(), "total", b.Total.String())
	}
	view := dto.MapBookingView(b, listing.Title, guestName)
	return &view, nil
}

func (h *CreateBookingHandler) create(ctx context.Context, cmd CreateBookingCommand) (*domainbooking.Booking, *domainlistings.Listing, error) {
	listing, err := h.Listings.ByID(ctx, domainlistings.ListingID(cmd.ListingID))
	if err != nil {
		if errors.Is(err, domainlistings.ErrListingNotFound) {
			return nil, nil, apperr.New(apperr.KindNotFound, "listing not found", err)
		}
		return nil, nil, apperr.Unavailable("listing directory unavailable", err)
	}
	if !listing.Bookable() {
		return nil, nil, apperr.NotFound("listing not found")
	}

	now := h.now()
	if err := domainbooking.ValidateCheckIn(cmd.CheckIn, now); err != nil {
		return nil, nil, apperr.InvalidRequest("check-in date is in the past", err)
	}
	dr, err := daterange.New(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, nil, apperr.Classify(err)
	}
	if listing.OwnedBy(cmd.GuestID) {
		return nil, nil, apperr.Conflict("owner cannot book own listing", domainbooking.ErrSelfBooking)
	}

	release, err := h.lock(ctx, listing.ID)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	var created *domainbooking.Booking
	err = handlersupport.InWriteUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		overlapping, err := unit.Bookings().FindOverlapping(ctx, listing.ID, dr)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return apperr.Conflict("dates unavailable", domainbooking.ErrOverlap)
		}
		b, err := domainbooking.NewBooking(domainbooking.CreateParams{
			ID:           h.newID(),
			ListingID:    listing.ID,
			HostID:       listing.Host,
			GuestID:      cmd.GuestID,
			Range:        dr,
			NightlyPrice: listing.NightlyPrice,
			CreatedAt:    now,
		})
		if err != nil {
			return err
		}
		if err := unit.Bookings().Create(ctx, b); err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return created, listing, nil
}

var _ commands.Handler[CreateBookingCommand, *dto.BookingView] = (*CreateBookingHandler)(nil)
var _ middleware.IdempotentCommand = CreateBookingCommand{}
