package booking

import (
	"context"
	"errors"

	"partyspace/internal/app/apperr"
	"partyspace/internal/app/commands"
	"partyspace/internal/app/dto"
	handlersupport "partyspace/internal/app/handlers/support"
	"partyspace/internal/app/uow"
	domainbooking "partyspace/internal/domain/booking"
)

const confirmBookingKey = "booking.confirm"

type ConfirmBookingCommand struct {
	BookingID string `validate:"required,max=128"`
	ActorID   string `validate:"required,max=128"`
}

func (c ConfirmBookingCommand) Key() string { return confirmBookingKey }

type ConfirmBookingHandler struct {
	Deps
}

// Handle lets the listing owner accept a pending booking. The range stays occupied
// throughout, so overlap checks are not repeated.
func (h *ConfirmBookingHandler) Handle(ctx context.Context, cmd ConfirmBookingCommand) (*dto.BookingView, error) {
	var (
		confirmed *domainbooking.Booking
		title     string
	)
	err := handlersupport.InWriteUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(cmd.BookingID))
		if err != nil {
			return err
		}
		owner, listingTitle, err := h.ownerOf(ctx, b)
		if err != nil {
			return err
		}
		if string(owner) != cmd.ActorID {
			return apperr.Forbidden("only the host can confirm this booking")
		}
		now := h.now()
		if err := b.Confirm(now); err != nil {
			if errors.Is(err, domainbooking.ErrInvalidState) {
				return apperr.Conflict("only pending bookings can be confirmed", err)
			}
			return err
		}
		if err := unit.Bookings().Transition(ctx, b.ID, domainbooking.StatePending, domainbooking.StateConfirmed, now); err != nil {
			return err
		}
		confirmed = b
		title = listingTitle
		return nil
	})
	if err != nil {
		return nil, apperr.Classify(err)
	}

	h.publish(ctx, title, confirmed.Drain())
	if h.Logger != nil {
		h.Logger.Info("booking confirmed", "booking_id", confirmed.ID, "listing_id", confirmed.ListingID, "host_id", cmd.ActorID)
	}
	view := dto.MapBookingView(confirmed, title, displayName(ctx, h.Users, confirmed.GuestID, nil))
	return &view, nil
}

var _ commands.Handler[ConfirmBookingCommand, *dto.BookingView] = (*ConfirmBookingHandler)(nil)
