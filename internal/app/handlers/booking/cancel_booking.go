package booking

import (
	"context"
	"errors"

	"partyspace/internal/app/apperr"
	"partyspace/internal/app/commands"
	handlersupport "partyspace/internal/app/handlers/support"
	"partyspace/internal/app/middleware"
	"partyspace/internal/app/uow"
	domainbooking "partyspace/internal/domain/booking"
)

const cancelBookingKey = "booking.cancel"

type CancelBookingCommand struct {
	BookingID       string `validate:"required,max=128"`
	ActorID         string `validate:"required,max=128"`
	IdempotencyKeyV string
}

func (c CancelBookingCommand) Key() string { return cancelBookingKey }

func (c CancelBookingCommand) IdempotencyKey() string {
	if c.IdempotencyKeyV == "" {
		return ""
	}
	return c.ActorID + ":" + c.IdempotencyKeyV
}

func (c CancelBookingCommand) ResultPrototype() any { return &CancelBookingResult{} }

type CancelBookingResult struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
}

type CancelBookingHandler struct {
	Deps
}

// Handle cancels a booking on behalf of its guest or the listing owner. The booking
// is released with a compare-and-set against the state observed when it was loaded,
// so no listing lock is needed.
func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (*CancelBookingResult, error) {
	var (
		cancelled *domainbooking.Booking
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
		if !b.IsGuest(cmd.ActorID) && string(owner) != cmd.ActorID {
			return apperr.Forbidden("only the guest or the host can cancel this booking")
		}
		// the event must name the current owner as host
		b.HostID = owner
		from := b.State
		now := h.now()
		if err := b.Cancel(cmd.ActorID, now); err != nil {
			if errors.Is(err, domainbooking.ErrAlreadyStarted) {
				return apperr.Conflict("confirmed booking already started and cannot be cancelled", err)
			}
			return err
		}
		if err := unit.Bookings().Transition(ctx, b.ID, from, domainbooking.StateCancelled, now); err != nil {
			return err
		}
		cancelled = b
		title = listingTitle
		return nil
	})
	if err != nil {
		return nil, apperr.Classify(err)
	}

	if h.Metrics != nil {
		h.Metrics.BookingCancelled()
	}
	h.publish(ctx, title, cancelled.Drain())
	if h.Logger != nil {
		h.Logger.Info("booking cancelled", "booking_id", cancelled.ID, "listing_id", cancelled.ListingID, "actor_id", cmd.ActorID)
	}
	return &CancelBookingResult{BookingID: string(cancelled.ID), Status: string(cancelled.State)}, nil
}

var _ commands.Handler[CancelBookingCommand, *CancelBookingResult] = (*CancelBookingHandler)(nil)
var _ middleware.IdempotentCommand = CancelBookingCommand{}
