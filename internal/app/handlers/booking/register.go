package booking

import (
	"partyspace/internal/app/commands"
	"partyspace/internal/app/dto"
	"partyspace/internal/app/queries"
)

// Register wires every booking handler into the buses.
func Register(cmdBus *commands.InMemoryBus, queryBus *queries.InMemoryBus, deps Deps) {
	commands.RegisterHandler[CreateBookingCommand, *dto.BookingView](cmdBus, &CreateBookingHandler{Deps: deps})
	commands.RegisterHandler[CancelBookingCommand, *CancelBookingResult](cmdBus, &CancelBookingHandler{Deps: deps})
	commands.RegisterHandler[ConfirmBookingCommand, *dto.BookingView](cmdBus, &ConfirmBookingHandler{Deps: deps})

	queries.RegisterHandler[ListGuestBookingsQuery, dto.BookingCollection](queryBus, &ListGuestBookingsHandler{Deps: deps})
	queries.RegisterHandler[ListListingBookingsQuery, dto.BookingCollection](queryBus, &ListListingBookingsHandler{Deps: deps})
	queries.RegisterHandler[ListHostBookingsQuery, dto.BookingCollection](queryBus, &ListHostBookingsHandler{Deps: deps})
}
