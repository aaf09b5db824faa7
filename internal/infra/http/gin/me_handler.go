package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"partyspace/internal/app/dto"
	bookingapp "partyspace/internal/app/handlers/booking"
	"partyspace/internal/app/queries"
)

type MeHTTP interface {
	ListBookings(c *gin.Context)
}

// MeHandler serves the caller's own bookings as a guest.
type MeHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h MeHandler) ListBookings(c *gin.Context) {
	askCollection(c, h.Queries, h.Logger, func(p principal) bookingapp.ListGuestBookingsQuery {
		return bookingapp.ListGuestBookingsQuery{GuestID: p.ID}
	})
}

// askCollection runs a booking list query built from the caller and renders the
// collection or the classified error.
func askCollection[Q queries.Query](c *gin.Context, bus queries.Bus, logger *slog.Logger, build func(principal) Q) {
	user, ok := requirePrincipal(c)
	if !ok {
		return
	}
	result, err := queries.Ask[Q, dto.BookingCollection](c.Request.Context(), bus, build(user))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ MeHTTP = MeHandler{}
