package ginserver

import (
	"log/slog"

	gin "github.com/gin-gonic/gin"

	bookingapp "partyspace/internal/app/handlers/booking"
	"partyspace/internal/app/queries"
)

type HostBookingHTTP interface {
	List(c *gin.Context)
	ListForListing(c *gin.Context)
}

// HostBookingHandler serves bookings made on the caller's listings.
type HostBookingHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

// List returns bookings across every listing the caller hosts.
func (h HostBookingHandler) List(c *gin.Context) {
	askCollection(c, h.Queries, h.Logger, func(p principal) bookingapp.ListHostBookingsQuery {
		return bookingapp.ListHostBookingsQuery{HostID: p.ID}
	})
}

// ListForListing is restricted to the listing owner.
func (h HostBookingHandler) ListForListing(c *gin.Context) {
	listingID := c.Param("id")
	askCollection(c, h.Queries, h.Logger, func(p principal) bookingapp.ListListingBookingsQuery {
		return bookingapp.ListListingBookingsQuery{ListingID: listingID, ActorID: p.ID}
	})
}

var _ HostBookingHTTP = HostBookingHandler{}
