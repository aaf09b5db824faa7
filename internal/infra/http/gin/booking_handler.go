package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"partyspace/internal/app/commands"
	"partyspace/internal/app/dto"
	bookingapp "partyspace/internal/app/handlers/booking"
	"partyspace/internal/domain/shared/daterange"
)

type BookingHTTP interface {
	Create(c *gin.Context)
	Cancel(c *gin.Context)
	Confirm(c *gin.Context)
}

type BookingHandler struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

type createBookingRequest struct {
	ListingID string `json:"listing_id"`
	CheckIn   string `json:"check_in"`
	CheckOut  string `json:"check_out"`
}

func (h BookingHandler) Create(c *gin.Context) {
	user, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed request body")
		return
	}
	checkIn, err := daterange.ParseDate(req.CheckIn)
	if err != nil {
		badRequest(c, "check_in must be a YYYY-MM-DD date")
		return
	}
	checkOut, err := daterange.ParseDate(req.CheckOut)
	if err != nil {
		badRequest(c, "check_out must be a YYYY-MM-DD date")
		return
	}
	cmd := bookingapp.CreateBookingCommand{
		ListingID:       req.ListingID,
		GuestID:         user.ID,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.BookingView](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Cancel(c *gin.Context) {
	user, ok := requirePrincipal(c)
	if !ok {
		return
	}
	cmd := bookingapp.CancelBookingCommand{
		BookingID:       c.Param("id"),
		ActorID:         user.ID,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	if _, err := commands.Dispatch[bookingapp.CancelBookingCommand, *bookingapp.CancelBookingResult](c.Request.Context(), h.Commands, cmd); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h BookingHandler) Confirm(c *gin.Context) {
	user, ok := requirePrincipal(c)
	if !ok {
		return
	}
	cmd := bookingapp.ConfirmBookingCommand{BookingID: c.Param("id"), ActorID: user.ID}
	result, err := commands.Dispatch[bookingapp.ConfirmBookingCommand, *dto.BookingView](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ BookingHTTP = BookingHandler{}
