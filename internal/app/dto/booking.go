package dto

import (
	"time"

	domainbooking "partyspace/internal/domain/booking"
	"partyspace/internal/domain/shared/daterange"
	"partyspace/internal/domain/shared/money"
)

// MoneyDTO renders amounts as decimal strings so clients never see float rounding.
type MoneyDTO struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type BookingListingSnapshot struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type BookingGuestSnapshot struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type BookingView struct {
	ID        string                 `json:"id"`
	Listing   BookingListingSnapshot `json:"listing"`
	Guest     BookingGuestSnapshot   `json:"guest"`
	CheckIn   string                 `json:"check_in"`
	CheckOut  string                 `json:"check_out"`
	Nights    int                    `json:"nights"`
	Total     MoneyDTO               `json:"total"`
	Status    string                 `json:"status"`
	CreatedAt string                 `json:"created_at"`
}

type BookingCollection struct {
	Items []BookingView `json:"items"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{
		Amount:   value.String(),
		Currency: value.Currency,
	}
}

// MapBookingView flattens a booking with the listing title and guest display name.
func MapBookingView(booking *domainbooking.Booking, listingTitle, guestName string) BookingView {
	if guestName == "" {
		guestName = booking.GuestID
	}
	return BookingView{
		ID:        string(booking.ID),
		Listing:   BookingListingSnapshot{ID: string(booking.ListingID), Title: listingTitle},
		Guest:     BookingGuestSnapshot{ID: booking.GuestID, Name: guestName},
		CheckIn:   booking.Range.CheckIn.Format(daterange.DateLayout),
		CheckOut:  booking.Range.CheckOut.Format(daterange.DateLayout),
		Nights:    booking.Range.Nights(),
		Total:     MapMoney(booking.Total),
		Status:    string(booking.State),
		CreatedAt: booking.CreatedAt.UTC().Format(time.RFC3339),
	}
}
