package policies

import (
	"context"
	"time"
)

// Notification is a user-facing message about a booking lifecycle change.
type Notification struct {
	RecipientID string    `json:"recipient_id"`
	Message     string    `json:"message"`
	Link        string    `json:"link"`
	Event       string    `json:"event"`
	BookingID   string    `json:"booking_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Notifier delivers notifications. The booking engine treats it as fire-and-forget:
// errors are logged and never change a booking outcome.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Links rendered into notifications.
const (
	LinkHostListings  = "/my-listings"
	LinkGuestBookings = "/my-bookings"
)
