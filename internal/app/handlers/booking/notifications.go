package booking

import (
	"context"
	"fmt"

	"partyspace/internal/app/policies"
	domainbooking "partyspace/internal/domain/booking"
	"partyspace/internal/domain/shared/events"
)

// publish turns committed booking events into notifications. Delivery problems are
// logged and never reach the caller.
func (d Deps) publish(ctx context.Context, listingTitle string, evts []events.DomainEvent) {
	if d.Notifier == nil {
		return
	}
	for _, evt := range evts {
		n, ok := d.notificationFor(ctx, evt, listingTitle)
		if !ok {
			continue
		}
		if err := d.Notifier.Notify(ctx, n); err != nil && d.Logger != nil {
			d.Logger.Warn("notification not queued", "event", n.Event, "booking_id", n.BookingID, "recipient_id", n.RecipientID, "err", err)
		}
	}
}

func (d Deps) notificationFor(ctx context.Context, evt events.DomainEvent, title string) (policies.Notification, bool) {
	n := policies.Notification{
		Event:      evt.EventName(),
		BookingID:  evt.AggregateID(),
		OccurredAt: evt.OccurredAt(),
	}
	switch e := evt.(type) {
	case domainbooking.BookingRequested:
		n.RecipientID = string(e.HostID)
		n.Message = fmt.Sprintf("New booking by %s for %s", displayName(ctx, d.Users, e.GuestID, nil), title)
		n.Link = policies.LinkHostListings
	case domainbooking.BookingConfirmed:
		n.RecipientID = e.GuestID
		n.Message = fmt.Sprintf("Your booking for %s was confirmed", title)
		n.Link = policies.LinkGuestBookings
	case domainbooking.BookingCancelled:
		if e.ByGuest() {
			n.RecipientID = string(e.HostID)
			n.Message = fmt.Sprintf("Booking cancelled by %s for %s", displayName(ctx, d.Users, e.GuestID, nil), title)
			n.Link = policies.LinkHostListings
		} else {
			n.RecipientID = e.GuestID
			n.Message = fmt.Sprintf("Booking cancelled by the host for %s", title)
			n.Link = policies.LinkGuestBookings
		}
	default:
		return policies.Notification{}, false
	}
	return n, n.RecipientID != ""
}
