package notify

import (
	"context"
	"log/slog"

	"partyspace/internal/app/policies"
)

// LogSink writes notifications to the logger. Used when no broker is configured.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Notify(ctx context.Context, n policies.Notification) error {
	if s.Logger == nil {
		return nil
	}
	s.Logger.InfoContext(ctx, "notification", "recipient_id", n.RecipientID, "event", n.Event, "booking_id", n.BookingID, "link", n.Link, "message", n.Message)
	return nil
}

var _ policies.Notifier = LogSink{}
