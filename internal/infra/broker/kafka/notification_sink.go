package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"partyspace/internal/app/policies"
)

const DefaultNotificationsTopic = "notifications.v1"

// NotificationSink publishes notifications for the delivery service, keyed by
// recipient so one user's notifications stay ordered.
type NotificationSink struct {
	producer *Producer
	topic    string
}

func NewNotificationSink(producer *Producer, topic string) *NotificationSink {
	if topic == "" {
		topic = DefaultNotificationsTopic
	}
	return &NotificationSink{producer: producer, topic: topic}
}

func (s *NotificationSink) Notify(ctx context.Context, n policies.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	_, _, err = s.producer.Publish(ctx, Message{
		Topic:   s.topic,
		Key:     n.RecipientID,
		Value:   payload,
		Headers: map[string]string{"event": n.Event, "content-type": "application/json"},
	})
	if err != nil {
		return fmt.Errorf("publish notification %s: %w", n.BookingID, err)
	}
	return nil
}

var _ policies.Notifier = (*NotificationSink)(nil)
