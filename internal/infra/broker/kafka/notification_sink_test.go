package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partyspace/internal/app/policies"
)

func TestNotificationSinkPublishesJSON(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	defer producer.Close()

	n := policies.Notification{
		RecipientID: "host-1",
		Message:     "New booking by Ada for Rooftop hall",
		Link:        policies.LinkHostListings,
		Event:       "booking.requested",
		BookingID:   "bk-1",
		OccurredAt:  time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC),
	}

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != DefaultNotificationsTopic {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "host-1" {
			return errors.New("unexpected key " + string(key))
		}
		raw, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var got policies.Notification
		if err := json.Unmarshal(raw, &got); err != nil {
			return err
		}
		if got.Message != n.Message || got.Link != n.Link {
			return errors.New("payload mismatch")
		}
		if len(msg.Headers) != 2 || string(msg.Headers[0].Key) != "content-type" || string(msg.Headers[1].Value) != "booking.requested" {
			return errors.New("unexpected headers")
		}
		return nil
	})

	sink := NewNotificationSink(NewProducerFrom(producer), "")
	require.NoError(t, sink.Notify(context.Background(), n))
}

func TestNotificationSinkSurfacesBrokerErrors(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	defer producer.Close()
	producer.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	sink := NewNotificationSink(NewProducerFrom(producer), "custom.topic")
	err := sink.Notify(context.Background(), policies.Notification{RecipientID: "guest-1"})
	assert.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)
}

func TestPublishHonoursCancelledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	defer producer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewProducerFrom(producer).Publish(ctx, Message{Topic: "t", Key: "k"})
	assert.ErrorIs(t, err, context.Canceled)
}
