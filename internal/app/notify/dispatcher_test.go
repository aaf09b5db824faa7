package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partyspace/internal/app/policies"
)

type recordingSink struct {
	mu    sync.Mutex
	got   []policies.Notification
	err   error
	block chan struct{}
}

func (s *recordingSink) Notify(ctx context.Context, n policies.Notification) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
	return s.err
}

func (s *recordingSink) received() []policies.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]policies.Notification(nil), s.got...)
}

type outcomes struct {
	mu   sync.Mutex
	seen map[string]int
}

func (o *outcomes) observe(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.seen == nil {
		o.seen = map[string]int{}
	}
	o.seen[outcome]++
}

func (o *outcomes) count(outcome string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.seen[outcome]
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	sink := &recordingSink{}
	obs := &outcomes{}
	d := NewDispatcher(sink, Options{Workers: 2, Queue: 16, Observer: obs.observe})

	for i := 0; i < 10; i++ {
		require.NoError(t, d.Notify(context.Background(), policies.Notification{RecipientID: "host-1", BookingID: "b"}))
	}
	require.NoError(t, d.Close(context.Background()))

	assert.Len(t, sink.received(), 10)
	assert.Equal(t, 10, obs.count(OutcomeSent))
	assert.ErrorIs(t, d.Notify(context.Background(), policies.Notification{}), ErrClosed)
}

func TestDispatcherDropsWhenQueueIsFull(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	obs := &outcomes{}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	d := NewDispatcher(sink, Options{Workers: 1, Queue: 1, Logger: logger, Observer: obs.observe})

	var dropped int
	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := d.Notify(context.Background(), policies.Notification{BookingID: "b"}); errors.Is(err, ErrQueueFull) {
			dropped++
		}
	}
	assert.Less(t, time.Since(start), time.Second, "Notify must not block")
	assert.GreaterOrEqual(t, dropped, 3)
	assert.Contains(t, buf.String(), "notification dropped")

	close(sink.block)
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, dropped, obs.count(OutcomeDropped))
}

func TestDispatcherSwallowsSinkErrors(t *testing.T) {
	sink := &recordingSink{err: errors.New("broker down")}
	obs := &outcomes{}
	var buf bytes.Buffer
	d := NewDispatcher(sink, Options{Workers: 1, Logger: slog.New(slog.NewTextHandler(&buf, nil)), Observer: obs.observe})

	require.NoError(t, d.Notify(context.Background(), policies.Notification{Event: "booking.requested"}))
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, 1, obs.count(OutcomeFailed))
	assert.Contains(t, buf.String(), "notification delivery failed")
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := LogSink{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	require.NoError(t, sink.Notify(context.Background(), policies.Notification{RecipientID: "host-1", Link: policies.LinkHostListings}))
	assert.Contains(t, buf.String(), "/my-listings")
	assert.NoError(t, LogSink{}.Notify(context.Background(), policies.Notification{}))
}
