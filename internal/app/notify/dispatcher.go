package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"partyspace/internal/app/policies"
)

var (
	ErrQueueFull = errors.New("notify: queue full")
	ErrClosed    = errors.New("notify: dispatcher closed")
)

// Outcome labels reported to Observer.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeDropped = "dropped"
)

// Observer receives one call per notification outcome. Metrics hook in here.
type Observer func(outcome string)

type Options struct {
	Workers  int
	Queue    int
	Timeout  time.Duration
	Logger   *slog.Logger
	Observer Observer
}

// Dispatcher hands notifications to a sink on background workers. Notify never
// blocks the caller: a full queue drops the notification.
type Dispatcher struct {
	sink     policies.Notifier
	queue    chan policies.Notification
	timeout  time.Duration
	logger   *slog.Logger
	observer Observer

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(sink policies.Notifier, opts Options) *Dispatcher {
	if sink == nil {
		panic("notify: sink required")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 2
	}
	size := opts.Queue
	if size <= 0 {
		size = 256
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	d := &Dispatcher{
		sink:     sink,
		queue:    make(chan policies.Notification, size),
		timeout:  timeout,
		logger:   opts.Logger,
		observer: opts.Observer,
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.run()
	}
	return d
}

// Notify enqueues n for delivery.
func (d *Dispatcher) Notify(_ context.Context, n policies.Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.observe(OutcomeDropped)
		return ErrClosed
	}
	select {
	case d.queue <- n:
		return nil
	default:
		d.observe(OutcomeDropped)
		if d.logger != nil {
			d.logger.Warn("notification dropped", "reason", "queue_full", "event", n.Event, "booking_id", n.BookingID, "recipient_id", n.RecipientID)
		}
		return ErrQueueFull
	}
}

// Close stops accepting notifications and waits until queued ones are delivered
// or ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n policies.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.sink.Notify(ctx, n); err != nil {
		d.observe(OutcomeFailed)
		if d.logger != nil {
			d.logger.Warn("notification delivery failed", "event", n.Event, "booking_id", n.BookingID, "recipient_id", n.RecipientID, "err", err)
		}
		return
	}
	d.observe(OutcomeSent)
}

func (d *Dispatcher) observe(outcome string) {
	if d.observer != nil {
		d.observer(outcome)
	}
}

var _ policies.Notifier = (*Dispatcher)(nil)
