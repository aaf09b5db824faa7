package booking_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partyspace/internal/app/apperr"
	"partyspace/internal/app/commands"
	"partyspace/internal/app/dto"
	bookingapp "partyspace/internal/app/handlers/booking"
	"partyspace/internal/app/middleware"
	"partyspace/internal/app/policies"
	"partyspace/internal/app/queries"
	"partyspace/internal/app/uow"
	domainlistings "partyspace/internal/domain/listings"
	"partyspace/internal/domain/shared/daterange"
	"partyspace/internal/domain/shared/money"
	domainuser "partyspace/internal/domain/user"
	"partyspace/internal/infra/storage/memory"
)

var today = time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu  sync.Mutex
	got []policies.Notification
	err error
}

func (n *recordingNotifier) Notify(_ context.Context, msg policies.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, msg)
	return n.err
}

func (n *recordingNotifier) sent() []policies.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]policies.Notification(nil), n.got...)
}

type countingMetrics struct {
	mu        sync.Mutex
	outcomes  map[string]int
	cancelled int
}

func (m *countingMetrics) BookingOutcome(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = map[string]int{}
	}
	m.outcomes[outcome]++
}

func (m *countingMetrics) BookingCancelled() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled++
}

type failingFactory struct{}

func (failingFactory) Begin(context.Context, uow.TxOptions) (uow.UnitOfWork, error) {
	return nil, errors.New("connection refused")
}

type fixture struct {
	deps     bookingapp.Deps
	store    *memory.BookingStore
	notifier *recordingNotifier
	metrics  *countingMetrics
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hall, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID: "lst-1", Host: "host-1", Title: "Rooftop hall", NightlyPrice: money.Must("100.00", "EUR"), Active: true,
	})
	require.NoError(t, err)
	garden, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID: "lst-2", Host: "host-1", Title: "Garden", NightlyPrice: money.Must("40.50", "EUR"), Active: true,
	})
	require.NoError(t, err)
	draft, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID: "lst-draft", Host: "host-2", Title: "Basement", NightlyPrice: money.Must("10", "EUR"),
	})
	require.NoError(t, err)

	f := &fixture{
		store:    memory.NewBookingStore(),
		notifier: &recordingNotifier{},
		metrics:  &countingMetrics{},
		now:      today,
	}
	f.deps = bookingapp.Deps{
		UoWFactory: memory.Factory{Bookings: f.store},
		Listings:   memory.NewListingDirectory(hall, garden, draft),
		Users: memory.NewUserDirectory(
			&domainuser.User{ID: "guest-1", Name: "Ada"},
			&domainuser.User{ID: "host-1", Name: "Hugo"},
		),
		Locker:   memory.NewKeyedLocker(),
		Notifier: f.notifier,
		Metrics:  f.metrics,
		Now:      func() time.Time { return f.now },
	}
	return f
}

func day(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := daterange.ParseDate(value)
	require.NoError(t, err)
	return d
}

func (f *fixture) create(t *testing.T, listing, guest, in, out string) (*dto.BookingView, error) {
	t.Helper()
	h := &bookingapp.CreateBookingHandler{Deps: f.deps}
	return h.Handle(context.Background(), bookingapp.CreateBookingCommand{
		ListingID: listing,
		GuestID:   guest,
		CheckIn:   day(t, in),
		CheckOut:  day(t, out),
	})
}

func (f *fixture) cancel(bookingID, actor string) error {
	h := &bookingapp.CancelBookingHandler{Deps: f.deps}
	_, err := h.Handle(context.Background(), bookingapp.CancelBookingCommand{BookingID: bookingID, ActorID: actor})
	return err
}

func (f *fixture) confirm(bookingID, actor string) (*dto.BookingView, error) {
	h := &bookingapp.ConfirmBookingHandler{Deps: f.deps}
	return h.Handle(context.Background(), bookingapp.ConfirmBookingCommand{BookingID: bookingID, ActorID: actor})
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr, "engine must return classified errors, got %T", err)
	assert.Equal(t, kind, appErr.Kind, "unexpected error: %v", err)
}

func TestCreateBookingPricesAndNotifiesHost(t *testing.T) {
	f := newFixture(t)

	view, err := f.create(t, "lst-1", "guest-1", "2024-06-20", "2024-06-23")
	require.NoError(t, err)

	assert.NotEmpty(t, view.ID)
	assert.Equal(t, "PENDING", view.Status)
	assert.Equal(t, dto.MoneyDTO{Amount: "300.00", Currency: "EUR"}, view.Total)
	assert.Equal(t, "Rooftop hall", view.Listing.Title)
	assert.Equal(t, "Ada", view.Guest.Name)

	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "host-1", sent[0].RecipientID)
	assert.Equal(t, "New booking by Ada for Rooftop hall", sent[0].Message)
	assert.Equal(t, "/my-listings", sent[0].Link)
	assert.Equal(t, view.ID, sent[0].BookingID)
	assert.Equal(t, 1, f.metrics.outcomes["created"])
}

func TestCreateBookingPriceDeterminism(t *testing.T) {
	f := newFixture(t)

	first, err := f.create(t, "lst-2", "guest-1", "2024-07-01", "2024-07-04")
	require.NoError(t, err)
	second, err := f.create(t, "lst-2", "guest-1", "2024-08-01", "2024-08-04")
	require.NoError(t, err)

	assert.Equal(t, "121.50", first.Total.Amount)
	assert.Equal(t, first.Total, second.Total)
}

func TestCreateBookingValidationOrder(t *testing.T) {
	tests := []struct {
		name    string
		listing string
		guest   string
		in, out string
		want    apperr.Kind
		message string
	}{
		{"unknown listing wins over bad dates", "missing", "guest-1", "2024-01-01", "2023-01-01", apperr.KindNotFound, "listing not found"},
		{"draft listing is not bookable", "lst-draft", "guest-1", "2024-06-20", "2024-06-21", apperr.KindNotFound, "listing not found"},
		{"past check-in", "lst-1", "guest-1", "2024-06-09", "2024-06-12", apperr.KindInvalidRequest, "check-in date is in the past"},
		{"past check-in wins over inverted range", "lst-1", "guest-1", "2024-06-01", "2024-05-30", apperr.KindInvalidRequest, "check-in date is in the past"},
		{"zero nights", "lst-1", "guest-1", "2024-06-20", "2024-06-20", apperr.KindInvalidRequest, "check-out must be after check-in"},
		{"inverted range", "lst-1", "guest-1", "2024-06-22", "2024-06-20", apperr.KindInvalidRequest, "check-out must be after check-in"},
		{"stay over the limit", "lst-1", "guest-1", "2024-06-20", "2400-06-20", apperr.KindInvalidRequest, "stay must not exceed 365 nights"},
		{"inverted range wins over own listing", "lst-1", "host-1", "2024-06-20", "2022-06-22", apperr.KindInvalidRequest, "check-out must be after check-in"},
		{"owner books own listing", "lst-1", "host-1", "2024-06-20", "2024-06-22", apperr.KindConflict, "owner cannot book own listing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.create(t, tt.listing, tt.guest, tt.in, tt.out)
			requireKind(t, err, tt.want)

			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.message, appErr.Message)
			assert.Empty(t, f.notifier.sent())
		})
	}
}

func TestCheckInTodayIsAllowed(t *testing.T) {
	f := newFixture(t)
	_, err := f.create(t, "lst-1", "guest-1", "2024-06-10", "2024-06-11")
	require.NoError(t, err)
}

func TestOverlapRejectedAndAdjacencyAllowed(t *testing.T) {
	f := newFixture(t)
	_, err := f.create(t, "lst-1", "guest-1", "2024-06-20", "2024-06-23")
	require.NoError(t, err)

	_, err = f.create(t, "lst-1", "guest-2", "2024-06-22", "2024-06-25")
	requireKind(t, err, apperr.KindConflict)
	assert.Contains(t, err.Error(), "dates unavailable")

	_, err = f.create(t, "lst-1", "guest-2", "2024-06-23", "2024-06-25")
	require.NoError(t, err, "check-out day is free for the next guest")
	_, err = f.create(t, "lst-1", "guest-2", "2024-06-18", "2024-06-20")
	require.NoError(t, err)

	_, err = f.create(t, "lst-2", "guest-2", "2024-06-20", "2024-06-23")
	require.NoError(t, err, "other listings are independent")
	assert.Equal(t, 1, f.metrics.outcomes["conflict"])
}

func TestRepeatedRequestIsRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.create(t, "lst-1", "guest-1", "2024-06-20", "2024-06-23")
	require.NoError(t, err)

	_, err = f.create(t, "lst-1", "guest-1", "2024-06-20", "2024-06-23")
	requireKind(t, err, apperr.KindConflict)

	list, err := (&bookingapp.ListGuestBookingsHandler{Deps: f.deps}).Handle(context.Background(), bookingapp.ListGuestBookingsQuery{GuestID: "guest-1"})
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)
}

func TestConcurrentCreatesYieldSingleWinner(t *testing.T) {
	for _, withLock := range []bool{true, false} {
		name := "listing lock"
		if !withLock {
			name = "store enforced"
		}
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			if !withLock {
				f.deps.Locker = nil
			}
			const attempts = 25
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				successes int
				conflicts int
				others    []error
			)
			start := make(chan struct{})
			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					h := &bookingapp.CreateBookingHandler{Deps: f.deps}
					_, err := h.Handle(context.Background(), bookingapp.CreateBookingCommand{
						ListingID: "lst-1",
						GuestID:   "guest-1",
						CheckIn:   time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC),
						CheckOut:  time.Date(2024, 6, 23, 0, 0, 0, 0, time.UTC),
					})
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						successes++
					case apperr.KindOf(err) == apperr.KindConflict:
						conflicts++
					default:
						others = append(others, err)
					}
				}()
			}
			close(start)
			wg.Wait()

			assert.Equal(t, 1, successes)
			assert.Equal(t, attempts-1, conflicts)
			assert.Empty(t, others)
			assert.Len(t, f.notifier.sent(), 1)
		})
	}
}

func TestCancelByGuestNotifiesHost(t *testing.T) {
	f := newFixture(t)
	view, err := f.create(t, "lst-1", "guest-1", "2024-06-20", "2024-06-23")
	require.NoError(t, err)

	require.NoError(t, f.cancel(view.ID, "guest-1"))

	sent := f.notifier.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "host-1", sent[1].RecipientID)
	assert.Equal(t, "Booking cancelled by Ada for Rooftop hall", sent[1].Message)
	assert.Equal(t, "/my-listings", sent[1].Link)
	assert.Equal(t, 1, f.metrics.cancelled)

	_, err = f.create(t, "lst-1", "guest-2", "2024-06-20", "2024-06-23")
	require.NoError(t, err, "cancelled range is free again")

	requireKind(t, f.cancel(view.ID, "guest-1"), apperr.KindNotFound)
}

func TestCancelByHostNotifiesGuest(t *testing.T) {
	f := newFixture(t)
	view, err := f.create(t, "lst-1", "guest-1", "2024-06-20", "2024-06-23")
	require.NoError(t, err)

	require.NoError(t, f.cancel(view.ID, "host-1"))

	sent := f.notifier.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "guest-1", sent[1].RecipientID)
	assert.Equal(t, "Booking cancelled by the host for Rooftop hall", sent[1].Message)
	assert.Equal(t, "/my-bookings", sent[1].Link)
}

func TestCancelAuthorization(t *testing.T) {
	f := newFixture(t)
	view, err := f.create(t, "lst-1", "guest-1", "2024-06-20", "2024-06-23")
	require.NoError(t, err)

	requireKind(t, f.cancel(view.ID, "stranger"), apperr.KindForbidden)
	requireKind(t, f.cancel("missing", "guest-1"), apperr.KindNotFound)

	assert.Len(t, f.notifier.sent(), 1, "rejected cancellations notify nobody")
}

func TestConfirmedStartedBookingIsImmutable(t *testing.T) {
	f := newFixture(t)
	view, err := f.create(t, "lst-1", "guest-1", "2024-06-10", "2024-06-14")
	require.NoError(t, err)
	_, err = f.confirm(view.ID, "host-1")
	require.NoError(t, err)

	f.now = time.Date(2024, 6, 10, 23, 0, 0, 0, time.UTC)
	pending, err := f.create(t, "lst-2", "guest-1", "2024-06-10", "2024-06-12")
	require.NoError(t, err)

	f.now = time.Date(2024, 6, 11, 9, 0, 0, 0, time.UTC)
	requireKind(t, f.cancel(view.ID, "guest-1"), apperr.KindConflict)
	requireKind(t, f.cancel(view.ID, "host-1"), apperr.KindConflict)

	// pending bookings can be withdrawn even after check-in
	require.NoError(t, f.cancel(pending.ID, "guest-1"))

	stored, err := (&bookingapp.ListGuestBookingsHandler{Deps: f.deps}).Handle(context.Background(), bookingapp.ListGuestBookingsQuery{GuestID: "guest-1"})
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "CONFIRMED", stored.Items[0].Status)
}

func TestConfirmBooking(t *testing.T) {
	f := newFixture(t)
	view, err := f.create(t, "lst-1", "guest-1", "2024-06-20", "2024-06-23")
	require.NoError(t, err)

	_, err = f.confirm(view.ID, "guest-1")
	requireKind(t, err, apperr.KindForbidden)

	confirmed, err := f.confirm(view.ID, "host-1")
	require.NoError(t, err)
	assert.Equal(t, "CONFIRMED", confirmed.Status)

	sent := f.notifier.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "guest-1", sent[1].RecipientID)
	assert.Equal(t, "Your booking for Rooftop hall was confirmed", sent[1].Message)
	assert.Equal(t, "/my-bookings", sent[1].Link)

	_, err = f.confirm(view.ID, "host-1")
	requireKind(t, err, apperr.KindConflict)
	_, err = f.confirm("missing", "host-1")
	requireKind(t, err, apperr.KindNotFound)

	_, err = f.create(t, "lst-1", "guest-2", "2024-06-21", "2024-06-22")
	requireKind(t, err, apperr.KindConflict)
}

func TestNotifierFailureDoesNotChangeOutcome(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("queue full")

	view, err := f.create(t, "lst-1", "guest-1", "2024-06-20", "2024-06-23")
	require.NoError(t, err)
	require.NoError(t, f.cancel(view.ID, "guest-1"))
}

func TestStoreFailuresAreUnavailable(t *testing.T) {
	f := newFixture(t)
	f.deps.UoWFactory = failingFactory{}

	_, err := f.create(t, "lst-1", "guest-1", "2024-06-20", "2024-06-23")
	requireKind(t, err, apperr.KindUnavailable)
	requireKind(t, f.cancel("any", "guest-1"), apperr.KindUnavailable)

	_, err = (&bookingapp.ListHostBookingsHandler{Deps: f.deps}).Handle(context.Background(), bookingapp.ListHostBookingsQuery{HostID: "host-1"})
	requireKind(t, err, apperr.KindUnavailable)
	assert.Equal(t, 1, f.metrics.outcomes["unavailable"])
}

func TestListQueries(t *testing.T) {
	f := newFixture(t)
	first, err := f.create(t, "lst-1", "guest-1", "2024-07-01", "2024-07-03")
	require.NoError(t, err)
	f.now = today.Add(time.Minute)
	second, err := f.create(t, "lst-2", "guest-1", "2024-06-20", "2024-06-21")
	require.NoError(t, err)
	f.now = today.Add(2 * time.Minute)
	third, err := f.create(t, "lst-1", "guest-2", "2024-06-15", "2024-06-16")
	require.NoError(t, err)
	cancelled, err := f.create(t, "lst-1", "guest-1", "2024-08-01", "2024-08-02")
	require.NoError(t, err)
	require.NoError(t, f.cancel(cancelled.ID, "guest-1"))

	ctx := context.Background()
	guest, err := (&bookingapp.ListGuestBookingsHandler{Deps: f.deps}).Handle(ctx, bookingapp.ListGuestBookingsQuery{GuestID: "guest-1"})
	require.NoError(t, err)
	require.Len(t, guest.Items, 2)
	assert.Equal(t, second.ID, guest.Items[0].ID, "newest first")
	assert.Equal(t, "Garden", guest.Items[0].Listing.Title)

	listing, err := (&bookingapp.ListListingBookingsHandler{Deps: f.deps}).Handle(ctx, bookingapp.ListListingBookingsQuery{ListingID: "lst-1", ActorID: "host-1"})
	require.NoError(t, err)
	require.Len(t, listing.Items, 2)
	assert.Equal(t, first.ID, listing.Items[0].ID, "latest check-in first")
	assert.Equal(t, third.ID, listing.Items[1].ID)
	assert.Equal(t, "guest-2", listing.Items[1].Guest.Name, "unknown users fall back to their id")

	_, err = (&bookingapp.ListListingBookingsHandler{Deps: f.deps}).Handle(ctx, bookingapp.ListListingBookingsQuery{ListingID: "lst-1", ActorID: "guest-1"})
	requireKind(t, err, apperr.KindForbidden)
	_, err = (&bookingapp.ListListingBookingsHandler{Deps: f.deps}).Handle(ctx, bookingapp.ListListingBookingsQuery{ListingID: "nope", ActorID: "host-1"})
	requireKind(t, err, apperr.KindNotFound)

	host, err := (&bookingapp.ListHostBookingsHandler{Deps: f.deps}).Handle(ctx, bookingapp.ListHostBookingsQuery{HostID: "host-1"})
	require.NoError(t, err)
	require.Len(t, host.Items, 3)
	assert.Equal(t, first.ID, host.Items[0].ID)
	assert.Equal(t, second.ID, host.Items[1].ID)
	assert.Equal(t, third.ID, host.Items[2].ID)
}

func TestBusRejectsMalformedCommands(t *testing.T) {
	f := newFixture(t)
	cmdBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	bookingapp.Register(cmdBus, queryBus, f.deps)

	validator := middleware.NewStructValidator()
	bus := middleware.ChainCommands(cmdBus, middleware.Classify(), middleware.Validation(validator))

	_, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.BookingView](context.Background(), bus, bookingapp.CreateBookingCommand{
		GuestID:  "guest-1",
		CheckIn:  day(t, "2024-06-20"),
		CheckOut: day(t, "2024-06-21"),
	})
	requireKind(t, err, apperr.KindInvalidRequest)

	view, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.BookingView](context.Background(), bus, bookingapp.CreateBookingCommand{
		ListingID: "lst-1",
		GuestID:   "guest-1",
		CheckIn:   day(t, "2024-06-20"),
		CheckOut:  day(t, "2024-06-21"),
	})
	require.NoError(t, err)
	assert.Equal(t, "100.00", view.Total.Amount)

	items, err := queries.Ask[bookingapp.ListGuestBookingsQuery, dto.BookingCollection](context.Background(), queryBus, bookingapp.ListGuestBookingsQuery{GuestID: "guest-1"})
	require.NoError(t, err)
	assert.Len(t, items.Items, 1)
}
