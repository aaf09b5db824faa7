package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partyspace/internal/app/uow"
	domainbooking "partyspace/internal/domain/booking"
	"partyspace/internal/domain/shared/daterange"
	"partyspace/internal/domain/shared/money"
)

var columns = []string{"id", "listing_id", "host_id", "guest_id", "check_in", "check_out", "total", "currency", "status", "created_at", "updated_at"}

func setupMock(t *testing.T) (*BookingRepository, *sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { _ = sqlxDB.Close() })
	return NewBookingRepository(sqlxDB), sqlxDB, mock
}

func june(day int) time.Time {
	return time.Date(2024, 6, day, 0, 0, 0, 0, time.UTC)
}

func newBooking(t *testing.T) *domainbooking.Booking {
	t.Helper()
	dr, err := daterange.New(june(20), june(23))
	require.NoError(t, err)
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:           "bk-1",
		ListingID:    "lst-1",
		HostID:       "host-1",
		GuestID:      "guest-1",
		Range:        dr,
		NightlyPrice: money.Must("100.00", "EUR"),
		CreatedAt:    june(10),
	})
	require.NoError(t, err)
	return b
}

func TestFindOverlappingUsesHalfOpenPredicate(t *testing.T) {
	repo, _, mock := setupMock(t)
	created := june(10)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE listing_id = $1 AND status <> 'CANCELLED' AND check_in < $3 AND check_out > $2")).
		WithArgs("lst-1", june(21), june(25)).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("bk-1", "lst-1", "host-1", "guest-1", june(20), june(23), "300.00", "EUR", "PENDING", created, created))

	items, err := repo.FindOverlapping(context.Background(), "lst-1", daterange.DateRange{CheckIn: june(21), CheckOut: june(25)})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "300.00", items[0].Total.String())
	assert.Equal(t, domainbooking.StatePending, items[0].State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMapsConstraintViolations(t *testing.T) {
	tests := []struct {
		name string
		code pq.ErrorCode
		want error
	}{
		{"exclusion", exclusionViolation, domainbooking.ErrOverlap},
		{"serialization", serializationFailure, domainbooking.ErrOverlap},
		{"duplicate id", uniqueViolation, ErrDuplicateBooking},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, _, mock := setupMock(t)
			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).
				WillReturnError(&pq.Error{Code: tt.code})

			err := repo.Create(context.Background(), newBooking(t))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestByIDMissing(t *testing.T) {
	repo, _, mock := setupMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE id = $1 AND status <> 'CANCELLED'")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(columns))

	_, err := repo.ByID(context.Background(), "nope")
	assert.ErrorIs(t, err, domainbooking.ErrBookingNotFound)
}

func TestTransition(t *testing.T) {
	update := regexp.QuoteMeta("UPDATE bookings SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2")
	lookup := regexp.QuoteMeta("SELECT status FROM bookings WHERE id = $1")
	at := june(11)

	t.Run("applied", func(t *testing.T) {
		repo, _, mock := setupMock(t)
		mock.ExpectExec(update).WithArgs("bk-1", "PENDING", "CANCELLED", at).WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, repo.Transition(context.Background(), "bk-1", domainbooking.StatePending, domainbooking.StateCancelled, at))
	})

	t.Run("state moved", func(t *testing.T) {
		repo, _, mock := setupMock(t)
		mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(lookup).WithArgs("bk-1").WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("CONFIRMED"))
		err := repo.Transition(context.Background(), "bk-1", domainbooking.StatePending, domainbooking.StateConfirmed, at)
		assert.ErrorIs(t, err, domainbooking.ErrStaleState)
	})

	t.Run("already cancelled", func(t *testing.T) {
		repo, _, mock := setupMock(t)
		mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(lookup).WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("CANCELLED"))
		err := repo.Transition(context.Background(), "bk-1", domainbooking.StatePending, domainbooking.StateCancelled, at)
		assert.ErrorIs(t, err, domainbooking.ErrBookingNotFound)
	})

	t.Run("missing", func(t *testing.T) {
		repo, _, mock := setupMock(t)
		mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(lookup).WillReturnRows(sqlmock.NewRows([]string{"status"}))
		err := repo.Transition(context.Background(), "gone", domainbooking.StatePending, domainbooking.StateCancelled, at)
		assert.ErrorIs(t, err, domainbooking.ErrBookingNotFound)
	})
}

func TestUnitRunsRepositoryInsideTransaction(t *testing.T) {
	repo, db, mock := setupMock(t)
	factory := Factory{DB: db, Bookings: repo}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	unit, err := factory.Begin(context.Background(), uow.TxOptions{})
	require.NoError(t, err)
	ctx := unit.(uow.ContextInjector).InjectContext(context.Background())
	require.NoError(t, unit.Bookings().Create(ctx, newBooking(t)))
	require.NoError(t, unit.Commit(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitRollbackDiscardsWrites(t *testing.T) {
	repo, db, mock := setupMock(t)
	factory := Factory{DB: db, Bookings: repo}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).WillReturnError(&pq.Error{Code: exclusionViolation})
	mock.ExpectRollback()

	unit, err := factory.Begin(context.Background(), uow.TxOptions{})
	require.NoError(t, err)
	ctx := unit.(uow.ContextInjector).InjectContext(context.Background())
	assert.ErrorIs(t, unit.Bookings().Create(ctx, newBooking(t)), domainbooking.ErrOverlap)
	require.NoError(t, unit.Rollback(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnitCommitSerializationFailure(t *testing.T) {
	at := june(11)

	t.Run("after transition is stale state", func(t *testing.T) {
		repo, db, mock := setupMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit().WillReturnError(&pq.Error{Code: serializationFailure})

		unit, err := Factory{DB: db, Bookings: repo}.Begin(context.Background(), uow.TxOptions{})
		require.NoError(t, err)
		ctx := unit.(uow.ContextInjector).InjectContext(context.Background())
		require.NoError(t, unit.Bookings().Transition(ctx, "bk-1", domainbooking.StatePending, domainbooking.StateConfirmed, at))

		err = unit.Commit(ctx)
		assert.ErrorIs(t, err, domainbooking.ErrStaleState)
		assert.NotErrorIs(t, err, domainbooking.ErrOverlap)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("after insert is overlap", func(t *testing.T) {
		repo, db, mock := setupMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit().WillReturnError(&pq.Error{Code: serializationFailure})

		unit, err := Factory{DB: db, Bookings: repo}.Begin(context.Background(), uow.TxOptions{})
		require.NoError(t, err)
		ctx := unit.(uow.ContextInjector).InjectContext(context.Background())
		require.NoError(t, unit.Bookings().Create(ctx, newBooking(t)))

		assert.ErrorIs(t, unit.Commit(ctx), domainbooking.ErrOverlap)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFactoryRequiresDatabase(t *testing.T) {
	_, err := Factory{}.Begin(context.Background(), uow.TxOptions{})
	assert.ErrorIs(t, err, ErrUnitOfWorkNotConfigured)
}
