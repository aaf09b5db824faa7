package listings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partyspace/internal/domain/shared/money"
)

func TestNewListingDefaultsToDraft(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	l, err := NewListing(CreateListingParams{
		ID:           "lst-1",
		Host:         "host-1",
		Title:        "  Rooftop hall ",
		NightlyPrice: money.Must("100.00", "EUR"),
		Now:          now,
	})
	require.NoError(t, err)

	assert.Equal(t, "Rooftop hall", l.Title)
	assert.Equal(t, ListingDraft, l.State)
	assert.False(t, l.Bookable())
	assert.Equal(t, now, l.CreatedAt)
}

func TestActivateMakesListingBookable(t *testing.T) {
	l, err := NewListing(CreateListingParams{
		ID:           "lst-1",
		Host:         "host-1",
		Title:        "Garden",
		NightlyPrice: money.Must("0", "EUR"),
		Active:       true,
	})
	require.NoError(t, err)
	assert.True(t, l.Bookable())
	assert.True(t, l.OwnedBy("host-1"))
	assert.False(t, l.OwnedBy("guest-1"))


	suspended := *l
	suspended.State = ListingSuspended
	assert.False(t, suspended.Bookable())
}

func TestNewListingValidation(t *testing.T) {
	tests := []struct {
		name   string
		params CreateListingParams
		want   error
	}{
		{"missing host", CreateListingParams{ID: "1", Title: "x", NightlyPrice: money.Must("1", "EUR")}, ErrHostRequired},
		{"missing title", CreateListingParams{ID: "1", Host: "h", NightlyPrice: money.Must("1", "EUR")}, ErrTitleRequired},
		{"negative price", CreateListingParams{ID: "1", Host: "h", Title: "x", NightlyPrice: money.Must("-1", "EUR")}, ErrNightlyPrice},
		{"missing currency", CreateListingParams{ID: "1", Host: "h", Title: "x"}, money.ErrInvalidCurrency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewListing(tt.params)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
