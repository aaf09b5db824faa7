package listings

import (
	"context"
	"errors"
	"strings"
	"time"

	"partyspace/internal/domain/shared/money"
)

var (
	ErrListingNotFound = errors.New("listings: not found")
	ErrTitleRequired   = errors.New("listings: title is required")
	ErrHostRequired    = errors.New("listings: host is required")
	ErrNightlyPrice    = errors.New("listings: nightly price must be non-negative")
)

type ListingID string
type HostID string

type ListingState string

const (
	ListingDraft     ListingState = "DRAFT"
	ListingActive    ListingState = "ACTIVE"
	// ListingSuspended is only reported by the directory. It is not bookable.
	ListingSuspended ListingState = "SUSPENDED"
)

// Listing is a bookable party venue as seen by the booking engine. It is a read-only
// snapshot owned by the listing directory.
type Listing struct {
	ID           ListingID
	Host         HostID
	Title        string
	NightlyPrice money.Money
	State        ListingState
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Directory resolves listings. Implementations return ErrListingNotFound for unknown ids.
type Directory interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
}

type CreateListingParams struct {
	ID           ListingID
	Host         HostID
	Title        string
	NightlyPrice money.Money
	Active       bool
	Now          time.Time
}

func NewListing(params CreateListingParams) (*Listing, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("listings: id is required")
	}
	if strings.TrimSpace(string(params.Host)) == "" {
		return nil, ErrHostRequired
	}
	if strings.TrimSpace(params.Title) == "" {
		return nil, ErrTitleRequired
	}
	if params.NightlyPrice.IsNegative() {
		return nil, ErrNightlyPrice
	}
	if _, err := money.New(params.NightlyPrice.Amount, params.NightlyPrice.Currency); err != nil {
		return nil, err
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}

	listing := &Listing{
		ID:           params.ID,
		Host:         params.Host,
		Title:        strings.TrimSpace(params.Title),
		NightlyPrice: params.NightlyPrice,
		State:        ListingDraft,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}
	if params.Active {
		listing.Activate(now)
	}
	return listing, nil
}

// Bookable reports whether guests may request dates on the listing.
func (l *Listing) Bookable() bool {
	return l != nil && l.State == ListingActive
}

func (l *Listing) OwnedBy(userID string) bool {
	return l != nil && string(l.Host) == userID
}

func (l *Listing) Activate(now time.Time) {
	if l.State == ListingActive {
		return
	}
	l.State = ListingActive
	l.UpdatedAt = now.UTC()
}
