package fixtures

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"partyspace/internal/domain/listings"
	"partyspace/internal/domain/shared/money"
	domainuser "partyspace/internal/domain/user"
)

// ListingWriter receives imported listings.
type ListingWriter interface {
	Save(ctx context.Context, listing *listings.Listing) error
}

// UserWriter receives imported user profiles.
type UserWriter interface {
	Save(ctx context.Context, user *domainuser.User) error
}

type listingFixture struct {
	ID           string `json:"id"`
	Host         string `json:"host"`
	Title        string `json:"title"`
	NightlyPrice string `json:"nightly_price"`
	Currency     string `json:"currency"`
	Active       *bool  `json:"active"`
}

type userFixture struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LoadListings imports listing fixtures from a JSON array file. A missing file is not
// an error. Invalid entries are logged and skipped; the count of imported listings is returned.
func LoadListings(ctx context.Context, path string, dst ListingWriter, logger *slog.Logger) (int, error) {
	var items []listingFixture
	ok, err := readFixtures(path, &items, logger)
	if err != nil || !ok {
		return 0, err
	}

	now := time.Now().UTC()
	imported := 0
	for _, fx := range items {
		price, err := money.Parse(fx.NightlyPrice, fx.Currency)
		if err != nil {
			logWarn(logger, "fixture invalid", "listing_id", fx.ID, "error", err)
			continue
		}
		listing, err := listings.NewListing(listings.CreateListingParams{
			ID:           listings.ListingID(fx.ID),
			Host:         listings.HostID(fx.Host),
			Title:        fx.Title,
			NightlyPrice: price,
			Active:       fx.Active == nil || *fx.Active,
			Now:          now,
		})
		if err != nil {
			logWarn(logger, "fixture invalid", "listing_id", fx.ID, "error", err)
			continue
		}
		if err := dst.Save(ctx, listing); err != nil {
			return imported, fmt.Errorf("store fixture listing %s: %w", fx.ID, err)
		}
		imported++
	}
	if logger != nil {
		logger.Info("listing fixtures imported", "path", path, "count", imported)
	}
	return imported, nil
}

// LoadUsers imports user profiles the same way LoadListings does.
func LoadUsers(ctx context.Context, path string, dst UserWriter, logger *slog.Logger) (int, error) {
	var items []userFixture
	ok, err := readFixtures(path, &items, logger)
	if err != nil || !ok {
		return 0, err
	}

	now := time.Now().UTC()
	imported := 0
	for _, fx := range items {
		u, err := domainuser.NewUser(domainuser.CreateParams{ID: domainuser.ID(fx.ID), Name: fx.Name, CreatedAt: now})
		if err != nil {
			logWarn(logger, "fixture invalid", "user_id", fx.ID, "error", err)
			continue
		}
		if err := dst.Save(ctx, u); err != nil {
			return imported, fmt.Errorf("store fixture user %s: %w", fx.ID, err)
		}
		imported++
	}
	if logger != nil {
		logger.Info("user fixtures imported", "path", path, "count", imported)
	}
	return imported, nil
}

func readFixtures(path string, out any, logger *slog.Logger) (bool, error) {
	if path == "" {
		return false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if logger != nil {
				logger.Info("fixtures file not found, skipping", "path", path)
			}
			return false, nil
		}
		return false, fmt.Errorf("read fixtures: %w", err)
	}
	if len(data) == 0 {
		logWarn(logger, "fixtures file empty", "path", path)
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode fixtures %s: %w", path, err)
	}
	return true, nil
}

func logWarn(logger *slog.Logger, msg string, args ...any) {
	if logger != nil {
		logger.Warn(msg, args...)
	}
}
