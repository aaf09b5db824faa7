package locks

import (
	"context"
	"errors"
)

// ErrLockTimeout is returned when a listing lock cannot be acquired before the context deadline.
var ErrLockTimeout = errors.New("locks: timed out waiting for listing lock")

// ListingLocker serializes booking creation per listing. Locks for different
// listings never contend.
type ListingLocker interface {
	// Lock blocks until the listing is held or ctx is done. The returned release
	// func must be called exactly once.
	Lock(ctx context.Context, listingID string) (release func(), err error)
}
