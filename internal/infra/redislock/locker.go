package redislock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"partyspace/internal/app/locks"
)

const (
	defaultTTL   = 10 * time.Second
	defaultRetry = 25 * time.Millisecond
	keyPrefix    = "partyspace:lock:listing:"
)

// releaseScript deletes the key only while it still holds our token, so an expired
// lock taken over by another instance is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a per-listing lock shared by every instance through redis.
type Locker struct {
	client redis.Cmdable
	opts   Options
}

type Options struct {
	// TTL bounds how long a crashed holder can block a listing.
	TTL           time.Duration
	RetryInterval time.Duration
	Logger        *slog.Logger
	// Token generates lock ownership tokens; uuid by default.
	Token func() string
}

func New(client redis.Cmdable, opts Options) *Locker {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultRetry
	}
	if opts.Token == nil {
		opts.Token = uuid.NewString
	}
	return &Locker{client: client, opts: opts}
}

// Lock retries SET NX until it wins or ctx is done.
func (l *Locker) Lock(ctx context.Context, listingID string) (func(), error) {
	key := keyPrefix + listingID
	token := l.opts.Token()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.opts.TTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s", locks.ErrLockTimeout, listingID)
			}
			return nil, fmt.Errorf("redislock: acquire %s: %w", listingID, err)
		}
		if ok {
			return l.releaser(key, token), nil
		}
		timer := time.NewTimer(l.opts.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s", locks.ErrLockTimeout, listingID)
		case <-timer.C:
		}
	}
}

func (l *Locker) releaser(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// the caller's context may already be cancelled
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && l.opts.Logger != nil {
				l.opts.Logger.Warn("listing lock release failed", "key", key, "err", err)
			}
		})
	}
}

// Ping is used by the readiness probe.
func (l *Locker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

var _ locks.ListingLocker = (*Locker)(nil)
