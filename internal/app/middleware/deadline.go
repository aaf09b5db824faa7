package middleware

import (
	"context"
	"errors"
	"time"

	"partyspace/internal/app/apperr"
	"partyspace/internal/app/commands"
	"partyspace/internal/app/queries"
)

// Deadline bounds every command by timeout. A non-positive timeout disables it.
func Deadline(timeout time.Duration) CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		if timeout <= 0 {
			return next
		}
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			res, err := nextFn(ctx, cmd)
			return res, deadlineError(ctx, err)
		})
	}
}

func QueryDeadline(timeout time.Duration) QueryMiddleware {
	return func(next queries.Bus) queries.Bus {
		if timeout <= 0 {
			return next
		}
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			res, err := nextFn(ctx, q)
			return res, deadlineError(ctx, err)
		})
	}
}

func deadlineError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	// a decided outcome stands even if the deadline expired right after it
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind != apperr.KindUnavailable {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.Unavailable("request timed out", err)
	}
	return err
}
