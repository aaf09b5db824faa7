package middleware

import (
	"context"
	"log/slog"
	"time"

	"partyspace/internal/app/apperr"
	"partyspace/internal/app/commands"
	"partyspace/internal/app/queries"
)

// Logging records one line per message. Unavailable failures are logged at ERROR
// with their cause; client-caused failures at INFO.
func Logging(logger *slog.Logger) CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		if logger == nil {
			return next
		}
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			start := time.Now()
			res, err := nextFn(ctx, cmd)
			logOutcome(ctx, logger, "command", cmd.Key(), time.Since(start), err)
			return res, err
		})
	}
}

func QueryLogging(logger *slog.Logger) QueryMiddleware {
	return func(next queries.Bus) queries.Bus {
		if logger == nil {
			return next
		}
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			start := time.Now()
			res, err := nextFn(ctx, q)
			logOutcome(ctx, logger, "query", q.Key(), time.Since(start), err)
			return res, err
		})
	}
}

func logOutcome(ctx context.Context, logger *slog.Logger, kind, key string, took time.Duration, err error) {
	if err == nil {
		logger.DebugContext(ctx, kind+" handled", "key", key, "duration", took)
		return
	}
	errKind := apperr.KindOf(err)
	if errKind == apperr.KindUnavailable {
		logger.ErrorContext(ctx, kind+" failed", "key", key, "duration", took, "code", string(errKind), "err", err)
		return
	}
	logger.InfoContext(ctx, kind+" rejected", "key", key, "duration", took, "code", string(errKind), "err", err)
}
