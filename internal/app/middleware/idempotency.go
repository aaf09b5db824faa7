package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"reflect"
	"time"

	"partyspace/internal/app/apperr"
	"partyspace/internal/app/commands"
)

// IdempotentCommand must be implemented by commands that want idempotency guarantees.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any // should match the handler result type
}

// claimLease bounds how long a pending claim blocks its key after the owner
// stopped without recording an outcome.
const claimLease = time.Minute

// IdempotencyRecord is the stored outcome of a command. Failures keep their kind so a
// replay reproduces the original classification. A pending record marks a key
// whose first request is still running.
type IdempotencyRecord struct {
	Key          string
	Pending      bool
	Payload      []byte
	ErrorKind    string
	ErrorMessage string
	OccurredAt   time.Time
}

func (r IdempotencyRecord) Failed() bool {
	return r.ErrorKind != ""
}

// Abandoned reports whether a pending claim outlived its lease.
func (r IdempotencyRecord) Abandoned(now time.Time, lease time.Duration) bool {
	return r.Pending && lease > 0 && now.Sub(r.OccurredAt) > lease
}

type IdempotencyStore interface {
	// Claim atomically stores a pending record for key unless one exists. When the
	// key is taken it returns the existing record and false. An abandoned pending
	// record may be claimed again.
	Claim(ctx context.Context, key string, now time.Time, lease time.Duration) (IdempotencyRecord, bool, error)
	// Save replaces the claim with the final outcome.
	Save(ctx context.Context, rec IdempotencyRecord) error
	// Release drops a pending claim so the key can be retried.
	Release(ctx context.Context, key string) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONResultCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

var errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")

// Idempotency replays stored outcomes for repeated keys. A key is claimed before
// the command runs, so a duplicate arriving while the first is in flight is told
// to retry instead of running again. Retryable failures release the claim.
func Idempotency(store IdempotencyStore, codec ResultCodec, logger *slog.Logger) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok {
				return nextFn(ctx, cmd)
			}
			if idCmd.IdempotencyKey() == "" {
				return nextFn(ctx, cmd)
			}
			key := cmd.Key() + ":" + idCmd.IdempotencyKey()
			rec, claimed, err := store.Claim(ctx, key, time.Now().UTC(), claimLease)
			if err != nil {
				return nil, apperr.Unavailable("idempotency store unavailable", err)
			}
			if !claimed {
				if rec.Pending {
					return nil, apperr.Unavailable("request with this idempotency key is in progress", nil)
				}
				return replay(rec, idCmd, codec)
			}

			// The outcome is recorded even when the caller has gone away.
			storeCtx := context.WithoutCancel(ctx)
			result, err := nextFn(ctx, cmd)
			record := IdempotencyRecord{
				Key:        key,
				OccurredAt: time.Now().UTC(),
			}
			if err != nil {
				kind := apperr.KindOf(err)
				if kind == apperr.KindUnavailable {
					if relErr := store.Release(storeCtx, key); relErr != nil {
						logger.Warn("idempotency claim not released", "key", key, "error", relErr)
					}
					return nil, err
				}
				record.ErrorKind = string(kind)
				record.ErrorMessage = publicMessage(err)
				if saveErr := store.Save(storeCtx, record); saveErr != nil {
					logger.Error("idempotency outcome not saved", "key", key, "error", saveErr)
				}
				return nil, err
			}
			if result != nil {
				payload, encErr := codec.Encode(result)
				if encErr != nil {
					logger.Error("idempotency result not encoded", "key", key, "error", encErr)
					if relErr := store.Release(storeCtx, key); relErr != nil {
						logger.Warn("idempotency claim not released", "key", key, "error", relErr)
					}
					return result, nil
				}
				record.Payload = payload
			}
			// The command has committed; a lost record only weakens later replays.
			if saveErr := store.Save(storeCtx, record); saveErr != nil {
				logger.Error("idempotency outcome not saved", "key", key, "error", saveErr)
			}
			return result, nil
		})
	}
}

func replay(rec IdempotencyRecord, cmd IdempotentCommand, codec ResultCodec) (any, error) {
	if rec.Failed() {
		kind, ok := apperr.ParseKind(rec.ErrorKind)
		if !ok {
			kind = apperr.KindConflict
		}
		return nil, apperr.New(kind, rec.ErrorMessage, nil)
	}
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, errMissingPrototype
	}
	if len(rec.Payload) == 0 {
		return nil, nil
	}
	if err := codec.Decode(rec.Payload, proto); err != nil {
		return nil, err
	}
	return normalizePrototype(proto), nil
}

func publicMessage(err error) string {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

func normalizePrototype(proto any) any {
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Interface()
	}
	return proto
}
