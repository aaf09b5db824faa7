package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	domainbooking "partyspace/internal/domain/booking"
	domainlistings "partyspace/internal/domain/listings"
	"partyspace/internal/domain/shared/daterange"
)

// Kind classifies an engine failure for callers.
type Kind string

const (
	KindInvalidRequest Kind = "INVALID_REQUEST"
	KindNotFound       Kind = "NOT_FOUND"
	KindForbidden      Kind = "FORBIDDEN"
	KindConflict       Kind = "CONFLICT"
	KindUnavailable    Kind = "UNAVAILABLE"
)

// Error is the only error type the booking engine returns. Message is safe to show to
// callers, Err is kept for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same request may succeed later.
func (e *Error) Retryable() bool {
	return e.Kind == KindUnavailable
}

func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func InvalidRequest(message string, err error) *Error {
	return New(KindInvalidRequest, message, err)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message, nil)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message, nil)
}

func Conflict(message string, err error) *Error {
	return New(KindConflict, message, err)
}

func Unavailable(message string, err error) *Error {
	return New(KindUnavailable, message, err)
}

// KindOf extracts the kind of err. Unclassified errors report KindUnavailable.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnavailable
}

// StatusCode maps a kind to its HTTP status.
func StatusCode(kind Kind) int {
	switch kind {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ParseKind returns the kind named by value, or false if it is unknown.
func ParseKind(value string) (Kind, bool) {
	switch k := Kind(value); k {
	case KindInvalidRequest, KindNotFound, KindForbidden, KindConflict, KindUnavailable:
		return k, true
	}
	return "", false
}

// Classify turns any error into an *Error. Known domain sentinels get their kind;
// storage failures, lock timeouts and expired deadlines become Unavailable.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, domainlistings.ErrListingNotFound):
		return New(KindNotFound, "listing not found", err)
	case errors.Is(err, domainbooking.ErrBookingNotFound):
		return New(KindNotFound, "booking not found", err)
	case errors.Is(err, domainbooking.ErrOverlap):
		return Conflict("dates unavailable", err)
	case errors.Is(err, domainbooking.ErrSelfBooking):
		return Conflict("owner cannot book own listing", err)
	case errors.Is(err, domainbooking.ErrStaleState), errors.Is(err, domainbooking.ErrInvalidState):
		return Conflict("booking state changed", err)
	case errors.Is(err, domainbooking.ErrAlreadyStarted):
		return Conflict("confirmed booking already started", err)
	case errors.Is(err, domainbooking.ErrCheckInInPast):
		return InvalidRequest("check-in date is in the past", err)
	case errors.Is(err, daterange.ErrStayTooLong):
		return InvalidRequest(fmt.Sprintf("stay must not exceed %d nights", daterange.MaxNights), err)
	case errors.Is(err, daterange.ErrInvalidRange):
		return InvalidRequest("check-out must be after check-in", err)
	case errors.Is(err, daterange.ErrInvalidDate):
		return InvalidRequest("dates must use YYYY-MM-DD", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return Unavailable("request timed out", err)
	default:
		return Unavailable("booking store unavailable", err)
	}
}
