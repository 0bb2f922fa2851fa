package domain

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failure into one of the rejection classes the API
// exposes. Every error that crosses a package boundary carries one.
type Kind string

const (
	KindUnauthenticated   Kind = "UNAUTHENTICATED"
	KindForbidden         Kind = "FORBIDDEN"
	KindNotFound          Kind = "NOT_FOUND"
	KindInvalidArgument   Kind = "INVALID_ARGUMENT"
	KindDailyLimit        Kind = "DAILY_LIMIT"
	KindRateLimited       Kind = "RATE_LIMITED"
	KindIneligibleOffer   Kind = "INELIGIBLE_OFFER"
	KindInvalidState      Kind = "INVALID_STATE"
	KindInvalidOrExpired  Kind = "INVALID_OR_EXPIRED"
	KindDeviceMismatch    Kind = "DEVICE_MISMATCH"
	KindVoidWindowExpired Kind = "VOID_WINDOW_EXPIRED"
	KindTransient         Kind = "TRANSIENT"
	KindInternal          Kind = "INTERNAL"
)

// Error is a classified domain error. RetryAfter is set only for
// RATE_LIMITED and carries the remaining window of the tripped limit.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// E builds a classified error.
func E(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Ef builds a classified error with a formatted message.
func Ef(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error, keeping it reachable via errors.Is/As.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, cause: cause}
}

// RateLimited builds a RATE_LIMITED error with a retry hint.
func RateLimited(msg string, retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimited, Message: msg, RetryAfter: retryAfter}
}

// KindOf reports the kind of err, walking the wrap chain. Unclassified
// errors report KindInternal; nil reports the empty kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err is classified as k.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}

// Retryable reports whether the caller may retry the same request and
// plausibly succeed without changing it.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindRateLimited:
		return true
	}
	return false
}
