package core

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an error for propagation policy decisions. Stage code
// switches on the kind rather than matching error strings.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindNotFound           Kind = "not_found"
	KindDuplicateKey       Kind = "duplicate_key"
	KindTimeout            Kind = "timeout"
	KindTransport          Kind = "transport"
	KindQuotaExceeded      Kind = "quota_exceeded"
	KindVerificationFailed Kind = "verification_failed"
	KindLLMFailure         Kind = "llm_failure"
	KindThresholdNotMet    Kind = "threshold_not_met"
	KindCancelled          Kind = "cancelled"
	KindFatal              Kind = "fatal"
)

// Error carries a kind plus a human-readable message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a classified error.
func E(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Ef builds a classified error with a formatted message.
func Ef(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds a classified error around a cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind from an error chain. Unclassified errors report
// KindFatal so callers treat them as unexpected.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindFatal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
