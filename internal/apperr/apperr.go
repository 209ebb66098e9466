// Package apperr classifies failures so callers can decide between retrying,
// skipping a single product, or degrading the whole run. Retry logic must
// only wrap the Transient kind.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the failure category of an Error.
type Kind int

const (
	// Transient covers network errors, timeouts and non-200 responses from
	// the marketplace or a posting platform. Retried with backoff, then
	// downgraded to a per-item skip.
	Transient Kind = iota
	// Validation covers malformed barcodes and missing credentials.
	// Fails fast for that item, never retried.
	Validation
	// Persistence covers store read/write failures. Logged; the run falls
	// back to an empty or previous in-memory structure.
	Persistence
	// PartialDelivery means a posting collaborator failed for some items.
	// Does not block other items from being marked as notified.
	PartialDelivery
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Validation:
		return "validation"
	case Persistence:
		return "persistence"
	case PartialDelivery:
		return "partial_delivery"
	default:
		return "unknown"
	}
}

// Error carries a failure kind alongside the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a kind and operation name.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf is New with a formatted message instead of a wrapped error.
func Newf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the kind of err, walking the wrap chain.
// Unclassified errors are treated as Transient so that an unexpected
// failure is retried rather than silently dropped.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Transient
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool { return KindOf(err) == Transient }

// IsValidation reports whether err is a fail-fast input error.
func IsValidation(err error) bool { return KindOf(err) == Validation }
