package ledger

import (
	"context"
	"errors"
	"fmt"

	dErrors "certledger/pkg/domain-errors"
)

// Category is the normalized ledger failure taxonomy.
type Category string

const (
	// CategoryUnavailable means the ledger could not be reached or did not answer.
	CategoryUnavailable Category = "unavailable"

	// CategoryRejected means the ledger answered and refused the operation.
	CategoryRejected Category = "rejected"

	// CategoryTimeout means the call exceeded its deadline. The operation may
	// or may not have landed.
	CategoryTimeout Category = "timeout"
)

// Error wraps ledger failures with a normalized category.
type Error struct {
	Category   Category
	Op         string
	Reason     string
	Underlying error
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("ledger %s [%s]: %s: %v", e.Op, e.Category, e.Reason, e.Underlying)
	}
	return fmt.Sprintf("ledger %s [%s]: %s", e.Op, e.Category, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

func Unavailable(op string, err error) *Error {
	return &Error{Category: CategoryUnavailable, Op: op, Reason: "ledger unavailable", Underlying: err}
}

func Rejected(op string, reason string) *Error {
	return &Error{Category: CategoryRejected, Op: op, Reason: reason}
}

func Timeout(op string, err error) *Error {
	return &Error{Category: CategoryTimeout, Op: op, Reason: "ledger call timed out", Underlying: err}
}

// FromContext classifies a context error; deadline expiry is a timeout and
// anything else is treated as unavailability.
func FromContext(op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout(op, err)
	}
	return Unavailable(op, err)
}

// AsError extracts the *Error from err, if any.
func AsError(err error) (*Error, bool) {
	var le *Error
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// CategoryOf returns the ledger category of err, defaulting to unavailable
// for errors that do not carry one.
func CategoryOf(err error) Category {
	if le, ok := AsError(err); ok {
		return le.Category
	}
	return CategoryUnavailable
}

// ReasonOf returns the ledger's reason for err.
func ReasonOf(err error) string {
	if le, ok := AsError(err); ok {
		return le.Reason
	}
	return err.Error()
}

// Infrastructure reports whether err counts against the ledger's health.
// Rejections are answers, not outages.
func Infrastructure(err error) bool {
	if err == nil {
		return false
	}
	return CategoryOf(err) != CategoryRejected
}

// DomainError translates a ledger failure into the matching domain code. The
// ledger's reason becomes the client-facing message.
func DomainError(err error) error {
	reason := ReasonOf(err)
	switch CategoryOf(err) {
	case CategoryRejected:
		return dErrors.Wrap(err, dErrors.CodeLedgerRejected, reason)
	case CategoryTimeout:
		return dErrors.Wrap(err, dErrors.CodeLedgerTimeout, reason)
	default:
		return dErrors.Wrap(err, dErrors.CodeLedgerUnavailable, reason)
	}
}
