package services

import (
	"errors"
	"fmt"
)

// Error kinds. Expected business outcomes travel as result values; these are
// used when an operation has no result type of its own (coupon creation,
// purchase creation, usage recording) and for hard failures.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidState       = errors.New("invalid state")
	ErrDuplicateOperation = errors.New("duplicate operation")
	ErrPreconditionNotMet = errors.New("precondition not met")
	ErrGatewayFailure     = errors.New("external gateway failure")
	ErrInvariantViolation = errors.New("invariant violation")
)

// ReasonError pairs an error kind with a symbolic reason key that the
// presentation layer maps to localized text.
type ReasonError struct {
	Kind   error
	Reason string
}

func (e *ReasonError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
}

func (e *ReasonError) Unwrap() error {
	return e.Kind
}

func reasonError(kind error, reason string) error {
	return &ReasonError{Kind: kind, Reason: reason}
}

// ReasonOf extracts the reason key of err, or "" when it carries none.
func ReasonOf(err error) string {
	var re *ReasonError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}

func invariant(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...))
}
