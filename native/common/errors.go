package common

import (
	"errors"
	"fmt"
)

// Error kinds shared by the ledger and payout packages. Callers classify a
// failure with errors.Is against one of these sentinels.
var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrState         = errors.New("state error")
	ErrAuthorization = errors.New("authorization error")
	ErrComputation   = errors.New("computation error")
)

// Error carries the failing operation and a human readable reason alongside
// its kind.
type Error struct {
	Kind error
	Op   string
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	kind := "error"
	if e.Kind != nil {
		kind = e.Kind.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, kind, e.Msg)
}

// Unwrap exposes the error kind to errors.Is.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Kind
}

func newError(kind error, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Validation reports bad input shape or bounds.
func Validation(op, format string, args ...any) error {
	return newError(ErrValidation, op, format, args...)
}

// NotFound reports an unknown contest, option or record.
func NotFound(op, format string, args ...any) error {
	return newError(ErrNotFound, op, format, args...)
}

// State reports an operation attempted in the wrong lifecycle phase.
func State(op, format string, args ...any) error {
	return newError(ErrState, op, format, args...)
}

// Unauthorized reports a caller lacking the role required by op.
func Unauthorized(op, format string, args ...any) error {
	return newError(ErrAuthorization, op, format, args...)
}

// Computation reports arithmetic that would leave the safe range.
func Computation(op, format string, args ...any) error {
	return newError(ErrComputation, op, format, args...)
}

// KindOf returns the sentinel kind carried by err, or nil when err does not
// belong to the taxonomy.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrState, ErrAuthorization, ErrComputation} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
