package intercept

import (
	"errors"
	"fmt"
)

// Errors returned by interception operations.
var (
	// ErrNotApplicable indicates a write-side hook was requested on a
	// field whose current value is a function. Redefining callables as
	// intercepted data would break method semantics, so the install is
	// refused without mutating any chain.
	ErrNotApplicable = errors.New("field value is callable")

	// ErrVetoed indicates a before-set hook rejected the incoming value.
	// The commit never happened and the field's cached value is
	// unchanged.
	ErrVetoed = errors.New("write vetoed")

	// ErrNoSuchField indicates the target has no raw accessor for the
	// named field.
	ErrNoSuchField = errors.New("no such field")

	// ErrUnsupportedTarget indicates the target cannot serve as an
	// interception target (nil, or an uncomparable value with no
	// reference identity).
	ErrUnsupportedTarget = errors.New("unsupported target")

	// ErrIncompatibleValue indicates a committed value cannot be stored
	// in the target's underlying field.
	ErrIncompatibleValue = errors.New("incompatible value")

	// ErrNilHook indicates a nil hook function was passed to a register
	// operation.
	ErrNilHook = errors.New("nil hook")
)

// FieldError wraps an error with the operation and field it occurred on.
type FieldError struct {
	// Op is the operation that failed ("install", "get", "set").
	Op string
	// Field is the field name the operation targeted.
	Field string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Field, e.Err)
}

// Unwrap returns the underlying error.
func (e *FieldError) Unwrap() error {
	return e.Err
}

// Veto returns an error a before-set hook can use to reject a write.
// The result satisfies errors.Is(err, ErrVetoed).
func Veto(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrVetoed, fmt.Sprintf(format, args...))
}
