package trpo

import (
	"errors"
	"fmt"
)

// Error implements errors that abort a TRPO update
type Error struct {
	Op  string
	Err error
}

// Error satisfies the error interface
func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrNumericalInstability reports a NaN or infinite value in a
// gradient, KL divergence, log probability, or loss. An update that
// encounters it is aborted and the policy and value parameters are
// left as they were before the update.
var ErrNumericalInstability = errors.New("numerical instability")

// IsNumericalInstability returns whether or not an error reports a
// numerical instability
func IsNumericalInstability(err error) bool {
	return errors.Is(err, ErrNumericalInstability)
}

// instability returns a new numerical instability error for op
func instability(op, format string, args ...interface{}) error {
	return &Error{
		Op: op,
		Err: fmt.Errorf("%w: %v", ErrNumericalInstability,
			fmt.Sprintf(format, args...)),
	}
}
