package features

import (
	"errors"
	"fmt"
)

var (
	// ErrSchema reports input that is not a usable key/value mapping.
	ErrSchema = errors.New("features: input is not a JSON object")

	// ErrFeatureMismatch reports a canonical feature whose value cannot be
	// coerced to a number.
	ErrFeatureMismatch = errors.New("features: feature value is not numeric")
)

// MismatchError names the offending key. It unwraps to ErrFeatureMismatch.
type MismatchError struct {
	Key   string
	Value any
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("features: %q cannot be coerced to a number (got %T %v)", e.Key, e.Value, e.Value)
}

func (e *MismatchError) Unwrap() error { return ErrFeatureMismatch }
