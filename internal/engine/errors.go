package engine

import (
	"errors"
	"fmt"
)

type invalidCapacityError struct{ spec string }

func (e invalidCapacityError) Error() string {
	return fmt.Sprintf("invalid cache capacity %q", e.spec)
}

// ErrInvalidCapacity reports a capacity string that does not reduce to a
// non-negative integer. Fatal at load time.
func ErrInvalidCapacity(spec string) error { return invalidCapacityError{spec: spec} }

func IsInvalidCapacity(err error) bool {
	var e invalidCapacityError
	return errors.As(err, &e)
}

type unsupportedError struct{ op string }

func (e unsupportedError) Error() string {
	return fmt.Sprintf("engine does not support %s", e.op)
}

// ErrUnsupported marks a capability a provider does not implement, so
// callers can degrade per operation instead of failing the whole request.
func ErrUnsupported(op string) error { return unsupportedError{op: op} }

func IsUnsupported(err error) bool {
	var e unsupportedError
	return errors.As(err, &e)
}
