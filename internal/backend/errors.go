package backend

import (
	"errors"
	"fmt"
)

type noEngineError struct{ family string }

func (e noEngineError) Error() string {
	return fmt.Sprintf("no engine registered for %s models", e.family)
}

// ErrNoEngine reports an empty resolution chain: not a fallback event but a
// process with no engine for the family at all.
func ErrNoEngine(family string) error { return noEngineError{family: family} }

func IsNoEngine(err error) bool {
	var e noEngineError
	return errors.As(err, &e)
}

type unavailableError struct {
	variant string
	cause   error
}

func (e unavailableError) Error() string {
	return fmt.Sprintf("engine for %s unavailable: %v", e.variant, e.cause)
}

// Unwrap exposes the construction failure for errors.Is/As chains.
func (e unavailableError) Unwrap() error { return e.cause }

// ErrUnavailable marks an engine that failed to construct during registry
// building. Callers recover by registering the next variant in the chain;
// the error is logged at debug and never surfaced to requests.
func ErrUnavailable(variant string, cause error) error {
	return unavailableError{variant: variant, cause: cause}
}

func IsUnavailable(err error) bool {
	var e unavailableError
	return errors.As(err, &e)
}
