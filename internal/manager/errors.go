package manager

import "errors"

type tooBusyError struct {
	model  string
	reason string
}

func (e tooBusyError) Error() string {
	return "model " + e.model + " too busy: " + e.reason
}

// ErrTooBusy reports an admission failure: the queue is full, the wait
// timed out, or the instance is draining. Maps to 429 at the HTTP
// surface.
func ErrTooBusy(model, reason string) error { return tooBusyError{model: model, reason: reason} }

func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string {
	if e.id == "" {
		return "no model requested and no default configured"
	}
	return "model " + e.id + " not in the catalog"
}

// ErrModelNotFound reports an unknown model id. The empty id means the
// request named none and no default model is configured.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

type unavailableError struct{ reason string }

func (e unavailableError) Error() string { return "engine unavailable: " + e.reason }

// ErrUnavailable reports that no engine can serve generations at all,
// as opposed to a transient per-request failure.
func ErrUnavailable(reason string) error { return unavailableError{reason: reason} }

func IsUnavailable(err error) bool {
	var e unavailableError
	return errors.As(err, &e)
}
