package llm

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

type busyError struct{ path string }

func (e busyError) Error() string {
	return fmt.Sprintf("model %s is busy: one generation at a time", e.path)
}

// ErrBusy reports a second generation attempted on a handle that already
// has one in flight.
func ErrBusy(path string) error { return busyError{path: path} }

func IsBusy(err error) bool {
	var e busyError
	return errors.As(err, &e)
}

type releasedError struct{ path string }

func (e releasedError) Error() string {
	return fmt.Sprintf("model %s has been released", e.path)
}

func ErrReleased(path string) error { return releasedError{path: path} }

func IsReleased(err error) bool {
	var e releasedError
	return errors.As(err, &e)
}

type encodingError struct{ msg string }

func (e encodingError) Error() string { return "encoding: " + e.msg }

// ErrEncoding reports invalid UTF-8 where text is required.
func ErrEncoding(msg string) error { return encodingError{msg: msg} }

func IsEncoding(err error) bool {
	var e encodingError
	return errors.As(err, &e)
}

func textFromBytes(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", ErrEncoding("decoded tokens are not valid UTF-8")
	}
	return string(b), nil
}
