package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a reference to an identifier that does not resolve.
var ErrNotFound = errors.New("not found")

// InvalidDataError reports an import payload or record that failed validation.
// The message is human readable and qualified with the field and record
// position where available.
type InvalidDataError struct {
	Message string
	Err     error
}

func (e *InvalidDataError) Error() string {
	return e.Message
}

func (e *InvalidDataError) Unwrap() error {
	return e.Err
}

// InvalidDataf builds an InvalidDataError from a format string.
func InvalidDataf(format string, args ...any) *InvalidDataError {
	return &InvalidDataError{Message: fmt.Sprintf(format, args...)}
}

// IsInvalidData reports whether the error chain contains an InvalidDataError.
func IsInvalidData(err error) bool {
	var invalid *InvalidDataError
	return errors.As(err, &invalid)
}
