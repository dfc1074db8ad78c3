package application

import "errors"

// ErrNotFound is returned when an application is missing or does not belong
// to the caller. Both cases share one error so that ownership of foreign ids
// is never revealed.
var ErrNotFound = errors.New("application not found")

// ErrUnauthenticated is returned when no principal accompanies a request.
var ErrUnauthenticated = errors.New("missing caller identity")

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
