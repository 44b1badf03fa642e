package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a referenced task or user that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAccessDenied marks an authorization rule violation.
	ErrAccessDenied = errors.New("access denied")
	// ErrAuthenticationFailed marks a missing or invalid token, on REST or on
	// the channel handshake.
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// ValidationError reports malformed input, surfaced before persistence.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
