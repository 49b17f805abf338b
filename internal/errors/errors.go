package errors

import (
	"errors"
	"fmt"
)

// Common error types for the kaizen client
var (
	// Authentication errors
	ErrLoginFailed   = errors.New("Login failed")
	ErrNoCredential  = errors.New("no access token held")
	ErrEmptyToken    = errors.New("empty access token")
	ErrInvalidToken  = errors.New("invalid token")
	ErrRefreshFailed = errors.New("refresh failed")

	// Storage errors
	ErrNotFound = errors.New("not found")

	// General errors
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
