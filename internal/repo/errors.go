package repo

import (
	"errors"
	"fmt"
)

// Common error types
var (
	ErrNotFound           = fmt.Errorf("not found")
	ErrInvalidArgument    = fmt.Errorf("invalid argument")
	ErrBackendUnavailable = fmt.Errorf("backend unavailable")
)

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidArgument checks if an error is an invalid argument error
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsBackendUnavailable checks if an error is a backend unavailable error
func IsBackendUnavailable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}
