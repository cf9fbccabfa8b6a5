// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Pipeline errors.
var (
	// ErrEngineConstruction indicates an inference engine could not be built.
	ErrEngineConstruction = errors.New("engine construction failed")
	// ErrInferenceUnavailable indicates an engine could not run an inference.
	ErrInferenceUnavailable = errors.New("inference unavailable")
	// ErrPipelineFault indicates a runtime fault (a recovered panic) inside a recognition attempt.
	ErrPipelineFault = errors.New("pipeline fault")
	// ErrUnrecoverable indicates that both the original and the retried attempt faulted.
	ErrUnrecoverable = errors.New("unrecoverable fault")
	// ErrEmptyImage indicates a scan was requested for a nil or empty image.
	ErrEmptyImage = errors.New("empty image")
)

// Configuration errors.
var (
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsFault reports whether err is a recoverable pipeline fault.
func IsFault(err error) bool {
	return errors.Is(err, ErrEngineConstruction) ||
		errors.Is(err, ErrInferenceUnavailable) ||
		errors.Is(err, ErrPipelineFault)
}

// IsConfigError reports whether err stems from missing or invalid configuration.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrMissingConfig) || errors.Is(err, ErrInvalidConfig)
}
