package hotword

import (
	"errors"
	"fmt"
)

var (
	// ErrTerminated is returned by Start once the session released its detector.
	ErrTerminated = errors.New("hotword: session terminated")
	// ErrRunning is returned by Start while another Start is in progress.
	ErrRunning = errors.New("hotword: session already running")
)

// ConfigurationError reports malformed session arguments. No detector
// resource has been acquired when it is returned.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "hotword: invalid configuration: " + e.Reason
}

func configErrorf(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// DetectionFailure wraps an unrecoverable detector error.
type DetectionFailure struct {
	Err error
}

func (e *DetectionFailure) Error() string {
	return fmt.Sprintf("hotword: detection failed: %v", e.Err)
}

func (e *DetectionFailure) Unwrap() error { return e.Err }

// CallbackError wraps the error or panic of the callback registered at Index.
type CallbackError struct {
	Index int
	Err   error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("hotword: callback %d failed: %v", e.Index, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }
