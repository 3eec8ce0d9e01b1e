package app

import (
	"errors"
	"fmt"
)

// Application errors.
var (
	// ErrAlreadyStarted indicates Startup was called twice.
	ErrAlreadyStarted = errors.New("startup already ran")

	// ErrNotStarted indicates an operation that needs a completed startup.
	ErrNotStarted = errors.New("startup has not run")

	// ErrInitialization indicates an initialization failure.
	ErrInitialization = errors.New("initialization failed")
)

// OperationError represents an error that occurred during a specific
// startup or shutdown step.
type OperationError struct {
	Op     string // Operation name (e.g., "load", "init", "save")
	Target string // Target of the operation (e.g., file path)
	Err    error  // Underlying error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *OperationError) Unwrap() error {
	return e.Err
}
