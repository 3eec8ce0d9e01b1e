package scan

import (
	"errors"
	"fmt"
)

// ErrIncompatibleFramework is returned when a container's types need a
// framework component the host does not provide.
var ErrIncompatibleFramework = errors.New("container built against an incompatible framework")

// IncompatibleError names the framework component a container is missing.
type IncompatibleError struct {
	Location string
	Missing  string
	Err      error
}

// Error implements the error interface.
func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("%s: missing framework component %s", e.Location, e.Missing)
}

// Unwrap returns the underlying resolution failure.
func (e *IncompatibleError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrIncompatibleFramework.
func (e *IncompatibleError) Is(target error) bool {
	return target == ErrIncompatibleFramework
}
