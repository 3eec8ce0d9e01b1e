package lifecycle

import (
	"errors"
	"fmt"
)

// Lifecycle errors.
var (
	// ErrRecheckFailed is returned when a record's container no longer
	// passes the policy and dependency checks at load time.
	ErrRecheckFailed = errors.New("container failed load-time re-check")

	// ErrUnknownContainer is returned when a record names a container the
	// registry does not hold.
	ErrUnknownContainer = errors.New("unknown container")

	// ErrAlreadyRan is returned when Load or Init is called twice.
	ErrAlreadyRan = errors.New("lifecycle phase already ran")
)

// Phase names the lifecycle step a failure happened in.
type Phase int

// Lifecycle phases.
const (
	PhaseLoad Phase = iota
	PhaseMigrate
	PhaseConfig
	PhaseInit
)

// String returns a string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseLoad:
		return "load"
	case PhaseMigrate:
		return "migrate"
	case PhaseConfig:
		return "config"
	case PhaseInit:
		return "init"
	default:
		return "unknown"
	}
}

// Failure records a plugin dropped from the lifecycle.
type Failure struct {
	Plugin string
	Phase  Phase
	Err    error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return fmt.Sprintf("plugin %s failed during %s: %v", f.Plugin, f.Phase, f.Err)
}

// Unwrap returns the underlying error.
func (f *Failure) Unwrap() error {
	return f.Err
}
