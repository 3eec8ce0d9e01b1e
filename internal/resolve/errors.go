package resolve

import (
	"errors"
	"fmt"
	"strings"
)

// Resolution errors.
var (
	// ErrMalformed is returned for containers whose metadata could not be read.
	ErrMalformed = errors.New("container metadata unreadable")

	// ErrFrameworkMismatch is returned when a container targets another
	// framework version.
	ErrFrameworkMismatch = errors.New("container targets a different framework version")

	// ErrPolicyDisabled is returned when the user policy disables a container.
	ErrPolicyDisabled = errors.New("container disabled by policy")

	// ErrMissingDependency is returned when the dependency closure is unmet.
	ErrMissingDependency = errors.New("missing dependency")

	// ErrMissingCapability is returned when a required capability is absent.
	ErrMissingCapability = errors.New("missing capability")
)

// Reason classifies why a container was disabled.
type Reason int

// Disable reasons.
const (
	ReasonNone Reason = iota
	ReasonMetadata
	ReasonFramework
	ReasonPolicy
	ReasonDependency
	ReasonCapability
	ReasonIncompatible
)

// String returns a string representation of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonMetadata:
		return "metadata"
	case ReasonFramework:
		return "framework"
	case ReasonPolicy:
		return "policy"
	case ReasonDependency:
		return "dependency"
	case ReasonCapability:
		return "capability"
	case ReasonIncompatible:
		return "incompatible"
	default:
		return "unknown"
	}
}

// DisabledError records why a container was disabled.
type DisabledError struct {
	Identity string
	Reason   Reason
	Missing  []string
	Err      error
}

// Error implements the error interface.
func (e *DisabledError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s disabled (%s): %v: %s", e.Identity, e.Reason, e.Err, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%s disabled (%s): %v", e.Identity, e.Reason, e.Err)
}

// Unwrap returns the underlying error.
func (e *DisabledError) Unwrap() error {
	return e.Err
}
