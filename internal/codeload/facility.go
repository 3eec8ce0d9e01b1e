// Package codeload is the narrow adapter between the scanner and the host's
// code-loading facility. A Facility turns container entries into type names
// and type names into handles that can instantiate plugins.
package codeload

import (
	"github.com/dshills/plugkit/internal/container"
	"github.com/dshills/plugkit/internal/plugin"
)

// FrameworkNamespace prefixes every framework-internal type name.
const FrameworkNamespace = "plugkit."

// Type is a resolved type handle.
type Type interface {
	// Name returns the fully-qualified type name.
	Name() string

	// IsPlugin reports whether the type is a strict, concrete subtype of the
	// plugin base type.
	IsPlugin() bool

	// New instantiates the type.
	New() (plugin.Plugin, error)
}

// Facility is the host's dynamic code-loading facility.
type Facility interface {
	// TypeName maps a container entry path to a fully-qualified type name.
	// It returns false for entries the facility does not understand.
	TypeName(entry string) (string, bool)

	// Stage makes a container's code resolvable. Staging twice is a no-op.
	Stage(c *container.Container) error

	// AddSearchPath appends an extra code-search-path entry (a directory or
	// archive).
	AddSearchPath(location string) error

	// Resolve returns the handle for a fully-qualified type name.
	Resolve(name string) (Type, error)
}
