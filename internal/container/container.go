package container

import (
	"fmt"
	"slices"
	"time"
)

// ID is the arena handle of a container within one discovery session.
// The zero ID is never assigned.
type ID int

// Kind is the physical form of a container.
type Kind int

// Container kinds.
const (
	// KindArchive is a zip archive.
	KindArchive Kind = iota
	// KindDirectory is a plain directory tree.
	KindDirectory
	// KindPathEntry is an entry of the host code-search path.
	KindPathEntry
)

// String returns a string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindArchive:
		return "archive"
	case KindDirectory:
		return "directory"
	case KindPathEntry:
		return "path-entry"
	default:
		return "unknown"
	}
}

// Container is the metadata wrapper around one physical location.
type Container struct {
	id       ID
	identity string
	location string
	kind     Kind
	modTime  time.Time
	meta     Metadata
	err      error

	enabled     bool
	missingDeps []string
	missingCaps []string
	frozen      bool
}

// New creates a container for location from already-decoded metadata.
// Locators normally use Open; New exists for callers that build containers
// from other sources.
func New(location string, kind Kind, meta Metadata, modTime time.Time) *Container {
	return &Container{
		identity: Identity(meta.Name),
		location: location,
		kind:     kind,
		modTime:  modTime,
		meta:     meta,
	}
}

// ID returns the arena handle, or zero if the container was never admitted
// to a registry.
func (c *Container) ID() ID {
	return c.id
}

// AssignID sets the arena handle. It may be called once.
func (c *Container) AssignID(id ID) {
	c.mustBeMutable()
	if c.id != 0 {
		panic(fmt.Sprintf("container %s: id already assigned", c.location))
	}
	c.id = id
}

// Identity returns the case-folded identity.
func (c *Container) Identity() string {
	return c.identity
}

// Name returns the declared display name.
func (c *Container) Name() string {
	return c.meta.Name
}

// Location returns the filesystem path of the container.
func (c *Container) Location() string {
	return c.location
}

// Kind returns the container kind.
func (c *Container) Kind() Kind {
	return c.kind
}

// Version returns the declared version string.
func (c *Container) Version() string {
	return c.meta.Version
}

// Author returns the declared author.
func (c *Container) Author() string {
	return c.meta.Author
}

// Description returns the description for locale with fallback.
func (c *Container) Description(locale string) string {
	return c.meta.LocalizedDescription(locale)
}

// Revision returns the explicit numeric revision, if any.
func (c *Container) Revision() (float64, bool) {
	if c.meta.Revision == nil {
		return 0, false
	}
	return *c.meta.Revision, true
}

// ModTime returns the modification timestamp of the location.
func (c *Container) ModTime() time.Time {
	return c.modTime
}

// Metadata returns the decoded metadata document.
func (c *Container) Metadata() Metadata {
	return c.meta
}

// Dependencies returns the declared dependency identities.
func (c *Container) Dependencies() []string {
	return c.meta.Dependencies()
}

// Capabilities returns the declared required capabilities.
func (c *Container) Capabilities() []string {
	return c.meta.Capabilities()
}

// HasExtension returns true if the container declares early-extension code.
func (c *Container) HasExtension() bool {
	return c.meta.HasExtension()
}

// Err returns the error encountered while reading the container, if any.
// A container with an error is never enabled.
func (c *Container) Err() error {
	return c.err
}

// Enabled returns the derived enabled flag.
func (c *Container) Enabled() bool {
	return c.enabled
}

// SetEnabled sets the derived enabled flag.
func (c *Container) SetEnabled(enabled bool) {
	c.mustBeMutable()
	c.enabled = enabled
}

// MissingDependencies returns the identifiers recorded as missing.
func (c *Container) MissingDependencies() []string {
	return slices.Clone(c.missingDeps)
}

// AddMissingDependency records a missing dependency identifier once.
func (c *Container) AddMissingDependency(id string) {
	c.mustBeMutable()
	if !slices.Contains(c.missingDeps, id) {
		c.missingDeps = append(c.missingDeps, id)
	}
}

// MissingCapabilities returns the capabilities recorded as missing.
func (c *Container) MissingCapabilities() []string {
	return slices.Clone(c.missingCaps)
}

// AddMissingCapability records a missing capability once.
func (c *Container) AddMissingCapability(capability string) {
	c.mustBeMutable()
	if !slices.Contains(c.missingCaps, capability) {
		c.missingCaps = append(c.missingCaps, capability)
	}
}

// Freeze makes the container read-only.
func (c *Container) Freeze() {
	c.frozen = true
}

// Frozen reports whether the container is read-only.
func (c *Container) Frozen() bool {
	return c.frozen
}

// String returns a short description for diagnostics.
func (c *Container) String() string {
	if c.meta.Version != "" {
		return fmt.Sprintf("%s v%s (%s)", c.meta.Name, c.meta.Version, c.location)
	}
	return fmt.Sprintf("%s (%s)", c.meta.Name, c.location)
}

func (c *Container) mustBeMutable() {
	if c.frozen {
		panic(fmt.Sprintf("container %s: mutation after finalize", c.location))
	}
}
