package container

import (
	"errors"
	"fmt"
)

// Container errors.
var (
	// ErrNoMetadata is returned when a location has no plugin.toml.
	ErrNoMetadata = errors.New("container has no metadata document")

	// ErrMissingName is returned when the metadata document has no name.
	ErrMissingName = errors.New("metadata: name is required")

	// ErrUnsupportedKind is returned for locations that are neither a
	// directory nor a recognized archive.
	ErrUnsupportedKind = errors.New("unsupported container location")
)

// MetadataError reports a malformed metadata document.
type MetadataError struct {
	Location string
	Err      error
}

// Error implements the error interface.
func (e *MetadataError) Error() string {
	return fmt.Sprintf("malformed metadata in %s: %v", e.Location, e.Err)
}

// Unwrap returns the underlying error.
func (e *MetadataError) Unwrap() error {
	return e.Err
}
