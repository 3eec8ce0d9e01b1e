package lua

import "errors"

// Errors for the Lua facility.
var (
	// ErrClosed is returned when operating on a closed facility.
	ErrClosed = errors.New("lua facility is closed")

	// ErrNotAClass is returned when a plugin type's module did not return a
	// class table.
	ErrNotAClass = errors.New("module did not return a class table")
)
