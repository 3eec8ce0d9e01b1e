package codeload

import (
	"errors"
	"fmt"
	"strings"
)

// Facility errors.
var (
	// ErrTypeNotFound is the root of every missing-type failure.
	ErrTypeNotFound = errors.New("type not found")

	// ErrDuplicateBinding is returned when a type name is bound twice.
	ErrDuplicateBinding = errors.New("type already bound")
)

// MissingTypeError reports a type that could not be found. Err, when set,
// is the failure that was being handled when the type went missing.
type MissingTypeError struct {
	Name string
	Err  error
}

// Error implements the error interface.
func (e *MissingTypeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("type %q not found: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("type %q not found", e.Name)
}

// Unwrap returns the wrapped error.
func (e *MissingTypeError) Unwrap() error {
	return e.Err
}

// Is makes every MissingTypeError match ErrTypeNotFound.
func (e *MissingTypeError) Is(target error) bool {
	return target == ErrTypeNotFound
}

// RootMissing returns the innermost MissingTypeError in err's chain.
func RootMissing(err error) (*MissingTypeError, bool) {
	var root *MissingTypeError
	for err != nil {
		var m *MissingTypeError
		if !errors.As(err, &m) {
			break
		}
		root = m
		err = m.Err
	}
	return root, root != nil
}

// IsFrameworkType reports whether name lives in the framework namespace.
func IsFrameworkType(name string) bool {
	return strings.HasPrefix(name, FrameworkNamespace)
}

// TypeNameFromEntry converts an entry path with the given extension into a
// dotted type name ("a/b/C.lua" -> "a.b.C").
func TypeNameFromEntry(entry, ext string) (string, bool) {
	if !strings.HasSuffix(entry, ext) {
		return "", false
	}
	base := strings.TrimSuffix(entry, ext)
	if base == "" || strings.HasSuffix(base, "/") {
		return "", false
	}
	return strings.ReplaceAll(base, "/", "."), true
}
