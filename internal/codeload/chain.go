package codeload

import (
	"errors"

	"github.com/dshills/plugkit/internal/container"
)

// Chain combines facilities. Type names are recognized by the first facility
// that understands an entry; resolution tries each facility in order and
// falls through only when the requested name itself is unknown.
type Chain []Facility

// TypeName implements Facility.
func (c Chain) TypeName(entry string) (string, bool) {
	for _, f := range c {
		if name, ok := f.TypeName(entry); ok {
			return name, true
		}
	}
	return "", false
}

// Stage implements Facility.
func (c Chain) Stage(ct *container.Container) error {
	var errs []error
	for _, f := range c {
		if err := f.Stage(ct); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AddSearchPath implements Facility.
func (c Chain) AddSearchPath(location string) error {
	var errs []error
	for _, f := range c {
		if err := f.AddSearchPath(location); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Resolve implements Facility.
func (c Chain) Resolve(name string) (Type, error) {
	lastErr := error(&MissingTypeError{Name: name})
	for _, f := range c {
		t, err := f.Resolve(name)
		if err == nil {
			return t, nil
		}
		if root, ok := RootMissing(err); ok && root.Name == name {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}
