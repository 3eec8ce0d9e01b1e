// Package locator provides the pluggable modules that enumerate candidate
// containers during discovery.
package locator

import (
	"context"

	"github.com/dshills/plugkit/internal/container"
)

// Module enumerates one source domain.
type Module interface {
	// Name identifies the module in diagnostics.
	Name() string

	// Enumerate offers every container the module finds to sink.
	Enumerate(ctx context.Context, sink Sink) error
}

// Sink receives containers during discovery. It is only valid while the
// module's Enumerate call is running.
type Sink interface {
	Candidate(c *container.Container)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(c *container.Container)

// Candidate implements Sink.
func (f SinkFunc) Candidate(c *container.Container) {
	f(c)
}
