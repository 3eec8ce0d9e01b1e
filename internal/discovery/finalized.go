package discovery

import (
	"slices"

	"github.com/google/uuid"

	"github.com/dshills/plugkit/internal/container"
	"github.com/dshills/plugkit/internal/inject"
	"github.com/dshills/plugkit/internal/resolve"
)

// Finalized is the read-only handle returned by Init. All containers are
// frozen.
type Finalized struct {
	r *registry
}

// Session returns the discovery session ID.
func (f *Finalized) Session() uuid.UUID {
	return f.r.session
}

// Container returns the container with the given handle, or nil.
func (f *Finalized) Container(id container.ID) *container.Container {
	return f.r.container(id)
}

// Lookup returns the enabled container with the given identity.
func (f *Finalized) Lookup(identity string) (*container.Container, bool) {
	id, ok := f.r.enabled[container.Identity(identity)]
	if !ok {
		return nil, false
	}
	return f.r.container(id), true
}

// IsEnabled reports whether the identity was accepted.
func (f *Finalized) IsEnabled(identity string) bool {
	_, ok := f.r.enabled[container.Identity(identity)]
	return ok
}

// Enabled returns the accepted containers in discovery order.
func (f *Finalized) Enabled() []*container.Container {
	return f.containers(f.r.enabledOrder)
}

// Disabled returns the disabled containers in the order they were disabled.
func (f *Finalized) Disabled() []Disabled {
	out := make([]Disabled, 0, len(f.r.disableOrder))
	for _, id := range f.r.disableOrder {
		out = append(out, f.r.disabled[id])
	}
	return out
}

// DisabledReason returns why identity was disabled.
func (f *Finalized) DisabledReason(identity string) (resolve.Reason, bool) {
	d, ok := f.r.disabled[container.Identity(identity)]
	if !ok {
		return resolve.ReasonNone, false
	}
	return d.Reason, true
}

// Extensions returns the containers injected during the early-extension
// pass.
func (f *Finalized) Extensions() []*container.Container {
	return f.containers(f.r.extensions)
}

// External returns the injected extension containers that came from the
// host's search path.
func (f *Finalized) External() []*container.Container {
	return f.r.injector.External()
}

// EntryPoints returns the queued early-extension entry points in run order.
func (f *Finalized) EntryPoints() []inject.EntryPoint {
	return f.r.injector.EntryPoints()
}

// Transformers returns the queued transformer type names.
func (f *Finalized) Transformers() []string {
	return f.r.injector.Transformers()
}

// Records returns the discovered plugin records in scan order.
func (f *Finalized) Records() []PluginRecord {
	return slices.Clone(f.r.records)
}

func (f *Finalized) containers(ids []container.ID) []*container.Container {
	out := make([]*container.Container, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.r.container(id))
	}
	return out
}
