package lifecycle

import (
	"sync"

	"github.com/dshills/plugkit/internal/container"
	"github.com/dshills/plugkit/internal/plugin"
)

// Registry receives every plugin that finishes init. It keeps the plugins it
// is interested in and reports whether it kept p.
type Registry interface {
	Offer(p plugin.Plugin) bool
}

// InterfaceRegistry collects the active plugins implementing T.
type InterfaceRegistry[T any] struct {
	mu    sync.RWMutex
	items []T
	onAdd func(T)
}

// NewInterfaceRegistry creates a registry. onAdd, if non-nil, is called for
// each accepted plugin.
func NewInterfaceRegistry[T any](onAdd func(T)) *InterfaceRegistry[T] {
	return &InterfaceRegistry[T]{onAdd: onAdd}
}

// Offer implements Registry.
func (r *InterfaceRegistry[T]) Offer(p plugin.Plugin) bool {
	t, ok := p.(T)
	if !ok {
		return false
	}
	r.mu.Lock()
	r.items = append(r.items, t)
	r.mu.Unlock()

	if r.onAdd != nil {
		r.onAdd(t)
	}
	return true
}

// Items returns the collected plugins in offer order.
func (r *InterfaceRegistry[T]) Items() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

// OverlayRegistry receives containers that provide resources to the host.
type OverlayRegistry interface {
	AddOverlay(c *container.Container)
}

// Overlays is an OverlayRegistry that records containers in registration
// order.
type Overlays struct {
	mu   sync.RWMutex
	list []*container.Container
}

// AddOverlay implements OverlayRegistry.
func (o *Overlays) AddOverlay(c *container.Container) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.list = append(o.list, c)
}

// List returns the registered containers.
func (o *Overlays) List() []*container.Container {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*container.Container, len(o.list))
	copy(out, o.list)
	return out
}
