package codeload

import (
	"fmt"
	"sync"

	"github.com/dshills/plugkit/internal/container"
	"github.com/dshills/plugkit/internal/plugin"
)

// DescriptorExt marks a container entry that declares a native type binding.
// The entry "acme/PluginRadar.plugin" declares the type "acme.PluginRadar".
const DescriptorExt = ".plugin"

// Factory instantiates a native plugin.
type Factory func() (plugin.Plugin, error)

// Binding declares one native type.
type Binding struct {
	// Name is the fully-qualified type name.
	Name string

	// Factory instantiates the type. A nil factory marks a helper type that
	// is not a plugin.
	Factory Factory

	// Abstract types are never instantiated.
	Abstract bool

	// Requires lists type names that must resolve before this one does.
	Requires []string
}

// Native is a Facility backed by compiled-in factory bindings.
type Native struct {
	mu       sync.RWMutex
	bindings map[string]Binding
	provided map[string]bool
	staged   map[string]bool
	paths    []string
}

// NewNative creates an empty native facility.
func NewNative() *Native {
	return &Native{
		bindings: make(map[string]Binding),
		provided: make(map[string]bool),
		staged:   make(map[string]bool),
	}
}

// Bind registers a type binding.
func (n *Native) Bind(b Binding) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.bindings[b.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateBinding, b.Name)
	}
	n.bindings[b.Name] = b
	return nil
}

// MustBind is like Bind but panics on error. It is meant for init-time
// registration tables.
func (n *Native) MustBind(bindings ...Binding) {
	for _, b := range bindings {
		if err := n.Bind(b); err != nil {
			panic(err)
		}
	}
}

// Provide declares framework-internal type names supplied by the host.
func (n *Native) Provide(names ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, name := range names {
		n.provided[name] = true
	}
}

// TypeName implements Facility.
func (n *Native) TypeName(entry string) (string, bool) {
	return TypeNameFromEntry(entry, DescriptorExt)
}

// Stage implements Facility.
func (n *Native) Stage(c *container.Container) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.staged[c.Location()] = true
	return nil
}

// AddSearchPath implements Facility. Native bindings are compiled in, so the
// entry is only recorded.
func (n *Native) AddSearchPath(location string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, location)
	return nil
}

// Staged reports whether the container at location was staged.
func (n *Native) Staged(location string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.staged[location]
}

// Resolve implements Facility.
func (n *Native) Resolve(name string) (Type, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.resolve(name, make(map[string]bool))
}

func (n *Native) resolve(name string, visiting map[string]bool) (Type, error) {
	if n.provided[name] {
		return nativeType{binding: Binding{Name: name}}, nil
	}
	b, ok := n.bindings[name]
	if !ok {
		return nil, &MissingTypeError{Name: name}
	}

	visiting[name] = true
	for _, req := range b.Requires {
		if visiting[req] {
			continue
		}
		if _, err := n.resolve(req, visiting); err != nil {
			return nil, fmt.Errorf("resolve %s: %w", name, err)
		}
	}
	return nativeType{binding: b}, nil
}

type nativeType struct {
	binding Binding
}

func (t nativeType) Name() string {
	return t.binding.Name
}

func (t nativeType) IsPlugin() bool {
	return t.binding.Factory != nil && !t.binding.Abstract
}

func (t nativeType) New() (plugin.Plugin, error) {
	if !t.IsPlugin() {
		return nil, fmt.Errorf("type %s is not instantiable", t.binding.Name)
	}
	p, err := t.binding.Factory()
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, plugin.ErrNilPlugin
	}
	return p, nil
}
