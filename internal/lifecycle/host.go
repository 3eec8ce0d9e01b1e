package lifecycle

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/dshills/plugkit/internal/container"
	"github.com/dshills/plugkit/internal/plugin"
)

// Host tracks one plugin instance and the container it came from.
type Host struct {
	typeName  string
	instance  plugin.Plugin
	container *container.Container
	state     plugin.State
	err       error
}

// TypeName returns the fully-qualified type the plugin was created from.
func (h *Host) TypeName() string { return h.typeName }

// Plugin returns the plugin instance.
func (h *Host) Plugin() plugin.Plugin { return h.instance }

// Container returns the plugin's container.
func (h *Host) Container() *container.Container { return h.container }

// State returns the plugin's lifecycle state.
func (h *Host) State() plugin.State { return h.state }

// Err returns the failure that moved the plugin to StateFailed.
func (h *Host) Err() error { return h.err }

// Name returns the plugin's display name.
func (h *Host) Name() string { return h.instance.Name() }

// Version returns the plugin's version, falling back to the container's.
func (h *Host) Version() string {
	if v := h.instance.Version(); v != "" {
		return v
	}
	return h.container.Version()
}

// Author returns the container's declared author.
func (h *Host) Author() string { return h.container.Author() }

// Description returns the container's description for locale.
func (h *Host) Description(locale string) string { return h.container.Description(locale) }

func (h *Host) fail(err error) {
	h.state = plugin.StateFailed
	h.err = err
}

// safely runs fn, converting a panic into an error wrapping plugin.ErrPanic.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", plugin.ErrPanic, r, debug.Stack())
		}
	}()
	return fn()
}

// initPlugin calls the plugin's init entry point.
func (h *Host) initPlugin(ctx context.Context, env plugin.Env) error {
	return safely(func() error {
		return h.instance.Init(ctx, env)
	})
}
