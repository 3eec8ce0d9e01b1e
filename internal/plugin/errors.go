package plugin

import "errors"

// Plugin errors.
var (
	// ErrNilPlugin is returned when a factory produces a nil plugin.
	ErrNilPlugin = errors.New("factory returned nil plugin")

	// ErrPluginDisabled is returned when a plugin's container is not enabled.
	ErrPluginDisabled = errors.New("plugin is disabled")

	// ErrPanic is wrapped around a recovered panic from plugin code.
	ErrPanic = errors.New("plugin panicked")
)
