package plugin

import "context"

// Plugin is the base type of every loadable plugin.
type Plugin interface {
	// Name returns the plugin's display name.
	Name() string

	// Version returns the plugin's own version string.
	Version() string

	// Init is the init entry point, called once after configuration has been
	// loaded.
	Init(ctx context.Context, env Env) error
}

// Env is handed to a plugin's init entry point.
type Env struct {
	// ConfigDir is the versioned configuration directory for the current
	// framework revision.
	ConfigDir string

	// Revision is the current framework revision.
	Revision int
}

// Configurable is implemented by plugins that persist settings.
//
// Settings must return a pointer (or map) that the config store can decode
// into and encode from. It is called once before load and once per save.
type Configurable interface {
	Settings() any
}

// Upgrader is implemented by plugins that migrate settings across framework
// revisions.
type Upgrader interface {
	UpgradeSettings(ctx context.Context, m Migration) error
}

// Migration describes a framework revision change seen by a plugin.
type Migration struct {
	FromRevision int
	ToRevision   int
	ConfigDir    string
	OldConfigDir string
}
