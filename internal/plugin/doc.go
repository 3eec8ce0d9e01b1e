// Package plugin defines the base type every loadable plugin implements and
// the optional interfaces the lifecycle manager looks for.
//
// # Plugin Types
//
// A plugin is any concrete type satisfying Plugin. Go plugins bind a factory
// under a fully-qualified type name (see codeload.Native); Lua plugins are
// script classes extending the built-in plugkit.plugin class (see
// codeload/lua). Both are surfaced to the scanner as type handles, so the rest
// of the system never depends on how a plugin was produced.
//
// # Optional Interfaces
//
//   - Configurable: exposes a settings value persisted as TOML between sessions
//   - Upgrader: migrates settings when the framework revision advances
//
// # Lifecycle
//
// Plugins move through these states during startup:
//
//	StateDiscovered -> load -> StateLoaded
//	StateLoaded -> init -> StateActive
//	any -> failure -> StateFailed
//
// The lifecycle runs once per process; there is no unload or reload.
package plugin
