package plugin

// State represents the lifecycle state of a plugin.
type State int

// Plugin states.
const (
	// StateDiscovered - Plugin type was found by the scanner but not instantiated.
	StateDiscovered State = iota

	// StateLoaded - Plugin was instantiated but not initialized.
	StateLoaded

	// StateActive - Plugin finished init and is visible to queries.
	StateActive

	// StateFailed - Plugin failed during load or init.
	StateFailed
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateLoaded:
		return "loaded"
	case StateActive:
		return "active"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsUsable returns true if the plugin can be queried by the host.
func (s State) IsUsable() bool {
	return s == StateActive
}
