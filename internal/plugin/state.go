package plugin

// State represents the lifecycle state of a loaded plugin.
type State int

// Plugin states.
const (
	// StateUnloaded - Plugin is not known to the shell.
	StateUnloaded State = iota

	// StateLoaded - Plugin is initialized and its contributions are
	// registered, but it is not activated.
	StateLoaded

	// StateActivating - Activate is running.
	StateActivating

	// StateActive - Plugin is active.
	StateActive

	// StateError - Init or Activate failed.
	StateError
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateActivating:
		return "activating"
	case StateActive:
		return "active"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// IsUsable returns true if the plugin can be used (loaded or active).
func (s State) IsUsable() bool {
	return s == StateLoaded || s == StateActive
}
