package plugin

import "errors"

// Plugin system errors.
var (
	// ErrInvalidPlugin is returned for a value that does not satisfy the
	// plugin contract or a configuration entry that cannot be resolved.
	ErrInvalidPlugin = errors.New("invalid plugin")

	// ErrPluginNotFound is returned when a plugin cannot be located.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrNoEntryPoint is returned when a plugin has no valid entry point.
	ErrNoEntryPoint = errors.New("plugin has no entry point (init.lua or plugin.lua)")

	// ErrUnknownKind is returned when no factory is registered for a kind.
	ErrUnknownKind = errors.New("unknown plugin kind")
)
