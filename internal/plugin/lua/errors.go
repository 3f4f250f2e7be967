package lua

import "errors"

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutionTimeout is returned when a script runs past its deadline.
	ErrExecutionTimeout = errors.New("lua execution timeout")

	// ErrReentrant is returned when a call chain re-enters a state it is
	// already running in.
	ErrReentrant = errors.New("lua state re-entered")

	// ErrScript is returned when a plugin script does not follow the
	// expected layout.
	ErrScript = errors.New("invalid plugin script")
)
