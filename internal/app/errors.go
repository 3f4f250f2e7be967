package app

import (
	"errors"
	"fmt"
)

// Application errors.
var (
	// ErrUnknownPlugin is returned when activating an id that was never loaded.
	ErrUnknownPlugin = errors.New("unknown plugin")
)

// OperationError reports a failed step of loading or activating a plugin.
type OperationError struct {
	Op      string // Operation name (e.g., "register command", "activate")
	Target  string // Target of the operation (e.g., command id)
	Context string // Additional context, usually the plugin id
	Err     error  // Underlying error
}

// NewOperationError creates a new OperationError.
func NewOperationError(op, target string, err error) *OperationError {
	return &OperationError{
		Op:     op,
		Target: target,
		Err:    err,
	}
}

// WithContext adds context to the error.
// Safe to call on nil receiver - returns nil.
func (e *OperationError) WithContext(ctx string) *OperationError {
	if e == nil {
		return nil
	}
	e.Context = ctx
	return e
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}

	msg := e.Op
	if e.Target != "" {
		msg += " " + e.Target
	}
	if e.Context != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Context)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// InitError reports a plugin whose Init failed.
type InitError struct {
	Plugin string
	Err    error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("init plugin %s: %v", e.Plugin, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}
