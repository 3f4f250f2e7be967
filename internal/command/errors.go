package command

import (
	"errors"
	"fmt"
)

// Registry errors.
var (
	// ErrInvalidCommand is returned for a command definition without an id.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrDuplicateCommand is returned when a command id is registered twice.
	ErrDuplicateCommand = errors.New("command already registered")

	// ErrInvalidHandler is returned for a nil handler or empty command id.
	ErrInvalidHandler = errors.New("invalid handler")

	// ErrCommandNotFound is returned when executing an unknown command.
	ErrCommandNotFound = errors.New("command not found")

	// ErrNoHandler is returned when executing a command with no handlers.
	ErrNoHandler = errors.New("command has no handler")
)

// HandlerError reports a failure of one handler bound to a command.
type HandlerError struct {
	Command string
	Index   int // position of the handler in registration order
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("command %q handler %d: %v", e.Command, e.Index, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
