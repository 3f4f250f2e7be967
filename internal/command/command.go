package command

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// ArgType defines the type of a command argument.
type ArgType uint8

const (
	// ArgString is a string argument.
	ArgString ArgType = iota

	// ArgNumber is a numeric argument (int or float).
	ArgNumber

	// ArgBoolean is a boolean argument.
	ArgBoolean

	// ArgEnum is an enumeration argument with predefined options.
	ArgEnum
)

// String returns a string representation of the argument type.
func (t ArgType) String() string {
	switch t {
	case ArgString:
		return "string"
	case ArgNumber:
		return "number"
	case ArgBoolean:
		return "boolean"
	case ArgEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// Arg defines a command argument.
type Arg struct {
	// Name is the argument identifier.
	Name string

	// Type is the argument type.
	Type ArgType

	// Required indicates if the argument must be provided.
	Required bool

	// Default is the default value if not provided.
	Default any

	// Description explains the argument.
	Description string

	// Options lists valid values for enum types.
	Options []string
}

// Validate checks if a value is valid for this argument.
func (a *Arg) Validate(value any) error {
	if value == nil {
		if a.Required {
			return fmt.Errorf("argument %q is required", a.Name)
		}
		return nil
	}

	switch a.Type {
	case ArgString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("argument %q must be a string", a.Name)
		}
	case ArgNumber:
		switch value.(type) {
		case int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
		default:
			return fmt.Errorf("argument %q must be a number", a.Name)
		}
	case ArgBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("argument %q must be a boolean", a.Name)
		}
	case ArgEnum:
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("argument %q must be a string", a.Name)
		}
		if !slices.Contains(a.Options, str) {
			return fmt.Errorf("argument %q must be one of: %v", a.Name, a.Options)
		}
	}

	return nil
}

// Command describes a command that can be executed.
type Command struct {
	// ID is the unique command identifier (e.g., "editor.save").
	ID string

	// Title is the display name shown in menus and the palette.
	Title string

	// Description provides additional context about the command.
	Description string

	// Category groups related commands (e.g., "File", "Edit", "View").
	Category string

	// Shortcut is the keyboard shortcut, for display only.
	Shortcut string

	// Args defines the command's arguments.
	Args []Arg
}

// ValidateArgs validates the provided arguments against the command's definition.
func (c *Command) ValidateArgs(args map[string]any) error {
	for i := range c.Args {
		arg := &c.Args[i]
		value, exists := args[arg.Name]
		if !exists {
			value = arg.Default
		}
		if err := arg.Validate(value); err != nil {
			return err
		}
	}
	return nil
}

// withDefaults returns a copy of args with defaults filled in.
// The caller's map is never modified.
func (c *Command) withDefaults(args map[string]any) map[string]any {
	out := make(map[string]any, len(args)+len(c.Args))
	for k, v := range args {
		out[k] = v
	}
	for i := range c.Args {
		arg := &c.Args[i]
		if _, exists := out[arg.Name]; !exists && arg.Default != nil {
			out[arg.Name] = arg.Default
		}
	}
	return out
}

// SearchText returns the text used for filtering commands.
func (c *Command) SearchText() string {
	desc := strings.TrimSpace(c.Description)
	if desc == "" {
		return c.Title
	}
	return c.Title + " " + desc
}

// Call is what a handler receives when its command is executed.
type Call struct {
	// Command is the id of the executed command.
	Command string

	// Args are the validated arguments with defaults applied.
	Args map[string]any

	// Context is the invocation context given when the handler was registered.
	Context any
}

// Handler executes a command.
type Handler func(ctx context.Context, call Call) error
