package security

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Capability is a permission a plugin can request.
type Capability string

// Known capabilities.
const (
	// CapabilityContext is the parent of the context capabilities.
	CapabilityContext Capability = "context"

	// CapabilityContextRead allows reading other plugins' contexts.
	CapabilityContextRead Capability = "context.read"

	// CapabilityCommand is the parent of the command capabilities.
	CapabilityCommand Capability = "command"

	// CapabilityCommandList allows listing registered commands.
	CapabilityCommandList Capability = "command.list"

	// CapabilityCommandExecute allows executing commands.
	CapabilityCommandExecute Capability = "command.execute"
)

// ErrUnknownCapability is returned when parsing an unknown name.
var ErrUnknownCapability = errors.New("unknown capability")

// CapabilityInfo describes a capability.
type CapabilityInfo struct {
	Name        Capability
	Description string
	Parent      Capability
	RiskLevel   RiskLevel
}

// RiskLevel indicates the security risk of a capability.
type RiskLevel int

const (
	// RiskLow indicates minimal security risk.
	RiskLow RiskLevel = iota

	// RiskMedium indicates moderate security risk.
	RiskMedium

	// RiskHigh indicates significant security risk.
	RiskHigh
)

// String returns a string representation of the risk level.
func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	default:
		return "unknown"
	}
}

var capabilities = map[Capability]CapabilityInfo{
	CapabilityContext: {
		Name:        CapabilityContext,
		Description: "Access the application context",
		RiskLevel:   RiskMedium,
	},
	CapabilityContextRead: {
		Name:        CapabilityContextRead,
		Description: "Read the contexts of other plugins",
		Parent:      CapabilityContext,
		RiskLevel:   RiskMedium,
	},
	CapabilityCommand: {
		Name:        CapabilityCommand,
		Description: "Access the command registry",
		RiskLevel:   RiskHigh,
	},
	CapabilityCommandList: {
		Name:        CapabilityCommandList,
		Description: "List registered commands",
		Parent:      CapabilityCommand,
		RiskLevel:   RiskLow,
	},
	CapabilityCommandExecute: {
		Name:        CapabilityCommandExecute,
		Description: "Execute commands contributed by any plugin",
		Parent:      CapabilityCommand,
		RiskLevel:   RiskHigh,
	},
}

// Info returns the description of c.
func Info(c Capability) (CapabilityInfo, bool) {
	info, ok := capabilities[c]
	return info, ok
}

// IsValid reports whether c is a known capability.
func IsValid(c Capability) bool {
	_, ok := capabilities[c]
	return ok
}

// All returns the known capabilities, sorted.
func All() []Capability {
	out := make([]Capability, 0, len(capabilities))
	for c := range capabilities {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Parse converts declared names to capabilities. Unknown names are an
// error so a typo does not silently drop a permission.
func Parse(names []string) ([]Capability, error) {
	out := make([]Capability, 0, len(names))
	for _, name := range names {
		c := Capability(strings.ToLower(strings.TrimSpace(name)))
		if !IsValid(c) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCapability, name)
		}
		out = append(out, c)
	}
	return out, nil
}

// IsChildOf reports whether child sits below parent in the hierarchy.
func IsChildOf(child, parent Capability) bool {
	return strings.HasPrefix(string(child), string(parent)+".")
}

// Implies reports whether holding granted also grants required.
func Implies(granted, required Capability) bool {
	return granted == required || IsChildOf(required, granted)
}

// CapabilityError reports a denied operation.
type CapabilityError struct {
	Plugin     string
	Capability Capability
	Operation  string
}

func (e *CapabilityError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("plugin %s: capability %q required for %s", e.Plugin, e.Capability, e.Operation)
	}
	return fmt.Sprintf("plugin %s: capability %q not granted", e.Plugin, e.Capability)
}
