package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/dshills/composer/internal/command"
	"github.com/dshills/composer/internal/menu"
	"github.com/dshills/composer/internal/plugin/security"
)

// Manifest describes a scripted plugin's metadata and declared contributions.
type Manifest struct {
	// Identity
	Name        string `json:"name"`        // Plugin id (e.g., "ast-outline")
	Version     string `json:"version"`     // Semver (e.g., "1.2.0")
	DisplayName string `json:"displayName"` // Human-readable name
	Description string `json:"description"` // Short description
	Author      string `json:"author"`      // Author name or org

	// Entry point
	Main string `json:"main"` // Relative path to main Lua file (default: "init.lua")

	Activation ActivationContribution `json:"activation"`

	// Capabilities the host module checks (e.g., "context.read")
	Capabilities []string `json:"capabilities"`

	// Contributions
	Commands []CommandContribution `json:"commands"`
	Menus    []MenuContribution    `json:"menus"`

	// Configuration schema
	ConfigSchema map[string]ConfigProperty `json:"configSchema"`

	// Internal: path to the plugin directory
	path string
}

// ActivationContribution declares the activation policy.
type ActivationContribution struct {
	Type     string   `json:"type"`     // app-startup, on-command, on-demand
	Commands []string `json:"commands"` // triggers for on-command
}

// CommandContribution declares a command the plugin provides.
type CommandContribution struct {
	ID          string `json:"id"`          // Command ID (e.g., "outline.refresh")
	Title       string `json:"title"`       // Display title
	Description string `json:"description"` // Long description
	Category    string `json:"category"`    // Command category
}

// MenuContribution declares menu items.
type MenuContribution struct {
	Menu    string `json:"menu"`    // Parent menu
	Command string `json:"command"` // Command to invoke
	Title   string `json:"title"`   // Display title
	Group   string `json:"group"`   // Menu group
	Order   int    `json:"order"`   // Position within the group
	When    string `json:"when"`    // Condition expression
}

// ConfigProperty describes a configuration option.
type ConfigProperty struct {
	Type        string   `json:"type"`        // string, number, boolean, array, object
	Default     any      `json:"default"`     // Default value
	Description string   `json:"description"` // Property description
	Enum        []string `json:"enum"`        // Allowed values for enum types
}

// Validation errors.
var (
	ErrMissingName        = errors.New("manifest: name is required")
	ErrInvalidName        = errors.New("manifest: name must be alphanumeric with hyphens")
	ErrInvalidVersion     = errors.New("manifest: version must be valid semver")
	ErrInvalidMain        = errors.New("manifest: main must be a .lua file")
	ErrInvalidActivation  = errors.New("manifest: invalid activation")
	ErrInvalidConfigType  = errors.New("manifest: invalid config property type")
	ErrMissingCommandID   = errors.New("manifest: command id is required")
	ErrMissingCommandName = errors.New("manifest: command title is required")
)

// namePattern validates plugin names.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)

// semverPattern validates version strings (simplified semver).
var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

var validConfigTypes = map[string]bool{
	"string":  true,
	"number":  true,
	"boolean": true,
	"array":   true,
	"object":  true,
}

// LoadManifest loads and validates a plugin manifest from a file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	m.path = filepath.Dir(path)
	m.applyDefaults()

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// NewManifestMinimal creates a manifest for a plugin without plugin.json.
func NewManifestMinimal(name, dir, main string) *Manifest {
	m := &Manifest{Name: name, Main: main, path: dir}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Main == "" {
		m.Main = "init.lua"
	}
	if m.Version == "" {
		m.Version = "0.0.0"
	}
}

// Validate checks that the manifest is valid.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return ErrMissingName
	}
	if !namePattern.MatchString(m.Name) {
		return fmt.Errorf("%w: %s", ErrInvalidName, m.Name)
	}
	if !semverPattern.MatchString(m.Version) {
		return fmt.Errorf("%w: %s", ErrInvalidVersion, m.Version)
	}
	if filepath.Ext(m.Main) != ".lua" {
		return fmt.Errorf("%w: %s", ErrInvalidMain, m.Main)
	}
	if _, err := ParseActivationType(m.Activation.Type); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidActivation, err)
	}
	if _, err := security.Parse(m.Capabilities); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}

	for i, cmd := range m.Commands {
		if cmd.ID == "" {
			return fmt.Errorf("%w at index %d", ErrMissingCommandID, i)
		}
		if cmd.Title == "" {
			return fmt.Errorf("%w at index %d (id: %s)", ErrMissingCommandName, i, cmd.ID)
		}
	}

	for name, prop := range m.ConfigSchema {
		if prop.Type != "" && !validConfigTypes[prop.Type] {
			return fmt.Errorf("%w: %s.%s has type %q", ErrInvalidConfigType, m.Name, name, prop.Type)
		}
	}
	return nil
}

// Path returns the path to the plugin directory.
func (m *Manifest) Path() string {
	return m.path
}

// MainPath returns the full path to the main Lua file.
func (m *Manifest) MainPath() string {
	return filepath.Join(m.path, m.Main)
}

// Policy returns the declared activation policy.
func (m *Manifest) Policy() ActivationPolicy {
	t, err := ParseActivationType(m.Activation.Type)
	if err != nil {
		t = AppStartup
	}
	return ActivationPolicy{
		Type:     t,
		Commands: append([]string(nil), m.Activation.Commands...),
	}
}

// Contributions converts the declared commands and menus.
func (m *Manifest) Contributions() Contributions {
	var c Contributions
	for _, cc := range m.Commands {
		c.Commands = append(c.Commands, command.Command{
			ID:          cc.ID,
			Title:       cc.Title,
			Description: cc.Description,
			Category:    cc.Category,
		})
	}
	for _, mc := range m.Menus {
		c.Menus = append(c.Menus, menu.Item{
			Label:   mc.Title,
			Command: mc.Command,
			Parent:  mc.Menu,
			Group:   mc.Group,
			Order:   mc.Order,
			When:    mc.When,
		})
	}
	return c
}

// GrantedCapabilities returns the declared capabilities. Unknown names are
// rejected by Validate, so they are skipped here.
func (m *Manifest) GrantedCapabilities() []security.Capability {
	var out []security.Capability
	for _, name := range m.Capabilities {
		if caps, err := security.Parse([]string{name}); err == nil {
			out = append(out, caps...)
		}
	}
	return out
}

// ConfigDefaults returns the default value of every property that has one.
func (m *Manifest) ConfigDefaults() map[string]any {
	defaults := make(map[string]any)
	for key, prop := range m.ConfigSchema {
		if prop.Default != nil {
			defaults[key] = prop.Default
		}
	}
	return defaults
}

// String returns a string representation of the manifest.
func (m *Manifest) String() string {
	display := m.DisplayName
	if display == "" {
		display = m.Name
	}
	return fmt.Sprintf("%s v%s", display, m.Version)
}
