package plugin

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Descriptor names a plugin in configuration.
//
// In TOML:
//
//	[[app.plugins]]
//	kind = "lua"
//	path = "plugins/outline"
type Descriptor struct {
	ID      string
	Kind    string
	Path    string
	Options map[string]any // remaining keys of the entry
}

// Factory builds a plugin from its descriptor.
type Factory func(d Descriptor) (Plugin, error)

// Catalog resolves configuration entries into plugins.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory)}
}

// Register adds a factory for kind. A kind can be registered once.
func (c *Catalog) Register(kind string, f Factory) error {
	kind = strings.TrimSpace(kind)
	if kind == "" || f == nil {
		return fmt.Errorf("catalog: kind and factory are required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.factories[kind]; exists {
		return fmt.Errorf("catalog: kind %q already registered", kind)
	}
	c.factories[kind] = f
	return nil
}

// Kinds returns the registered kinds in sorted order.
func (c *Catalog) Kinds() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	kinds := make([]string, 0, len(c.factories))
	for k := range c.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Resolve turns one entry of app.plugins into a plugin.
//
// An entry is a Plugin value, a string naming a registered kind, or a
// descriptor map. Anything else, an unknown kind, or a factory failure
// yields ErrInvalidPlugin.
func (c *Catalog) Resolve(entry any) (Plugin, error) {
	switch e := entry.(type) {
	case Plugin:
		return e, nil
	case string:
		return c.build(Descriptor{Kind: strings.TrimSpace(e)})
	case map[string]any:
		d, err := ParseDescriptor(e)
		if err != nil {
			return nil, err
		}
		return c.build(d)
	default:
		return nil, fmt.Errorf("%w: unsupported entry %T", ErrInvalidPlugin, entry)
	}
}

func (c *Catalog) build(d Descriptor) (Plugin, error) {
	c.mu.RLock()
	f, ok := c.factories[d.Kind]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %w %q", ErrInvalidPlugin, ErrUnknownKind, d.Kind)
	}

	p, err := f(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPlugin, d.Kind, err)
	}
	if err := Validate(p); err != nil {
		return nil, err
	}
	if d.ID != "" && p.ID() != d.ID {
		return nil, fmt.Errorf("%w: descriptor id %q does not match plugin id %q", ErrInvalidPlugin, d.ID, p.ID())
	}
	return p, nil
}

// ParseDescriptor reads a descriptor map. A missing kind is inferred as
// "lua" when path points at a .lua file or a directory.
func ParseDescriptor(m map[string]any) (Descriptor, error) {
	var d Descriptor
	var err error
	if d.ID, err = descriptorString(m, "id"); err != nil {
		return d, err
	}
	if d.Kind, err = descriptorString(m, "kind"); err != nil {
		return d, err
	}
	if d.Path, err = descriptorString(m, "path"); err != nil {
		return d, err
	}

	if d.Kind == "" && d.Path != "" {
		if ext := filepath.Ext(d.Path); ext == ".lua" || ext == "" {
			d.Kind = "lua"
		}
	}
	if d.Kind == "" {
		return d, fmt.Errorf("%w: descriptor without kind", ErrInvalidPlugin)
	}

	for k, v := range m {
		switch k {
		case "id", "kind", "path":
			continue
		}
		if d.Options == nil {
			d.Options = make(map[string]any)
		}
		d.Options[k] = v
	}
	return d, nil
}

func descriptorString(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: descriptor field %q must be a string, got %T", ErrInvalidPlugin, key, v)
	}
	return strings.TrimSpace(s), nil
}
