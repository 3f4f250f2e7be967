package config

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/dshills/composer/internal/config/loader"
)

// Config is a frozen configuration snapshot.
// The zero value is an empty configuration.
type Config struct {
	data    map[string]any
	sources []string
}

// New creates a snapshot from data. The map is deep-copied, so changes the
// caller makes to data afterwards are not visible through the Config.
func New(data map[string]any) *Config {
	c := &Config{data: loader.Clone(data)}
	if c.data == nil {
		c.data = make(map[string]any)
	}
	return c
}

// Empty returns a snapshot with no settings.
func Empty() *Config {
	return New(nil)
}

// Option configures Load.
type Option func(*loadOptions)

type loadOptions struct {
	fs        loader.FileSystem
	envPrefix string
	useEnv    bool
	defaults  map[string]any
}

// WithFS sets the file system configuration files are read from.
func WithFS(fs loader.FileSystem) Option {
	return func(o *loadOptions) {
		o.fs = fs
	}
}

// WithEnvPrefix sets the environment variable prefix (default COMPOSER_).
func WithEnvPrefix(prefix string) Option {
	return func(o *loadOptions) {
		o.envPrefix = prefix
	}
}

// WithoutEnv disables the environment overlay.
func WithoutEnv() Option {
	return func(o *loadOptions) {
		o.useEnv = false
	}
}

// WithDefaults sets the values files and the environment are merged over.
func WithDefaults(defaults map[string]any) Option {
	return func(o *loadOptions) {
		o.defaults = defaults
	}
}

// Load reads the given files in order, later files overriding earlier ones,
// applies the environment overlay and freezes the result.
// Missing files are skipped.
func Load(paths []string, opts ...Option) (*Config, error) {
	o := loadOptions{
		fs:        loader.DefaultFS(),
		envPrefix: loader.DefaultEnvPrefix,
		useEnv:    true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	merged := loader.Clone(o.defaults)
	var sources []string

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := loader.ForPath(o.fs, path).Load()
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		if data == nil {
			continue
		}
		merged = loader.DeepMerge(merged, data)
		sources = append(sources, path)
	}

	if o.useEnv {
		env, err := loader.NewEnvLoader(o.envPrefix).Load()
		if err != nil {
			return nil, fmt.Errorf("loading environment: %w", err)
		}
		merged = loader.DeepMerge(merged, env)
	}

	c := New(merged)
	c.sources = sources
	return c, nil
}

// Sources returns the files that contributed to the snapshot, in load order.
func (c *Config) Sources() []string {
	out := make([]string, len(c.sources))
	copy(out, c.sources)
	return out
}

// Get returns the value at a dot-separated path.
// Maps and slices are returned as deep copies. Get reports false for a
// missing value and for a malformed path such as "a..b".
func (c *Config) Get(path string) (any, bool) {
	v, err := c.lookup(path)
	if err != nil {
		return nil, false
	}
	return loader.CloneValue(v), true
}

// Has reports whether a value exists at path.
func (c *Config) Has(path string) bool {
	_, err := c.lookup(path)
	return err == nil
}

// GetString returns the string at path.
func (c *Config) GetString(path string) (string, error) {
	v, err := c.lookup(path)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", &TypeError{Path: path, Expected: "string", Actual: fmt.Sprintf("%T", v)}
	}
	return s, nil
}

// GetBool returns the bool at path.
func (c *Config) GetBool(path string) (bool, error) {
	v, err := c.lookup(path)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, &TypeError{Path: path, Expected: "bool", Actual: fmt.Sprintf("%T", v)}
	}
	return b, nil
}

// GetInt returns the integer at path. TOML, YAML and JSON number
// representations are all accepted.
func (c *Config) GetInt(path string) (int, error) {
	v, err := c.lookup(path)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case int32:
		return int(n), nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
	}
	return 0, &TypeError{Path: path, Expected: "int", Actual: fmt.Sprintf("%T", v)}
}

// GetMap returns a copy of the map at path.
func (c *Config) GetMap(path string) (map[string]any, error) {
	v, err := c.lookup(path)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &TypeError{Path: path, Expected: "map", Actual: fmt.Sprintf("%T", v)}
	}
	return loader.Clone(m), nil
}

// Sub returns a read-only view of the map at path. An absent or non-map
// value yields an empty Config.
func (c *Config) Sub(path string) *Config {
	m, err := c.GetMap(path)
	if err != nil {
		return Empty()
	}
	return &Config{data: m}
}

// Keys returns the sorted top-level keys.
func (c *Config) Keys() []string {
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// All returns a deep copy of the whole snapshot.
func (c *Config) All() map[string]any {
	out := loader.Clone(c.data)
	if out == nil {
		out = make(map[string]any)
	}
	return out
}

// Set always fails: the snapshot cannot change after construction.
func (c *Config) Set(path string, _ any) error {
	return fmt.Errorf("set %s: %w", path, ErrReadOnly)
}

// Delete always fails: the snapshot cannot change after construction.
func (c *Config) Delete(path string) error {
	return fmt.Errorf("delete %s: %w", path, ErrReadOnly)
}

// lookup resolves a dot-separated path. A path with an empty segment
// fails with ErrInvalidPath.
func (c *Config) lookup(path string) (any, error) {
	parts := strings.Split(path, ".")
	if slices.Contains(parts, "") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	if c == nil || c.data == nil {
		return nil, fmt.Errorf("%w: %s", ErrSettingNotFound, path)
	}

	var current any = c.data
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrSettingNotFound, path)
		}
		current, ok = m[part]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrSettingNotFound, path)
		}
	}
	return current, nil
}
