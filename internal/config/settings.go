package config

import (
	"reflect"

	"github.com/dshills/composer/internal/config/loader"
)

// Well-known setting paths.
const (
	PathAppName       = "app.name"
	PathAppPlugins    = "app.plugins"
	PathAppPreloader  = "app.preloader"
	PathPluginConfigs = "pluginConfigs"
	PathHistoryPath   = "history.path"
	PathHistorySize   = "history.size"
	PathLogLevel      = "logging.level"
)

// Defaults for the recognised settings.
const (
	DefaultAppName     = "composer"
	DefaultHistorySize = 100
	DefaultLogLevel    = "info"
)

// AppSettings is the resolved view of the recognised settings.
// Missing or malformed values fall back to their defaults.
type AppSettings struct {
	Name        string
	Plugins     []any
	Preloader   bool
	HistoryPath string
	HistorySize int
	LogLevel    string
}

// ResolveAppSettings resolves the recognised settings with their defaults.
func ResolveAppSettings(c *Config) AppSettings {
	s := AppSettings{
		Name:        DefaultAppName,
		Preloader:   true,
		HistorySize: DefaultHistorySize,
		LogLevel:    DefaultLogLevel,
	}
	if c == nil {
		return s
	}

	if v, err := c.GetString(PathAppName); err == nil && v != "" {
		s.Name = v
	}
	if v, err := c.GetBool(PathAppPreloader); err == nil {
		s.Preloader = v
	}
	if v, err := c.GetString(PathHistoryPath); err == nil {
		s.HistoryPath = v
	}
	if v, err := c.GetInt(PathHistorySize); err == nil && v > 0 {
		s.HistorySize = v
	}
	if v, err := c.GetString(PathLogLevel); err == nil && v != "" {
		s.LogLevel = v
	}
	s.Plugins = c.PluginEntries()
	return s
}

// PluginEntries returns the configured plugin list in declared order.
//
// app.plugins is either the list itself or a string naming the path of the
// list. An absent value, a dangling or malformed path or a value that is
// not a sequence yields nil.
func (c *Config) PluginEntries() []any {
	v, err := c.lookup(PathAppPlugins)
	if err != nil {
		return nil
	}
	if path, isPath := v.(string); isPath {
		if v, err = c.lookup(path); err != nil {
			return nil
		}
	}
	return toSequence(v)
}

// PluginConfig returns the configuration sub-object for a plugin id, or an
// empty map when none is configured. The id is matched as a single key, so
// ids containing dots are supported.
func (c *Config) PluginConfig(id string) map[string]any {
	v, err := c.lookup(PathPluginConfigs)
	if err != nil {
		return map[string]any{}
	}
	all, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	pc, ok := all[id].(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return loader.Clone(pc)
}

func toSequence(v any) []any {
	switch seq := v.(type) {
	case []any:
		return loader.CloneValue(seq).([]any)
	case []string:
		out := make([]any, len(seq))
		for i, s := range seq {
			out[i] = s
		}
		return out
	}

	// Typed slices of plugin values placed in a programmatic configuration.
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
