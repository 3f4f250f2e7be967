package plugin

import "sync"

// AppContext maps plugin ids to the contexts returned by their Init.
//
// It is shared with every plugin on activation. Any plugin may read any
// slot; only the shell writes through SetPluginContext, and a plugin should
// write its own slot through Scope.
type AppContext struct {
	mu       sync.RWMutex
	contexts map[string]any
}

// NewAppContext creates an empty application context.
func NewAppContext() *AppContext {
	return &AppContext{contexts: make(map[string]any)}
}

// PluginContext returns the context stored for id.
func (c *AppContext) PluginContext(id string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.contexts[id]
	return v, ok
}

// PluginContexts returns a copy of the id to context mapping.
func (c *AppContext) PluginContexts() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]any, len(c.contexts))
	for k, v := range c.contexts {
		out[k] = v
	}
	return out
}

// SetPluginContext stores v for id, replacing any previous value.
func (c *AppContext) SetPluginContext(id string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contexts[id] = v
}

// Len returns the number of stored contexts.
func (c *AppContext) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.contexts)
}

// Scope returns an accessor that can only write the slot of id.
func (c *AppContext) Scope(id string) *Scope {
	return &Scope{app: c, id: id}
}

// Scope is a view of the application context owned by one plugin.
type Scope struct {
	app *AppContext
	id  string
}

// ID returns the owning plugin id.
func (s *Scope) ID() string { return s.id }

// Get returns the owner's context.
func (s *Scope) Get() (any, bool) { return s.app.PluginContext(s.id) }

// Set replaces the owner's context.
func (s *Scope) Set(v any) { s.app.SetPluginContext(s.id, v) }

// Lookup reads another plugin's context.
func (s *Scope) Lookup(id string) (any, bool) { return s.app.PluginContext(id) }

// ContextAs returns the context stored for id if it has type T.
func ContextAs[T any](c *AppContext, id string) (T, bool) {
	v, ok := c.PluginContext(id)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
