package security

import (
	"sort"
	"sync"
)

// Checker holds the capabilities granted to one plugin.
type Checker struct {
	mu      sync.RWMutex
	plugin  string
	granted map[Capability]bool
}

// NewChecker creates a checker with nothing granted.
func NewChecker(plugin string) *Checker {
	return &Checker{
		plugin:  plugin,
		granted: make(map[Capability]bool),
	}
}

// Plugin returns the id the checker was created for.
func (c *Checker) Plugin() string { return c.plugin }

// Grant grants a capability.
func (c *Checker) Grant(cap Capability) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.granted[cap] = true
}

// GrantAll grants several capabilities.
func (c *Checker) GrantAll(caps []Capability) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cap := range caps {
		c.granted[cap] = true
	}
}

// Revoke removes a granted capability. Capabilities implied by other
// grants remain.
func (c *Checker) Revoke(cap Capability) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.granted, cap)
}

// Has reports whether cap is granted directly or through a parent.
func (c *Checker) Has(cap Capability) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.granted[cap] {
		return true
	}
	for g := range c.granted {
		if Implies(g, cap) {
			return true
		}
	}
	return false
}

// Check returns a *CapabilityError if cap is not granted.
func (c *Checker) Check(cap Capability, operation string) error {
	if c.Has(cap) {
		return nil
	}
	return &CapabilityError{Plugin: c.plugin, Capability: cap, Operation: operation}
}

// Granted returns the directly granted capabilities, sorted.
func (c *Checker) Granted() []Capability {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Capability, 0, len(c.granted))
	for cap := range c.granted {
		out = append(out, cap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
