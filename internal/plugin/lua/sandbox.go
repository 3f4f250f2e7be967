package lua

import (
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// Sandbox restricts what a plugin script can reach.
//
// Installing it removes the chunk loaders, empties package.path and
// package.cpath, and replaces require with a version that only resolves
// the safe standard modules and the modules preloaded through Preload.
// print is routed to the sandbox output.
type Sandbox struct {
	L *lua.LState

	mu      sync.RWMutex
	allowed map[string]bool
	output  func(string)
}

// safeModules are the standard modules a script may require.
var safeModules = []string{"string", "table", "math"}

// NewSandbox creates a sandbox for L. Call Install to apply it.
func NewSandbox(L *lua.LState) *Sandbox {
	s := &Sandbox{
		L:       L,
		allowed: make(map[string]bool),
	}
	for _, name := range safeModules {
		s.allowed[name] = true
	}
	return s
}

// Install applies the restrictions to the Lua state.
func (s *Sandbox) Install() {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		s.L.SetGlobal(name, lua.LNil)
	}

	if pkg, ok := s.L.GetGlobal("package").(*lua.LTable); ok {
		s.L.SetField(pkg, "path", lua.LString(""))
		s.L.SetField(pkg, "cpath", lua.LString(""))
	}

	s.installRequire()
	s.installPrint()
}

func (s *Sandbox) installRequire() {
	original := s.L.GetGlobal("require")
	if original == lua.LNil {
		return
	}

	s.L.SetGlobal("require", s.L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		if !s.Allowed(name) {
			// RaiseError does not return.
			L.RaiseError("module %q is not available", name)
		}
		L.Push(original)
		L.Push(lua.LString(name))
		L.Call(1, 1)
		return 1
	}))
}

func (s *Sandbox) installPrint() {
	s.L.SetGlobal("print", s.L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, 0, L.GetTop())
		for i := 1; i <= L.GetTop(); i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		s.write(strings.Join(parts, "\t"))
		return 0
	}))
}

// Preload registers a Go module loadable with require(name).
func (s *Sandbox) Preload(name string, loader lua.LGFunction) {
	s.L.PreloadModule(name, loader)
	s.mu.Lock()
	s.allowed[name] = true
	s.mu.Unlock()
}

// Allowed reports whether require(name) is permitted.
func (s *Sandbox) Allowed(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allowed[name]
}

// SetOutput sets the destination of print. A nil func discards output.
func (s *Sandbox) SetOutput(fn func(string)) {
	s.mu.Lock()
	s.output = fn
	s.mu.Unlock()
}

func (s *Sandbox) write(line string) {
	s.mu.RLock()
	out := s.output
	s.mu.RUnlock()
	if out != nil {
		out(line)
	}
}
