package lua

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultExecutionTimeout bounds every script execution.
const DefaultExecutionTimeout = 5 * time.Second

// State wraps a sandboxed gopher-lua state.
//
// gopher-lua's LState is not goroutine-safe. Every access goes through the
// State mutex, so handlers bound to commands may run from any goroutine.
type State struct {
	L *lua.LState

	mu      sync.Mutex
	timeout time.Duration
	sandbox *Sandbox
	closed  bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithExecutionTimeout sets the deadline of each execution. A non-positive
// duration disables it.
func WithExecutionTimeout(d time.Duration) StateOption {
	return func(s *State) {
		s.timeout = d
	}
}

// NewState creates a new sandboxed Lua state.
func NewState(opts ...StateOption) (*State, error) {
	s := &State{timeout: DefaultExecutionTimeout}
	for _, opt := range opts {
		opt(s)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	if err := openSafeLibraries(L); err != nil {
		L.Close()
		return nil, err
	}

	s.L = L
	s.sandbox = NewSandbox(L)
	s.sandbox.Install()
	return s, nil
}

// openSafeLibraries opens only the libraries a plugin script needs.
// io, os, debug and channel stay closed.
func openSafeLibraries(L *lua.LState) error {
	libs := []struct {
		name string
		open lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
	for _, lib := range libs {
		err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.open), NRet: 0, Protect: true}, lua.LString(lib.name))
		if err != nil {
			return fmt.Errorf("open %s library: %w", lib.name, err)
		}
	}
	return nil
}

// frame links the states a call chain is running in. A script that
// executes a command whose handler lives in a state already on the chain
// would otherwise wait on its own lock.
type frame struct {
	state *State
	next  *frame
}

type frameKey struct{}

func (s *State) onChain(ctx context.Context) bool {
	for f, _ := ctx.Value(frameKey{}).(*frame); f != nil; f = f.next {
		if f.state == s {
			return true
		}
	}
	return false
}

// Do runs fn with exclusive access to the Lua state. Lua code started by
// fn is interrupted when ctx is done or the execution timeout elapses.
// Re-entering a state from its own call chain fails with ErrReentrant.
func (s *State) Do(ctx context.Context, fn func(L *lua.LState) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.onChain(ctx) {
		return ErrReentrant
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	parent, _ := ctx.Value(frameKey{}).(*frame)
	ctx = context.WithValue(ctx, frameKey{}, &frame{state: s, next: parent})

	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	err := s.protect(func() error { return fn(s.L) })
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return fmt.Errorf("%w: %v", ErrExecutionTimeout, err)
		case ctx.Err() != nil:
			return ctx.Err()
		}
	}
	return err
}

// protect converts a Go panic raised inside gopher-lua into an error.
func (s *State) protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// DoFile executes a Lua file.
func (s *State) DoFile(path string) error {
	return s.Do(context.Background(), func(L *lua.LState) error {
		return L.DoFile(path)
	})
}

// DoString executes a Lua chunk.
func (s *State) DoString(code string) error {
	return s.Do(context.Background(), func(L *lua.LState) error {
		return L.DoString(code)
	})
}

// Call calls the global function name. It returns an error if the global
// is missing or not a function.
func (s *State) Call(ctx context.Context, name string, args ...lua.LValue) ([]lua.LValue, error) {
	var results []lua.LValue
	err := s.Do(ctx, func(L *lua.LState) error {
		fn, ok := L.GetGlobal(name).(*lua.LFunction)
		if !ok {
			return fmt.Errorf("function %q not found", name)
		}
		var err error
		results, err = callFunction(L, fn, args...)
		return err
	})
	return results, err
}

// callFunction calls fn and returns every value it returned.
// The caller must hold the state.
func callFunction(L *lua.LState, fn *lua.LFunction, args ...lua.LValue) ([]lua.LValue, error) {
	top := L.GetTop()
	L.Push(fn)
	for _, arg := range args {
		L.Push(arg)
	}
	if err := L.PCall(len(args), lua.MultRet, nil); err != nil {
		return nil, err
	}

	n := L.GetTop() - top
	results := make([]lua.LValue, n)
	for i := 0; i < n; i++ {
		results[i] = L.Get(top + i + 1)
	}
	L.Pop(n)
	return results, nil
}

// Global returns a global variable value.
func (s *State) Global(name string) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil
	}
	return s.L.GetGlobal(name)
}

// HasFunction reports whether the global name is a function.
func (s *State) HasFunction(name string) bool {
	_, ok := s.Global(name).(*lua.LFunction)
	return ok
}

// Sandbox returns the sandbox installed in the state.
func (s *State) Sandbox() *Sandbox {
	return s.sandbox
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the Lua state. Later calls return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}
