package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dshills/composer/internal/command/history"
)

// BeforeExecuteFunc runs before the handlers of a command. Returning an
// error aborts the execution.
type BeforeExecuteFunc func(ctx context.Context, commandID string) error

// Observer is notified after every execution attempt of a known command.
type Observer interface {
	CommandExecuted(commandID string, elapsed time.Duration, err error)
}

// binding is one handler bound to a command together with its context.
type binding struct {
	handler Handler
	context any
}

// Registry stores command definitions and the handlers bound to them.
//
// Registering a command id twice is an error. Handlers are kept per id in
// registration order and may be bound before the command is defined.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
	handlers map[string][]binding
	hooks    []BeforeExecuteFunc

	history  history.History
	observer Observer
}

// Option configures a Registry.
type Option func(*Registry)

// WithHistory records successful executions in h.
func WithHistory(h history.History) Option {
	return func(r *Registry) {
		r.history = h
	}
}

// WithObserver reports executions to o.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		r.observer = o
	}
}

// NewRegistry creates an empty command registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		commands: make(map[string]Command),
		handlers: make(map[string][]binding),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterCommand adds a command definition keyed by its id.
func (r *Registry) RegisterCommand(cmd Command) error {
	if strings.TrimSpace(cmd.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidCommand)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[cmd.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, cmd.ID)
	}
	cmd.Args = append([]Arg(nil), cmd.Args...)
	r.commands[cmd.ID] = cmd
	return nil
}

// RegisterHandler binds h, invoked with hctx as its context, to commandID.
// The command does not need to be registered yet.
func (r *Registry) RegisterHandler(commandID string, h Handler, hctx any) error {
	if strings.TrimSpace(commandID) == "" {
		return fmt.Errorf("%w: empty command id", ErrInvalidHandler)
	}
	if h == nil {
		return fmt.Errorf("%w: nil handler for %s", ErrInvalidHandler, commandID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[commandID] = append(r.handlers[commandID], binding{handler: h, context: hctx})
	return nil
}

// OnBeforeExecute adds a hook that runs before the handlers of any command.
func (r *Registry) OnBeforeExecute(fn BeforeExecuteFunc) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Command returns the definition for id.
func (r *Registry) Command(id string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

// Has returns true if a command with id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.commands[id]
	return ok
}

// Commands returns all command definitions sorted by id.
func (r *Registry) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// HandlerCount returns the number of handlers bound to id.
func (r *Registry) HandlerCount(id string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[id])
}

// HandlerContexts returns the invocation contexts bound to id, in
// registration order.
func (r *Registry) HandlerContexts(id string) []any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bindings := r.handlers[id]
	out := make([]any, len(bindings))
	for i, b := range bindings {
		out[i] = b.context
	}
	return out
}

// Count returns the number of registered commands.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// History returns the execution history, or nil when none is configured.
func (r *Registry) History() history.History {
	return r.history
}

// Execute runs every handler bound to id in registration order.
//
// Arguments are validated against the command definition and defaults are
// applied to a copy; the caller's map is never modified. All handlers run
// even if one fails; their errors are joined. A panicking handler is
// reported as a *HandlerError.
func (r *Registry) Execute(ctx context.Context, id string, args map[string]any) error {
	r.mu.RLock()
	cmd, ok := r.commands[id]
	hooks := make([]BeforeExecuteFunc, len(r.hooks))
	copy(hooks, r.hooks)
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrCommandNotFound, id)
	}

	start := time.Now()
	err := r.execute(ctx, &cmd, hooks, args)
	if r.observer != nil {
		r.observer.CommandExecuted(id, time.Since(start), err)
	}
	if err == nil && r.history != nil {
		// History is advisory; a failed write does not fail the command.
		_ = r.history.Add(id)
	}
	return err
}

func (r *Registry) execute(ctx context.Context, cmd *Command, hooks []BeforeExecuteFunc, args map[string]any) error {
	if err := cmd.ValidateArgs(args); err != nil {
		return fmt.Errorf("command %q: %w", cmd.ID, err)
	}

	for _, hook := range hooks {
		if err := hook(ctx, cmd.ID); err != nil {
			return fmt.Errorf("command %q: %w", cmd.ID, err)
		}
	}

	// Read after the hooks: a hook may activate a plugin that binds handlers.
	r.mu.RLock()
	bindings := make([]binding, len(r.handlers[cmd.ID]))
	copy(bindings, r.handlers[cmd.ID])
	r.mu.RUnlock()

	if len(bindings) == 0 {
		return fmt.Errorf("%w: %s", ErrNoHandler, cmd.ID)
	}

	var errs []error
	for i, b := range bindings {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		call := Call{
			Command: cmd.ID,
			Args:    cmd.withDefaults(args),
			Context: b.context,
		}
		if err := invoke(ctx, b.handler, call); err != nil {
			errs = append(errs, &HandlerError{Command: cmd.ID, Index: i, Err: err})
		}
	}
	return errors.Join(errs...)
}

func invoke(ctx context.Context, h Handler, call Call) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, call)
}
