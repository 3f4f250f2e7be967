// Package palette is a built-in command palette plugin. It lists the
// registered commands, ranked by a fuzzy query and by recent use.
//
// The plugin activates on its first command. Activation looks up the
// command registry published by the built-in "command" plugin.
package palette

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dshills/composer/internal/command"
	"github.com/dshills/composer/internal/menu"
	"github.com/dshills/composer/internal/plugin"
)

// Identifiers contributed by the plugin.
const (
	ID            = "palette"
	CommandList   = "palette.list"
	CommandRecent = "palette.recent"

	// CommandRegistryID is the plugin id whose context is the command
	// registry.
	CommandRegistryID = "command"
)

// DefaultLimit caps listings when neither the call nor the plugin
// configuration sets a limit.
const DefaultLimit = 20

// ErrNotActive is returned by a handler that runs before activation.
var ErrNotActive = errors.New("palette is not active")

// Sink receives the results of a listing.
type Sink func(command string, results []Result)

// Palette is the plugin.
type Palette struct {
	mu       sync.Mutex
	registry *command.Registry
	limit    int
	sink     Sink
	last     []Result
}

// Option configures the palette.
type Option func(*Palette)

// WithSink delivers listings to sink as well as keeping the last one.
func WithSink(sink Sink) Option {
	return func(p *Palette) {
		p.sink = sink
	}
}

// New creates the palette plugin.
func New(opts ...Option) *Palette {
	p := &Palette{limit: DefaultLimit}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Factory builds palettes for a plugin catalog. Descriptor options are
// ignored; the palette reads pluginConfigs.palette instead.
func Factory(opts ...Option) plugin.Factory {
	return func(plugin.Descriptor) (plugin.Plugin, error) {
		return New(opts...), nil
	}
}

// ID returns "palette".
func (p *Palette) ID() string { return ID }

// Init reads "limit" from the plugin configuration. The palette itself is
// the plugin context.
func (p *Palette) Init(cfg map[string]any) (any, error) {
	if v, ok := cfg["limit"]; ok {
		n, ok := toInt(v)
		if !ok || n < 0 {
			return nil, fmt.Errorf("limit must be a non-negative integer, got %v", v)
		}
		p.mu.Lock()
		p.limit = n
		p.mu.Unlock()
	}
	return p, nil
}

// Contributions declares the palette commands, their handlers and the
// entries in the view menu.
func (p *Palette) Contributions() plugin.Contributions {
	limitArg := command.Arg{
		Name:        "limit",
		Type:        command.ArgNumber,
		Description: "Maximum number of entries; 0 means the configured limit",
	}
	return plugin.Contributions{
		Commands: []command.Command{
			{
				ID:          CommandList,
				Title:       "Show Command Palette",
				Description: "List commands matching a query, recent first",
				Category:    "View",
				Shortcut:    "Ctrl+Shift+P",
				Args: []command.Arg{
					{Name: "query", Type: command.ArgString, Description: "Fuzzy filter"},
					limitArg,
				},
			},
			{
				ID:       CommandRecent,
				Title:    "Show Recent Commands",
				Category: "View",
				Args:     []command.Arg{limitArg},
			},
		},
		Handlers: []plugin.HandlerDefinition{
			{CommandID: CommandList, Handler: p.handleList},
			{CommandID: CommandRecent, Handler: p.handleRecent},
		},
		Menus: []menu.Item{
			{Label: "Command Palette...", Command: CommandList, Parent: "view", Group: "1_palette"},
			{Label: "Recent Commands", Command: CommandRecent, Parent: "view", Group: "1_palette", Order: 1},
		},
	}
}

// ActivationPolicy defers activation until a palette command runs.
func (p *Palette) ActivationPolicy() plugin.ActivationPolicy {
	return plugin.ActivationPolicy{
		Type:     plugin.OnCommand,
		Commands: []string{CommandList, CommandRecent},
	}
}

// Activate binds the palette to the command registry.
func (p *Palette) Activate(app *plugin.AppContext) error {
	reg, ok := plugin.ContextAs[*command.Registry](app, CommandRegistryID)
	if !ok || reg == nil {
		return fmt.Errorf("palette: no command registry under %q", CommandRegistryID)
	}
	p.mu.Lock()
	p.registry = reg
	p.mu.Unlock()
	return nil
}

// Last returns the most recent listing.
func (p *Palette) Last() []Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Result(nil), p.last...)
}

func (p *Palette) handleList(_ context.Context, call command.Call) error {
	reg, limit, err := p.bound(call)
	if err != nil {
		return err
	}
	query, _ := call.Args["query"].(string)

	recent, err := recentIDs(reg)
	if err != nil {
		return err
	}
	p.publish(call.Command, Search(reg.Commands(), query, recent, limit))
	return nil
}

func (p *Palette) handleRecent(_ context.Context, call command.Call) error {
	reg, limit, err := p.bound(call)
	if err != nil {
		return err
	}
	recent, err := recentIDs(reg)
	if err != nil {
		return err
	}

	results := make([]Result, 0, len(recent))
	for _, id := range recent {
		if limit > 0 && len(results) == limit {
			break
		}
		if cmd, ok := reg.Command(id); ok {
			results = append(results, Result{Command: cmd})
		}
	}
	p.publish(call.Command, results)
	return nil
}

func (p *Palette) bound(call command.Call) (*command.Registry, int, error) {
	p.mu.Lock()
	reg, limit := p.registry, p.limit
	p.mu.Unlock()

	if reg == nil {
		return nil, 0, ErrNotActive
	}
	if n, ok := toInt(call.Args["limit"]); ok && n > 0 {
		limit = n
	}
	return reg, limit, nil
}

func (p *Palette) publish(cmd string, results []Result) {
	p.mu.Lock()
	p.last = results
	sink := p.sink
	p.mu.Unlock()

	if sink != nil {
		sink(cmd, results)
	}
}

func recentIDs(reg *command.Registry) ([]string, error) {
	h := reg.History()
	if h == nil {
		return nil, nil
	}
	return h.Recent(0)
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}
