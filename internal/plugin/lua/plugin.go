package lua

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/composer/internal/command"
	"github.com/dshills/composer/internal/layout"
	"github.com/dshills/composer/internal/menu"
	"github.com/dshills/composer/internal/plugin"
	"github.com/dshills/composer/internal/plugin/security"
)

// DefaultExecuteRate bounds composer.execute calls per second.
const DefaultExecuteRate = 50

// commandRegistryID is the plugin whose context is the command registry.
const commandRegistryID = "command"

// Plugin is a plugin.Plugin implemented by a Lua script.
//
// The script is evaluated once when the plugin is created. It declares
// itself through globals:
//
//	id = "outline"
//	activation = "on-command"          -- optional, default app-startup
//	activation_commands = {"outline.show"}
//	capabilities = {"context.read"}    -- see package security
//
//	contributions = {
//	    commands = {{id = "outline.show", title = "Show Outline"}},
//	    menus    = {{label = "Outline", command = "outline.show", parent = "view"}},
//	    regions  = {{id = "outline", placement = "right"}},
//	    views    = {{id = "outline.tree", region = "outline"}},
//	    handlers = {
//	        ["outline.show"] = function(args, ctx) ... end,
//	    },
//	}
//
//	function init(config) return {depth = config.depth or 3} end
//	function activate(ctx) print("outline ready") end
//
// Handlers receive the command arguments and the table returned by init.
// A handler fails by raising an error or by returning false and a message.
//
// Scripts reach the host through require("composer"):
//
//	composer.id()                 -- the plugin id
//	composer.context(id)          -- a plugin context; needs context.read for other ids
//	composer.commands()           -- registered command ids; needs command.list
//	composer.execute(id, args)    -- true, or false and a message; needs command.execute
type Plugin struct {
	state    *State
	bridge   *Bridge
	manifest *plugin.Manifest
	checker  *security.Checker
	limiter  *security.RateLimiter

	id       string
	policy   plugin.ActivationPolicy
	contribs plugin.Contributions

	// ctx is the value returned by the script's init, handed back to
	// activate and to every handler.
	ctx lua.LValue
	app *plugin.AppContext
}

type options struct {
	timeout     time.Duration
	output      func(pluginID, line string)
	executeRate int
}

// Option configures a Lua plugin.
type Option func(*options)

// WithTimeout bounds every call into the script.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithOutput receives the lines the script prints.
func WithOutput(fn func(pluginID, line string)) Option {
	return func(o *options) {
		o.output = fn
	}
}

// WithExecuteRate bounds composer.execute calls per second. A
// non-positive rate removes the bound.
func WithExecuteRate(n int) Option {
	return func(o *options) {
		o.executeRate = n
	}
}

// Load creates a plugin from a .lua file or a plugin directory.
func Load(path string, opts ...Option) (*Plugin, error) {
	m, err := plugin.Inspect(path)
	if err != nil {
		return nil, err
	}
	return newPlugin(m, func(s *State) error { return s.DoFile(m.MainPath()) }, opts)
}

// LoadString creates a plugin from script source. name is used as the id
// when the script does not set one.
func LoadString(name, source string, opts ...Option) (*Plugin, error) {
	m := plugin.NewManifestMinimal(name, "", "inline.lua")
	return newPlugin(m, func(s *State) error { return s.DoString(source) }, opts)
}

func newPlugin(m *plugin.Manifest, run func(*State) error, opts []Option) (*Plugin, error) {
	o := options{timeout: DefaultExecutionTimeout, executeRate: DefaultExecuteRate}
	for _, opt := range opts {
		opt(&o)
	}

	state, err := NewState(WithExecutionTimeout(o.timeout))
	if err != nil {
		return nil, err
	}
	p := &Plugin{
		state:    state,
		bridge:   NewBridge(state.L),
		manifest: m,
		limiter:  security.NewRateLimiter(o.executeRate),
		ctx:      lua.LNil,
	}
	state.Sandbox().Preload("composer", p.hostModule)
	if o.output != nil {
		state.Sandbox().SetOutput(func(line string) { o.output(p.id, line) })
	}

	if err := run(state); err != nil {
		state.Close()
		return nil, fmt.Errorf("%s: %w", m.Name, err)
	}
	if err := p.readDeclarations(); err != nil {
		state.Close()
		return nil, fmt.Errorf("%s: %w", m.Name, err)
	}
	return p, nil
}

// readDeclarations reads id, policy and contributions from the globals.
// Manifest declarations come first; the script adds to them.
func (p *Plugin) readDeclarations() error {
	return p.state.Do(context.Background(), func(L *lua.LState) error {
		p.id = p.manifest.Name
		if s, ok := L.GetGlobal("id").(lua.LString); ok && strings.TrimSpace(string(s)) != "" {
			p.id = strings.TrimSpace(string(s))
		}

		p.policy = p.manifest.Policy()
		if s, ok := L.GetGlobal("activation").(lua.LString); ok {
			t, err := plugin.ParseActivationType(string(s))
			if err != nil {
				return fmt.Errorf("%w: %v", ErrScript, err)
			}
			p.policy.Type = t
		}
		triggers, err := p.bridge.Strings(L.GetGlobal("activation_commands"))
		if err != nil {
			return fmt.Errorf("%w: activation_commands: %v", ErrScript, err)
		}
		p.policy.Commands = append(p.policy.Commands, triggers...)

		declared, err := p.bridge.Strings(L.GetGlobal("capabilities"))
		if err != nil {
			return fmt.Errorf("%w: capabilities: %v", ErrScript, err)
		}
		caps, err := security.Parse(declared)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrScript, err)
		}
		p.checker = security.NewChecker(p.id)
		p.checker.GrantAll(p.manifest.GrantedCapabilities())
		p.checker.GrantAll(caps)

		p.contribs = p.manifest.Contributions()
		switch t := L.GetGlobal("contributions").(type) {
		case *lua.LNilType:
		case *lua.LTable:
			if err := p.readContributions(t); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: contributions must be a table, got %s", ErrScript, t.Type())
		}
		return nil
	})
}

func (p *Plugin) readContributions(t *lua.LTable) error {
	b := p.bridge

	forEachTable := func(key string, fn func(*lua.LTable)) error {
		list, ok := b.Table(t, key)
		if !ok {
			return nil
		}
		var err error
		list.ForEach(func(_, v lua.LValue) {
			item, ok := v.(*lua.LTable)
			if !ok {
				if err == nil {
					err = fmt.Errorf("%w: contributions.%s entries must be tables", ErrScript, key)
				}
				return
			}
			fn(item)
		})
		return err
	}

	err := errors.Join(
		forEachTable("commands", func(c *lua.LTable) {
			p.contribs.Commands = append(p.contribs.Commands, command.Command{
				ID:          b.String(c, "id"),
				Title:       b.String(c, "title"),
				Description: b.String(c, "description"),
				Category:    b.String(c, "category"),
				Shortcut:    b.String(c, "shortcut"),
			})
		}),
		forEachTable("menus", func(m *lua.LTable) {
			p.contribs.Menus = append(p.contribs.Menus, menu.Item{
				ID:      b.String(m, "id"),
				Label:   b.String(m, "label"),
				Command: b.String(m, "command"),
				Parent:  b.String(m, "parent"),
				Group:   b.String(m, "group"),
				Order:   b.Int(m, "order"),
				When:    b.String(m, "when"),
			})
		}),
		forEachTable("regions", func(r *lua.LTable) {
			p.contribs.Regions = append(p.contribs.Regions, layout.Region{
				ID:        b.String(r, "id"),
				Title:     b.String(r, "title"),
				Placement: layout.Placement(b.String(r, "placement")),
				Order:     b.Int(r, "order"),
			})
		}),
		forEachTable("views", func(v *lua.LTable) {
			p.contribs.Views = append(p.contribs.Views, layout.View{
				ID:     b.String(v, "id"),
				Region: b.String(v, "region"),
				Title:  b.String(v, "title"),
				Order:  b.Int(v, "order"),
			})
		}),
	)
	if err != nil {
		return err
	}

	handlers, ok := b.Table(t, "handlers")
	if !ok {
		return nil
	}
	var ids []string
	fns := make(map[string]*lua.LFunction)
	handlers.ForEach(func(k, v lua.LValue) {
		id, idOK := k.(lua.LString)
		fn, fnOK := v.(*lua.LFunction)
		if idOK && fnOK {
			ids = append(ids, string(id))
			fns[string(id)] = fn
		} else if err == nil {
			err = fmt.Errorf("%w: handlers must map command ids to functions", ErrScript)
		}
	})
	if err != nil {
		return err
	}
	// Table iteration order is unspecified; bind handlers in id order.
	sort.Strings(ids)
	for _, id := range ids {
		p.contribs.Handlers = append(p.contribs.Handlers, plugin.HandlerDefinition{
			CommandID: id,
			Handler:   p.handler(fns[id]),
			Context:   p.id,
		})
	}
	return nil
}

// hostModule is the loader of the "composer" module.
func (p *Plugin) hostModule(L *lua.LState) int {
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"id": func(L *lua.LState) int {
			L.Push(lua.LString(p.id))
			return 1
		},
		// context(id) returns a plugin context. It is nil until the
		// plugin is activated.
		"context": func(L *lua.LState) int {
			id := L.CheckString(1)
			if id != p.id {
				p.require(L, security.CapabilityContextRead, "context")
			}
			if p.app == nil {
				L.Push(lua.LNil)
				return 1
			}
			v, ok := p.app.PluginContext(id)
			if !ok {
				L.Push(lua.LNil)
				return 1
			}
			L.Push(p.bridge.ToLuaValue(v))
			return 1
		},
		"commands": func(L *lua.LState) int {
			p.require(L, security.CapabilityCommandList, "commands")
			reg := p.registry(L)
			list := L.NewTable()
			for _, cmd := range reg.Commands() {
				list.Append(lua.LString(cmd.ID))
			}
			L.Push(list)
			return 1
		},
		"execute": func(L *lua.LState) int {
			id := L.CheckString(1)
			argTable := L.OptTable(2, L.NewTable())
			p.require(L, security.CapabilityCommandExecute, "execute")
			if !p.limiter.Allow() {
				L.RaiseError("execute %s: rate limit exceeded", id)
			}
			reg := p.registry(L)

			args, _ := p.bridge.ToGoValue(argTable).(map[string]any)
			if err := reg.Execute(L.Context(), id, args); err != nil {
				L.Push(lua.LFalse)
				L.Push(lua.LString(err.Error()))
				return 2
			}
			L.Push(lua.LTrue)
			return 1
		},
	})
	L.Push(mod)
	return 1
}

// require raises a Lua error unless the plugin holds cap.
func (p *Plugin) require(L *lua.LState, cap security.Capability, op string) {
	if err := p.checker.Check(cap, op); err != nil {
		L.RaiseError("%s", err.Error())
	}
}

func (p *Plugin) registry(L *lua.LState) *command.Registry {
	if p.app != nil {
		if reg, ok := plugin.ContextAs[*command.Registry](p.app, commandRegistryID); ok && reg != nil {
			return reg
		}
	}
	L.RaiseError("%s: command registry unavailable before activation", p.id)
	return nil
}

func (p *Plugin) handler(fn *lua.LFunction) command.Handler {
	return func(ctx context.Context, call command.Call) error {
		return p.state.Do(ctx, func(L *lua.LState) error {
			results, err := callFunction(L, fn, p.bridge.ToLuaValue(call.Args), p.ctx)
			if err != nil {
				return err
			}
			if len(results) > 0 && results[0] == lua.LFalse {
				msg := "handler failed"
				if len(results) > 1 {
					msg = L.ToStringMeta(results[1]).String()
				}
				return errors.New(msg)
			}
			return nil
		})
	}
}

// ID returns the plugin id.
func (p *Plugin) ID() string { return p.id }

// Capabilities returns the capabilities granted to the script.
func (p *Plugin) Capabilities() []security.Capability { return p.checker.Granted() }

// Manifest returns the manifest the plugin was loaded with.
func (p *Plugin) Manifest() *plugin.Manifest { return p.manifest }

// Init merges cfg over the manifest defaults and passes it to the script's
// init function. The returned context is the Go form of what init returned,
// or of the configuration when the script has no init.
func (p *Plugin) Init(cfg map[string]any) (any, error) {
	merged := p.manifest.ConfigDefaults()
	for k, v := range cfg {
		merged[k] = v
	}

	var out any
	err := p.state.Do(context.Background(), func(L *lua.LState) error {
		luaCfg := p.bridge.ToLuaValue(merged)
		fn, ok := L.GetGlobal("init").(*lua.LFunction)
		if !ok {
			p.ctx = luaCfg
			out = merged
			return nil
		}
		results, err := callFunction(L, fn, luaCfg)
		if err != nil {
			return err
		}
		p.ctx = lua.LNil
		if len(results) > 0 {
			p.ctx = results[0]
		}
		out = p.bridge.ToGoValue(p.ctx)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: init: %w", p.id, err)
	}
	return out, nil
}

// Contributions returns the contributions read when the script was loaded.
func (p *Plugin) Contributions() plugin.Contributions { return p.contribs }

// ActivationPolicy returns the declared policy.
func (p *Plugin) ActivationPolicy() plugin.ActivationPolicy { return p.policy }

// Activate calls the script's activate function, if any, with the context
// returned by init.
func (p *Plugin) Activate(app *plugin.AppContext) error {
	return p.ActivateContext(context.Background(), app)
}

// ActivateContext is Activate run under ctx. Commands executed by the
// script's activate function inherit ctx, so a chain that leads back into
// a state already running fails with ErrReentrant.
func (p *Plugin) ActivateContext(ctx context.Context, app *plugin.AppContext) error {
	p.app = app
	err := p.state.Do(ctx, func(L *lua.LState) error {
		fn, ok := L.GetGlobal("activate").(*lua.LFunction)
		if !ok {
			return nil
		}
		_, err := callFunction(L, fn, p.ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: activate: %w", p.id, err)
	}
	return nil
}

// Close releases the Lua state.
func (p *Plugin) Close() error {
	return p.state.Close()
}

// Factory returns a plugin.Factory for descriptors of kind "lua". The
// descriptor needs a path, or a "source" option holding the script.
func Factory(opts ...Option) plugin.Factory {
	return func(d plugin.Descriptor) (plugin.Plugin, error) {
		if d.Path != "" {
			return Load(d.Path, opts...)
		}
		if src, ok := d.Options["source"].(string); ok {
			return LoadString(d.ID, src, opts...)
		}
		return nil, fmt.Errorf("%w: lua descriptor needs a path or source", ErrScript)
	}
}
