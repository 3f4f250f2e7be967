package plugin

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/dshills/composer/internal/command"
	"github.com/dshills/composer/internal/layout"
	"github.com/dshills/composer/internal/menu"
)

// Plugin is a unit of functionality loaded by the application shell.
//
// The shell calls Init once, reads Contributions once, and calls Activate
// only when the activation policy allows it.
type Plugin interface {
	// ID returns the plugin identifier. It keys the plugin's slot in the
	// application context and its entry under pluginConfigs.
	ID() string

	// Init receives the plugin's configuration and returns its private context.
	Init(cfg map[string]any) (any, error)

	// Contributions returns what the plugin adds to the registries.
	Contributions() Contributions

	// ActivationPolicy reports when the plugin should be activated.
	ActivationPolicy() ActivationPolicy

	// Activate starts the plugin. app is shared with every other plugin.
	Activate(app *AppContext) error
}

// ContextActivator is implemented by plugins whose activation can run
// commands. The shell prefers ActivateContext over Activate and passes the
// context of the command that triggered the activation, or a background
// context at startup.
type ContextActivator interface {
	ActivateContext(ctx context.Context, app *AppContext) error
}

// Activate starts p, through ActivateContext when p implements it.
func Activate(ctx context.Context, p Plugin, app *AppContext) error {
	if ca, ok := p.(ContextActivator); ok {
		return ca.ActivateContext(ctx, app)
	}
	return p.Activate(app)
}

// ActivationType is the kind of activation policy.
type ActivationType string

// Activation types.
const (
	// AppStartup activates the plugin as soon as it is loaded.
	AppStartup ActivationType = "app-startup"

	// OnCommand activates the plugin the first time one of the commands
	// named by the policy is executed.
	OnCommand ActivationType = "on-command"

	// OnDemand leaves activation to an explicit request.
	OnDemand ActivationType = "on-demand"
)

// ParseActivationType converts s to an ActivationType. An empty string is
// AppStartup.
func ParseActivationType(s string) (ActivationType, error) {
	switch t := ActivationType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return AppStartup, nil
	case AppStartup, OnCommand, OnDemand:
		return t, nil
	default:
		return "", fmt.Errorf("unknown activation type %q", s)
	}
}

// ActivationPolicy governs when Activate runs.
type ActivationPolicy struct {
	Type ActivationType

	// Commands lists the command ids that trigger an OnCommand plugin.
	Commands []string
}

// Startup returns the policy for plugins activated on load.
func Startup() ActivationPolicy {
	return ActivationPolicy{Type: AppStartup}
}

// Triggers reports whether executing commandID should activate the plugin.
func (p ActivationPolicy) Triggers(commandID string) bool {
	return p.Type == OnCommand && slices.Contains(p.Commands, commandID)
}

// HandlerDefinition binds a handler to a command id.
type HandlerDefinition struct {
	CommandID string
	Handler   command.Handler

	// Context is passed back to the handler on every invocation.
	Context any
}

// Contributions are the registry entries a plugin declares.
type Contributions struct {
	Commands []command.Command
	Handlers []HandlerDefinition
	Menus    []menu.Item
	Regions  []layout.Region
	Views    []layout.View
}

// Empty reports whether c declares nothing.
func (c Contributions) Empty() bool {
	return len(c.Commands) == 0 && len(c.Handlers) == 0 && len(c.Menus) == 0 &&
		len(c.Regions) == 0 && len(c.Views) == 0
}

// Validate checks that p can be loaded. It returns ErrInvalidPlugin for a
// nil plugin, a typed nil pointer, or an empty identifier.
func Validate(p Plugin) error {
	if p == nil {
		return fmt.Errorf("%w: nil", ErrInvalidPlugin)
	}
	if rv := reflect.ValueOf(p); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return fmt.Errorf("%w: nil %T", ErrInvalidPlugin, p)
	}
	if strings.TrimSpace(p.ID()) == "" {
		return fmt.Errorf("%w: %T has an empty id", ErrInvalidPlugin, p)
	}
	return nil
}

// Base is an embeddable Plugin with default behavior: the configuration is
// its context, it contributes nothing, and it activates at startup.
type Base struct {
	Name string
}

// ID returns b.Name.
func (b Base) ID() string { return b.Name }

// Init returns cfg as the plugin context.
func (b Base) Init(cfg map[string]any) (any, error) { return cfg, nil }

// Contributions returns no contributions.
func (b Base) Contributions() Contributions { return Contributions{} }

// ActivationPolicy returns the startup policy.
func (b Base) ActivationPolicy() ActivationPolicy { return Startup() }

// Activate does nothing.
func (b Base) Activate(*AppContext) error { return nil }
