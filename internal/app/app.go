// Package app is the composer application shell. It owns the configuration
// snapshot, the built-in registries and the plugin list, and drives every
// plugin through init, contribution discovery and activation.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/dshills/composer/internal/command"
	"github.com/dshills/composer/internal/command/history"
	"github.com/dshills/composer/internal/config"
	"github.com/dshills/composer/internal/layout"
	"github.com/dshills/composer/internal/menu"
	"github.com/dshills/composer/internal/plugin"
)

// Preloader is the startup loading indicator dismissed by Render.
type Preloader interface {
	Show() error
	Hide() error
}

// Metrics receives shell and command events.
type Metrics interface {
	command.Observer
	PluginLoaded(id string, policy plugin.ActivationType)
	PluginActivated(id string, elapsed time.Duration, err error)
}

// Application is the plugin host.
type Application struct {
	mu      sync.RWMutex
	cfg     *config.Config
	plugins []*entry
	context *plugin.AppContext

	commands *command.Registry
	layouts  *layout.Registry
	menus    *menu.Registry

	catalog   *plugin.Catalog
	logger    *Logger
	preloader Preloader
	metrics   Metrics

	renderOnce sync.Once
	renderErr  error
}

// entry is one loaded plugin. The same plugin may be loaded more than once;
// every load gets its own entry.
type entry struct {
	plugin plugin.Plugin
	state  plugin.State
	err    error
}

type options struct {
	logger    *Logger
	catalog   *plugin.Catalog
	preloader Preloader
	metrics   Metrics
	history   history.History
}

// Option configures an Application.
type Option func(*options)

// WithLogger sets the logger. By default a logger at the configured
// logging.level writes to stderr.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithCatalog resolves app.plugins entries that are not Plugin values.
func WithCatalog(c *plugin.Catalog) Option {
	return func(o *options) {
		o.catalog = c
	}
}

// WithPreloader shows p while plugins load. It is hidden by Render.
// app.preloader = false disables it.
func WithPreloader(p Preloader) Option {
	return func(o *options) {
		o.preloader = p
	}
}

// WithMetrics reports plugin and command events to m.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithHistory records executed commands in h instead of an in-memory
// history sized by history.size.
func WithHistory(h history.History) Option {
	return func(o *options) {
		o.history = h
	}
}

// New creates the application shell.
//
// cfg is read-only for the life of the application; nil means an empty
// configuration. The built-in command, layout and menu plugins are loaded
// first, then the entries of app.plugins in declared order. An entry that
// cannot be resolved or loaded aborts New.
func New(cfg *config.Config, opts ...Option) (*Application, error) {
	if cfg == nil {
		cfg = config.Empty()
	}
	settings := config.ResolveAppSettings(cfg)

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		lc := DefaultLoggerConfig()
		lc.Level = ParseLogLevel(settings.LogLevel)
		lc.Prefix = settings.Name
		o.logger = NewLogger(lc)
	}
	if o.catalog == nil {
		o.catalog = plugin.NewCatalog()
	}
	if o.history == nil {
		o.history = history.NewMemory(settings.HistorySize)
	}

	regOpts := []command.Option{command.WithHistory(o.history)}
	if o.metrics != nil {
		regOpts = append(regOpts, command.WithObserver(o.metrics))
	}

	app := &Application{
		cfg:      cfg,
		context:  plugin.NewAppContext(),
		commands: command.NewRegistry(regOpts...),
		layouts:  layout.NewRegistry(),
		menus:    menu.NewRegistry(),
		catalog:  o.catalog,
		logger:   o.logger.WithComponent("shell"),
		metrics:  o.metrics,
	}
	if settings.Preloader {
		app.preloader = o.preloader
	}
	app.commands.OnBeforeExecute(app.activateOnCommand)

	if app.preloader != nil {
		if err := app.preloader.Show(); err != nil {
			app.logger.Warn("preloader: %v", err)
		}
	}

	if err := app.load(settings.Plugins); err != nil {
		app.abort()
		return nil, err
	}

	app.logger.Debug("loaded %d plugins", len(app.Plugins()))
	return app, nil
}

// load loads the built-in plugins, then the configured entries in order.
func (app *Application) load(entries []any) error {
	for _, p := range app.builtins() {
		if err := app.LoadPlugin(p); err != nil {
			return err
		}
	}

	for i, e := range entries {
		p, err := app.catalog.Resolve(e)
		if err != nil {
			return NewOperationError("resolve", config.PathAppPlugins, err).
				WithContext(entryName(i, e))
		}
		if err := app.LoadPlugin(p); err != nil {
			return err
		}
	}
	return nil
}

// abort releases what a failed New acquired: the preloader is hidden and
// the plugins loaded so far are closed.
func (app *Application) abort() {
	app.renderOnce.Do(func() {
		if app.preloader != nil {
			app.renderErr = app.preloader.Hide()
		}
	})
	if app.renderErr != nil {
		app.logger.Warn("preloader: %v", app.renderErr)
	}
	if err := app.Close(); err != nil {
		app.logger.Warn("close after failed start: %v", err)
	}
}

// Config returns the configuration snapshot.
func (app *Application) Config() *config.Config { return app.cfg }

// Context returns the shared application context.
func (app *Application) Context() *plugin.AppContext { return app.context }

// Commands returns the command registry.
func (app *Application) Commands() *command.Registry { return app.commands }

// Layouts returns the layout registry.
func (app *Application) Layouts() *layout.Registry { return app.layouts }

// Menus returns the menu registry.
func (app *Application) Menus() *menu.Registry { return app.menus }

// Logger returns the shell logger.
func (app *Application) Logger() *Logger { return app.logger }

// Plugins returns the loaded plugins in load order, duplicates included.
func (app *Application) Plugins() []plugin.Plugin {
	app.mu.RLock()
	defer app.mu.RUnlock()

	out := make([]plugin.Plugin, len(app.plugins))
	for i, e := range app.plugins {
		out[i] = e.plugin
	}
	return out
}

// PluginState returns the state of the most recently loaded plugin with id.
func (app *Application) PluginState(id string) plugin.State {
	app.mu.RLock()
	defer app.mu.RUnlock()

	for i := len(app.plugins) - 1; i >= 0; i-- {
		if app.plugins[i].plugin.ID() == id {
			return app.plugins[i].state
		}
	}
	return plugin.StateUnloaded
}

// Execute runs a command. On-command plugins triggered by id are activated
// before its handlers run.
func (app *Application) Execute(ctx context.Context, id string, args map[string]any) error {
	return app.commands.Execute(ctx, id, args)
}

// Render marks startup activation as complete and dismisses the preloader.
// Calls after the first return the first result.
func (app *Application) Render() error {
	app.renderOnce.Do(func() {
		if app.preloader != nil {
			app.renderErr = app.preloader.Hide()
		}
		app.logger.Debug("rendered")
	})
	return app.renderErr
}
