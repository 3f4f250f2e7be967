package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dshills/composer/internal/plugin"
)

// LoadPlugin adds p to the application.
//
// p is validated before anything changes; an invalid plugin yields
// plugin.ErrInvalidPlugin. Then p is appended to the plugin list, Init is
// called with pluginConfigs[id] and the result is stored in the application
// context, the contributions are registered, and p is activated if its
// policy is AppStartup. Loading the same id twice is allowed; the newer
// context replaces the older one. When a registry rejects a contribution
// the plugin is left in StateError and the contributions registered before
// the rejection are kept.
func (app *Application) LoadPlugin(p plugin.Plugin) error {
	if err := plugin.Validate(p); err != nil {
		return err
	}
	id := p.ID()
	log := app.logger.WithField("plugin", id)

	e := &entry{plugin: p, state: plugin.StateUnloaded}
	app.mu.Lock()
	app.plugins = append(app.plugins, e)
	app.mu.Unlock()

	pctx, err := p.Init(app.cfg.PluginConfig(id))
	if err != nil {
		app.setState(e, plugin.StateError, err)
		return &InitError{Plugin: id, Err: err}
	}
	app.context.SetPluginContext(id, pctx)

	if err := app.register(id, p.Contributions()); err != nil {
		app.setState(e, plugin.StateError, err)
		return err
	}
	app.setState(e, plugin.StateLoaded, nil)

	policy := p.ActivationPolicy()
	if app.metrics != nil {
		app.metrics.PluginLoaded(id, policy.Type)
	}
	log.Debug("loaded (%s)", policy.Type)

	if policy.Type != plugin.AppStartup {
		return nil
	}
	return app.activate(context.Background(), e)
}

// register adds contributions to the registries in a fixed order:
// commands, handlers, menus, regions, views. It stops at the first
// rejection; what was registered before it stays registered.
func (app *Application) register(id string, c plugin.Contributions) error {
	for _, cmd := range c.Commands {
		if err := app.commands.RegisterCommand(cmd); err != nil {
			return NewOperationError("register command", cmd.ID, err).WithContext(id)
		}
	}
	for _, h := range c.Handlers {
		if err := app.commands.RegisterHandler(h.CommandID, h.Handler, h.Context); err != nil {
			return NewOperationError("register handler", h.CommandID, err).WithContext(id)
		}
	}
	for _, item := range c.Menus {
		if _, err := app.menus.Register(item); err != nil {
			return NewOperationError("register menu", item.Label, err).WithContext(id)
		}
	}
	for _, r := range c.Regions {
		if err := app.layouts.RegisterRegion(r); err != nil {
			return NewOperationError("register region", r.ID, err).WithContext(id)
		}
	}
	for _, v := range c.Views {
		if err := app.layouts.RegisterView(v); err != nil {
			return NewOperationError("register view", v.ID, err).WithContext(id)
		}
	}
	return nil
}

// activate starts e unless it was already attempted. ctx is handed to
// plugins implementing plugin.ContextActivator.
func (app *Application) activate(ctx context.Context, e *entry) error {
	app.mu.Lock()
	if e.state != plugin.StateLoaded {
		app.mu.Unlock()
		return nil
	}
	e.state = plugin.StateActivating
	app.mu.Unlock()

	id := e.plugin.ID()
	start := time.Now()
	err := plugin.Activate(ctx, e.plugin, app.context)
	if app.metrics != nil {
		app.metrics.PluginActivated(id, time.Since(start), err)
	}
	if err != nil {
		app.setState(e, plugin.StateError, err)
		return NewOperationError("activate", id, err)
	}
	app.setState(e, plugin.StateActive, nil)
	app.logger.WithField("plugin", id).Debug("activated")
	return nil
}

// ActivatePlugin activates every loaded, inactive plugin with id. It is
// how OnDemand plugins are started; active plugins are left alone.
func (app *Application) ActivatePlugin(id string) error {
	entries := app.entries(func(e *entry) bool { return e.plugin.ID() == id })
	if len(entries) == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownPlugin, id)
	}
	for _, e := range entries {
		if err := app.activate(context.Background(), e); err != nil {
			return err
		}
	}
	return nil
}

// activateOnCommand runs before every command execution and activates the
// loaded OnCommand plugins that list commandID as a trigger.
func (app *Application) activateOnCommand(ctx context.Context, commandID string) error {
	pending := app.entries(func(e *entry) bool {
		return e.state == plugin.StateLoaded && e.plugin.ActivationPolicy().Triggers(commandID)
	})
	for _, e := range pending {
		app.logger.WithField("plugin", e.plugin.ID()).Info("activating on %s", commandID)
		if err := app.activate(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (app *Application) entries(match func(*entry) bool) []*entry {
	app.mu.RLock()
	defer app.mu.RUnlock()

	var out []*entry
	for _, e := range app.plugins {
		if match(e) {
			out = append(out, e)
		}
	}
	return out
}

func (app *Application) setState(e *entry, s plugin.State, err error) {
	app.mu.Lock()
	e.state = s
	e.err = err
	app.mu.Unlock()
}

// PluginError returns the error that put the most recent plugin with id
// into StateError, if any.
func (app *Application) PluginError(id string) error {
	app.mu.RLock()
	defer app.mu.RUnlock()

	for i := len(app.plugins) - 1; i >= 0; i-- {
		if app.plugins[i].plugin.ID() == id {
			return app.plugins[i].err
		}
	}
	return nil
}

// Close releases the plugins that implement io.Closer, most recently
// loaded first. A plugin loaded more than once is closed once per entry.
func (app *Application) Close() error {
	app.mu.RLock()
	entries := make([]*entry, len(app.plugins))
	copy(entries, app.plugins)
	app.mu.RUnlock()

	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		c, ok := entries[i].plugin.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, NewOperationError("close", entries[i].plugin.ID(), err))
		}
	}
	return errors.Join(errs...)
}

func entryName(i int, e any) string {
	if p, ok := e.(plugin.Plugin); ok && p != nil {
		return fmt.Sprintf("entry %d (%T)", i, p)
	}
	return fmt.Sprintf("entry %d (%v)", i, e)
}
