package app

import (
	"github.com/dshills/composer/internal/command"
	"github.com/dshills/composer/internal/layout"
	"github.com/dshills/composer/internal/menu"
	"github.com/dshills/composer/internal/plugin"
)

// Ids of the built-in plugins. Their application context is the registry
// they manage, so other plugins reach the registries through the context:
//
//	reg, ok := plugin.ContextAs[*command.Registry](appCtx, app.CommandPluginID)
const (
	CommandPluginID = "command"
	LayoutPluginID  = "layout"
	MenuPluginID    = "menu"
)

// registryPlugin exposes one registry as a plugin.
type registryPlugin[R any] struct {
	plugin.Base
	registry R
}

func (p *registryPlugin[R]) Init(map[string]any) (any, error) {
	return p.registry, nil
}

// builtins returns the registry plugins in load order.
func (app *Application) builtins() []plugin.Plugin {
	return []plugin.Plugin{
		&registryPlugin[*command.Registry]{Base: plugin.Base{Name: CommandPluginID}, registry: app.commands},
		&registryPlugin[*layout.Registry]{Base: plugin.Base{Name: LayoutPluginID}, registry: app.layouts},
		&registryPlugin[*menu.Registry]{Base: plugin.Base{Name: MenuPluginID}, registry: app.menus},
	}
}
