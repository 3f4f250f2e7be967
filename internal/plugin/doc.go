// Package plugin defines the contract between the composer shell and the
// plugins it loads.
//
// A plugin is any value implementing Plugin. The shell drives it through a
// fixed lifecycle:
//
//	Validate -> Init(pluginConfigs[id]) -> Contributions -> Activate
//
// Init returns the plugin's private context, which the shell stores in the
// shared AppContext under the plugin id. Contributions are read once and
// registered into the command, layout and menu registries. Activate runs at
// load time only for the AppStartup policy; OnCommand plugins are activated
// by the first execution of a trigger command and OnDemand plugins on
// request.
//
// # Configuration entries
//
// The app.plugins list may hold Plugin values, kind names, or descriptor
// maps. A Catalog maps kinds to factories:
//
//	cat := plugin.NewCatalog()
//	cat.Register("palette", palette.Factory)
//	cat.Register("lua", lua.Factory())
//
//	p, err := cat.Resolve(map[string]any{"kind": "lua", "path": "plugins/outline"})
//
// # Scripted plugins
//
// A Lua plugin is a single .lua file or a directory:
//
//	plugins/outline/
//	├── plugin.json      # Manifest (optional)
//	└── init.lua         # Entry point
//
// The manifest may declare the activation policy, commands and menus, and
// default configuration values:
//
//	{
//	  "name": "outline",
//	  "version": "1.0.0",
//	  "main": "init.lua",
//	  "activation": {"type": "on-command", "commands": ["outline.show"]},
//	  "commands": [{"id": "outline.show", "title": "Show Outline"}]
//	}
package plugin
