// Package config provides the immutable configuration snapshot handed to the
// composer application shell.
//
// A Config is built once, either from an in-memory map with New or from
// files and the environment with Load, and is read-only from then on:
// every accessor returns deep copies of maps and slices, and Set always
// fails with ErrReadOnly. The host environment owns the snapshot; the shell
// only reads it.
//
// # Recognised settings
//
//	[app]
//	name = "composer"          # display name
//	plugins = ["palette"]      # plugins to load, in order
//	preloader = true           # show the startup loading indicator
//
//	[pluginConfigs.palette]    # passed verbatim to the plugin's Init
//	limit = 20
//
//	[history]
//	path = ""                  # bbolt file for command history; empty = memory
//	size = 100
//
//	[logging]
//	level = "info"
//
// app.plugins may also be a string naming another path whose value is the
// plugin list, e.g. plugins = "profiles.default.plugins".
package config
