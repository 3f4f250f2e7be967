// Package lua runs composer plugins written in Lua.
//
// It wraps gopher-lua with a sandboxed State, a Bridge for converting
// values, and a Plugin type that reads a script's declarations and exposes
// them through the plugin.Plugin contract.
//
//	p, err := lua.Load("plugins/outline")
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
// Scripts see the base, string, table and math libraries. io, os and debug
// are not opened, the chunk loaders are removed, and require only resolves
// the standard modules and the host module:
//
//	local composer = require("composer")
//	print(composer.id())
//	local cmd = composer.context("command")
//
// Every call into a script runs under a deadline (DefaultExecutionTimeout
// unless configured with WithTimeout); a script that overruns it fails
// with ErrExecutionTimeout.
package lua
