// Package command holds the composer's command registry.
//
// A command is a named action ("editor.save", "palette.list") described by a
// Command definition. Any number of handlers can be bound to a command id,
// before or after the definition itself is registered; executing the command
// runs every bound handler in the order it was registered, passing the
// invocation context supplied at registration time.
package command
