// Package history records recently executed commands in most-recently-used
// order, either in memory or persisted in a bbolt file.
package history

// DefaultMaxItems is the capacity used when a non-positive size is given.
const DefaultMaxItems = 100

// History tracks recently executed commands.
type History interface {
	// Add records an execution, moving id to the front.
	Add(id string) error

	// Recent returns up to limit ids, most recent first.
	// A non-positive limit returns everything.
	Recent(limit int) ([]string, error)

	// Clear removes all entries.
	Clear() error
}
