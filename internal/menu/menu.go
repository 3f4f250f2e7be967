// Package menu stores menu entries contributed by plugins.
//
// Contributed items carry no identity of their own. The registry assigns
// each one a UUID when it is registered, so two plugins may contribute
// identical items without clashing.
package menu

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrInvalidItem is returned for an item with neither a label nor a command.
var ErrInvalidItem = errors.New("invalid menu item")

// Item is a menu entry. Parent names the menu it belongs to, "" for the
// top-level bar.
type Item struct {
	ID      string // optional, lets other items use this one as Parent
	Label   string
	Command string
	Parent  string
	Group   string
	Order   int
	When    string // context expression, evaluated by the renderer
}

// Entry is a registered Item with the identity assigned by the registry.
type Entry struct {
	Key uuid.UUID
	Item
}

// Registry stores menu entries.
type Registry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]record
	seq     uint64
}

// record keeps the registration sequence that breaks ordering ties.
type record struct {
	Entry
	seq uint64
}

// NewRegistry creates an empty menu registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uuid.UUID]record)}
}

// Register adds item and returns its key.
func (r *Registry) Register(item Item) (uuid.UUID, error) {
	if strings.TrimSpace(item.Label) == "" && strings.TrimSpace(item.Command) == "" {
		return uuid.Nil, fmt.Errorf("%w: needs a label or a command", ErrInvalidItem)
	}

	key := uuid.New()
	r.mu.Lock()
	r.seq++
	r.entries[key] = record{Entry: Entry{Key: key, Item: item}, seq: r.seq}
	r.mu.Unlock()
	return key, nil
}

// Entry returns the entry registered under key.
func (r *Registry) Entry(key uuid.UUID) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.entries[key]
	return rec.Entry, ok
}

// Children returns the items under parent ordered by group, order, then
// label. Items equal on all three keep their registration order.
func (r *Registry) Children(parent string) []Entry {
	recs := r.collect(func(e Entry) bool { return e.Parent == parent })
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if a.Label != b.Label {
			return a.Label < b.Label
		}
		return a.seq < b.seq
	})

	out := make([]Entry, len(recs))
	for i, rec := range recs {
		out[i] = rec.Entry
	}
	return out
}

// ForCommand returns the keys of entries that invoke commandID in
// registration order.
func (r *Registry) ForCommand(commandID string) []uuid.UUID {
	recs := r.collect(func(e Entry) bool { return e.Command == commandID })
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })

	out := make([]uuid.UUID, len(recs))
	for i, rec := range recs {
		out[i] = rec.Key
	}
	return out
}

func (r *Registry) collect(match func(Entry) bool) []record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []record
	for _, rec := range r.entries {
		if match(rec.Entry) {
			out = append(out, rec)
		}
	}
	return out
}

// Remove deletes the entry registered under key.
func (r *Registry) Remove(key uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[key]; !ok {
		return false
	}
	delete(r.entries, key)
	return true
}

// Count returns the number of registered entries.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
