package history

import "sync"

// Memory is an in-memory History.
type Memory struct {
	mu       sync.Mutex
	items    []string
	maxItems int
}

// NewMemory creates a command history with the given capacity.
func NewMemory(maxItems int) *Memory {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &Memory{
		items:    make([]string, 0, maxItems),
		maxItems: maxItems,
	}
}

// Add records a command execution.
// If the command was already in history, it is moved to the front.
func (h *Memory) Add(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, item := range h.items {
		if item == id {
			h.items = append(h.items[:i], h.items[i+1:]...)
			break
		}
	}

	h.items = append([]string{id}, h.items...)

	if len(h.items) > h.maxItems {
		h.items = h.items[:h.maxItems]
	}
	return nil
}

// Recent returns the most recently used command IDs.
func (h *Memory) Recent(limit int) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if limit <= 0 || limit > len(h.items) {
		limit = len(h.items)
	}

	result := make([]string, limit)
	copy(result, h.items[:limit])
	return result, nil
}

// Position returns the position of a command in history (0 = most recent).
// Returns -1 if not found.
func (h *Memory) Position(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, item := range h.items {
		if item == id {
			return i
		}
	}
	return -1
}

// Clear removes all history entries.
func (h *Memory) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = h.items[:0]
	return nil
}

// Len returns the number of items in history.
func (h *Memory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.items)
}
