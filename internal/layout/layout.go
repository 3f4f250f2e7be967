// Package layout keeps the regions of the composer window and the views
// plugins place inside them.
package layout

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Errors returned by the registry.
var (
	ErrInvalid   = errors.New("invalid layout contribution")
	ErrDuplicate = errors.New("layout id already registered")
)

// Placement is where a region sits in the window.
type Placement string

// Known placements, in display order.
const (
	PlacementLeft   Placement = "left"
	PlacementCenter Placement = "center"
	PlacementRight  Placement = "right"
	PlacementBottom Placement = "bottom"
)

func (p Placement) rank() int {
	switch p {
	case PlacementLeft:
		return 0
	case PlacementCenter, "":
		return 1
	case PlacementRight:
		return 2
	case PlacementBottom:
		return 3
	default:
		return 4
	}
}

// Valid reports whether p is one of the known placements.
// The zero value counts as center.
func (p Placement) Valid() bool {
	return p.rank() < 4
}

// Region is a named area of the window.
type Region struct {
	ID        string
	Title     string
	Placement Placement
	Order     int
}

// View is a panel contributed into a region.
type View struct {
	ID     string
	Region string
	Title  string
	Order  int
}

// Registry stores regions and views.
type Registry struct {
	mu      sync.RWMutex
	regions map[string]Region
	views   map[string]View
}

// NewRegistry creates an empty layout registry.
func NewRegistry() *Registry {
	return &Registry{
		regions: make(map[string]Region),
		views:   make(map[string]View),
	}
}

// RegisterRegion adds a region.
func (r *Registry) RegisterRegion(region Region) error {
	if strings.TrimSpace(region.ID) == "" {
		return fmt.Errorf("%w: region without id", ErrInvalid)
	}
	if !region.Placement.Valid() {
		return fmt.Errorf("%w: region %s has unknown placement %q", ErrInvalid, region.ID, region.Placement)
	}
	if region.Placement == "" {
		region.Placement = PlacementCenter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.regions[region.ID]; exists {
		return fmt.Errorf("%w: region %s", ErrDuplicate, region.ID)
	}
	r.regions[region.ID] = region
	return nil
}

// RegisterView adds a view. The region does not have to exist yet; the view
// shows up in Views once it does.
func (r *Registry) RegisterView(view View) error {
	if strings.TrimSpace(view.ID) == "" {
		return fmt.Errorf("%w: view without id", ErrInvalid)
	}
	if strings.TrimSpace(view.Region) == "" {
		return fmt.Errorf("%w: view %s has no region", ErrInvalid, view.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.views[view.ID]; exists {
		return fmt.Errorf("%w: view %s", ErrDuplicate, view.ID)
	}
	r.views[view.ID] = view
	return nil
}

// Region returns the region with id.
func (r *Registry) Region(id string) (Region, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	region, ok := r.regions[id]
	return region, ok
}

// Regions returns all regions sorted by placement, then order, then id.
func (r *Registry) Regions() []Region {
	r.mu.RLock()
	out := make([]Region, 0, len(r.regions))
	for _, region := range r.regions {
		out = append(out, region)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Placement.rank() != b.Placement.rank() {
			return a.Placement.rank() < b.Placement.rank()
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID < b.ID
	})
	return out
}

// Views returns the views of a registered region sorted by order, then id.
// It returns nil for an unknown region.
func (r *Registry) Views(regionID string) []View {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.regions[regionID]; !ok {
		return nil
	}
	var out []View
	for _, v := range r.views {
		if v.Region == regionID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Orphans returns the ids of views whose region is not registered.
func (r *Registry) Orphans() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for id, v := range r.views {
		if _, ok := r.regions[v.Region]; !ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
