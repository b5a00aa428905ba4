package region

import (
	"sync"

	apperrors "github.com/civicmap/requestmap/pkg/errors"
	"github.com/civicmap/requestmap/pkg/geo"
)

// Model holds the region type tab and the active filter for one map
// session. It is safe for concurrent use, although a session normally drives
// it from a single goroutine.
type Model struct {
	mu         sync.RWMutex
	boundaries *BoundarySet
	regionType Type
	filter     Filter
}

// NewModel returns a model on the given region type with no filter.
func NewModel(boundaries *BoundarySet, initial Type) *Model {
	return &Model{
		boundaries: boundaries,
		regionType: initial,
		filter:     NoFilter{},
	}
}

// Filter returns the active filter.
func (m *Model) Filter() Filter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filter
}

// RegionType returns the active region type.
func (m *Model) RegionType() Type {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.regionType
}

// SetRegionType switches the region type tab. The filter always goes back
// to NoFilter, even when the type does not change.
func (m *Model) SetRegionType(t Type) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regionType = t
	m.filter = NoFilter{}
}

// SelectAddressRegion replaces the filter with a circle around center. A
// nil center clears the filter.
func (m *Model) SelectAddressRegion(center *geo.Point, radiusMiles float64) Filter {
	var f Filter = NoFilter{}
	if center != nil {
		f = NewAddressCircle(*center, radiusMiles)
	}
	m.mu.Lock()
	m.filter = f
	m.mu.Unlock()
	return f
}

// SelectNamedBoundary replaces the filter with the boundary of the given
// kind and id. On error the filter is left unchanged.
func (m *Model) SelectNamedBoundary(kind Kind, id string) (Filter, error) {
	b, err := m.boundaries.Lookup(kind, id)
	if err != nil {
		return nil, err
	}
	if b.Geometry == nil || b.Geometry.IsEmpty() {
		return nil, apperrors.InvalidGeometry(string(kind) + " boundary " + id + " has no geometry")
	}

	f := NewNamedBoundary(b)
	m.mu.Lock()
	m.filter = f
	m.mu.Unlock()
	return f, nil
}

// Reset clears the filter and keeps the region type.
func (m *Model) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = NoFilter{}
}

// Boundaries returns the catalog the model resolves ids against.
func (m *Model) Boundaries() *BoundarySet {
	return m.boundaries
}
