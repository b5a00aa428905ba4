// Package interaction drives the map layers that let a user pick a region:
// the draggable address circle and the clickable boundary layers.
package interaction

import (
	"sort"
	"sync"

	"github.com/civicmap/requestmap/pkg/geo"
)

// Cursor is the pointer affordance shown over the map.
type Cursor string

const (
	CursorDefault  Cursor = ""
	CursorMove     Cursor = "move"
	CursorGrab     Cursor = "grab"
	CursorGrabbing Cursor = "grabbing"
	CursorPointer  Cursor = "pointer"
)

// Source and layer names of the address circle.
const (
	SourceShed     = "shed"
	SourceShedMask = "shed-mask"

	LayerShedBorder   = "shed-border"
	LayerShedFill     = "shed-fill"
	LayerShedMaskFill = "shed-mask-fill"
)

// FitPadding is the padding in pixels used when zooming to a selection.
const FitPadding = 50

// Surface is the rendering collaborator the controllers draw on.
type Surface interface {
	// SetSourceData replaces the geometry of a named source. A nil
	// geometry empties it.
	SetSourceData(source string, g geo.Geometry)
	SetLayerVisibility(layer string, visible bool)
	SetCursor(c Cursor)
	FitBounds(bb geo.BoundingBox, padding int)
	SetFeatureSelected(source, id string, selected bool)
}

// Scene is an in-memory Surface. It keeps the last state written by the
// controllers so a remote client can render it.
type Scene struct {
	mu       sync.RWMutex
	sources  map[string]geo.Geometry
	visible  map[string]bool
	selected map[string]map[string]bool
	cursor   Cursor
	viewport *Viewport
}

// Viewport is the last fit-bounds request.
type Viewport struct {
	Bounds  geo.BoundingBox `json:"bounds"`
	Padding int             `json:"padding"`
}

// NewScene creates an empty scene.
func NewScene() *Scene {
	return &Scene{
		sources:  make(map[string]geo.Geometry),
		visible:  make(map[string]bool),
		selected: make(map[string]map[string]bool),
	}
}

// SetSourceData implements Surface.
func (s *Scene) SetSourceData(source string, g geo.Geometry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g == nil {
		delete(s.sources, source)
		return
	}
	s.sources[source] = g
}

// SetLayerVisibility implements Surface.
func (s *Scene) SetLayerVisibility(layer string, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible[layer] = visible
}

// SetCursor implements Surface.
func (s *Scene) SetCursor(c Cursor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = c
}

// FitBounds implements Surface.
func (s *Scene) FitBounds(bb geo.BoundingBox, padding int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport = &Viewport{Bounds: bb, Padding: padding}
}

// SetFeatureSelected implements Surface.
func (s *Scene) SetFeatureSelected(source, id string, selected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.selected[source]
	if !ok {
		m = make(map[string]bool)
		s.selected[source] = m
	}
	if selected {
		m[id] = true
	} else {
		delete(m, id)
	}
}

// Source returns the geometry of a source, or nil if it is empty.
func (s *Scene) Source(name string) geo.Geometry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sources[name]
}

// LayerVisible reports whether a layer was last set visible.
func (s *Scene) LayerVisible(layer string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visible[layer]
}

// Cursor returns the current cursor.
func (s *Scene) Cursor() Cursor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}

// Viewport returns the last fit-bounds request, if any.
func (s *Scene) Viewport() *Viewport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.viewport == nil {
		return nil
	}
	v := *s.viewport
	return &v
}

// Selected returns the ids marked selected in a source, sorted.
func (s *Scene) Selected(source string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.selected[source]))
	for id := range s.selected[source] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Sources returns a copy of every non-empty source.
func (s *Scene) Sources() map[string]geo.Geometry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]geo.Geometry, len(s.sources))
	for k, v := range s.sources {
		out[k] = v
	}
	return out
}

// Layers returns a copy of the layer visibility map.
func (s *Scene) Layers() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.visible))
	for k, v := range s.visible {
		out[k] = v
	}
	return out
}
