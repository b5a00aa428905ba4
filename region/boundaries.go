package region

import (
	"sort"

	apperrors "github.com/civicmap/requestmap/pkg/errors"
	"github.com/civicmap/requestmap/pkg/geo"
)

// Boundary is one named region from the static boundary dataset.
type Boundary struct {
	Kind     Kind
	ID       string
	Name     string
	URL      string
	Geometry geo.Geometry
}

// BoundarySet is the read-only boundary catalog. It is built once at startup
// and shared by every session without locking.
type BoundarySet struct {
	byKind  map[Kind]map[string]Boundary
	ordered map[Kind][]string
}

// NewBoundarySet indexes boundaries by kind and id. A later entry with the
// same kind and id replaces an earlier one.
func NewBoundarySet(boundaries ...Boundary) *BoundarySet {
	s := &BoundarySet{
		byKind:  make(map[Kind]map[string]Boundary),
		ordered: make(map[Kind][]string),
	}
	for _, b := range boundaries {
		m, ok := s.byKind[b.Kind]
		if !ok {
			m = make(map[string]Boundary)
			s.byKind[b.Kind] = m
		}
		if _, dup := m[b.ID]; !dup {
			s.ordered[b.Kind] = append(s.ordered[b.Kind], b.ID)
		}
		m[b.ID] = b
	}
	return s
}

// Lookup returns the boundary with the given kind and id.
func (s *BoundarySet) Lookup(kind Kind, id string) (Boundary, error) {
	if s != nil {
		if b, ok := s.byKind[kind][id]; ok {
			return b, nil
		}
	}
	return Boundary{}, apperrors.UnknownRegion(string(kind), id)
}

// IDs returns the boundary ids of a kind in load order.
func (s *BoundarySet) IDs(kind Kind) []string {
	if s == nil {
		return nil
	}
	ids := make([]string, len(s.ordered[kind]))
	copy(ids, s.ordered[kind])
	return ids
}

// Len returns the number of boundaries of a kind.
func (s *BoundarySet) Len(kind Kind) int {
	if s == nil {
		return 0
	}
	return len(s.byKind[kind])
}

// Containing returns the boundary of the given kind under point. When
// boundaries overlap the lowest id in sort order wins, so the answer is
// stable across loads.
func (s *BoundarySet) Containing(kind Kind, point geo.Point) (Boundary, bool) {
	if s == nil {
		return Boundary{}, false
	}
	var hits []string
	for id, b := range s.byKind[kind] {
		if b.Geometry == nil {
			continue
		}
		if b.Geometry.BoundingBox().Contains(point) && geo.PointInPolygon(point, b.Geometry) {
			hits = append(hits, id)
		}
	}
	if len(hits) == 0 {
		return Boundary{}, false
	}
	sort.Strings(hits)
	return s.byKind[kind][hits[0]], true
}

// Extent returns the box covering every boundary of a kind. It is the
// initial view of the map.
func (s *BoundarySet) Extent(kind Kind) (geo.BoundingBox, error) {
	if s == nil || len(s.byKind[kind]) == 0 {
		return geo.BoundingBox{}, apperrors.EmptyInput("no " + string(kind) + " boundaries loaded")
	}
	var bb geo.BoundingBox
	found := false
	for _, id := range s.ordered[kind] {
		g := s.byKind[kind][id].Geometry
		if g == nil || g.IsEmpty() {
			continue
		}
		if !found {
			bb = g.BoundingBox()
			found = true
			continue
		}
		bb = bb.Union(g.BoundingBox())
	}
	if !found {
		return geo.BoundingBox{}, apperrors.EmptyInput("no " + string(kind) + " boundary has geometry")
	}
	return bb, nil
}
