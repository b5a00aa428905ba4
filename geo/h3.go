// Package geo provides geospatial utilities including H3 hexagonal indexing.
package geo

import (
	"sort"

	"github.com/uber/h3-go/v4"
)

// H3Resolution defines the H3 resolution levels.
// Resolution 7: ~5.16 km² average hexagon area (~1.22 km edge)
// Resolution 8: ~0.74 km² average hexagon area (~0.46 km edge)
// Resolution 9: ~0.11 km² average hexagon area (~0.17 km edge)
type H3Resolution int

const (
	// H3ResolutionCity is for city-level operations (resolution 7)
	H3ResolutionCity H3Resolution = 7
	// H3ResolutionNeighborhood is for neighborhood-level operations (resolution 8)
	H3ResolutionNeighborhood H3Resolution = 8
	// H3ResolutionBlock is for block-level operations (resolution 9)
	H3ResolutionBlock H3Resolution = 9
)

// H3Index wraps the H3 functions used for bucketing requests.
type H3Index struct {
	resolution int
}

// NewH3Index creates a new H3 indexer with the specified resolution.
func NewH3Index(resolution H3Resolution) *H3Index {
	return &H3Index{
		resolution: int(resolution),
	}
}

// LatLngToCell converts a lat/lng point to an H3 cell.
func (h *H3Index) LatLngToCell(p Point) h3.Cell {
	return h3.LatLngToCell(h3.LatLng{Lat: p.Lat, Lng: p.Lng}, h.resolution)
}

// GetCellString returns the H3 cell string for a point.
func (h *H3Index) GetCellString(p Point) string {
	return h.LatLngToCell(p).String()
}

// cellBucket holds the requests that fall in one H3 cell. bounds covers the
// bucket's own points, so a bucket whose bounds miss the region is skipped
// without testing any member.
type cellBucket struct {
	cell    string
	bounds  BoundingBox
	members []int
}

// H3Searcher buckets a fixed point set by H3 cell and prunes whole cells
// against the query region's bounding box.
type H3Searcher struct {
	h3Index *H3Index
	points  []PointFeature
	buckets []*cellBucket
}

// NewH3Searcher indexes points at the given resolution. Points with
// non-finite coordinates are never returned.
func NewH3Searcher(points []PointFeature, resolution H3Resolution) *H3Searcher {
	s := &H3Searcher{
		h3Index: NewH3Index(resolution),
		points:  points,
	}

	byCell := make(map[string]*cellBucket)
	for i, f := range points {
		if !f.Point.IsFinite() {
			continue
		}
		cell := s.h3Index.GetCellString(f.Point)
		b, ok := byCell[cell]
		if !ok {
			b = &cellBucket{cell: cell, bounds: pointBox(f.Point)}
			byCell[cell] = b
			s.buckets = append(s.buckets, b)
		}
		b.bounds = b.bounds.Extend(f.Point)
		b.members = append(b.members, i)
	}

	return s
}

// CellCount returns the number of occupied cells.
func (s *H3Searcher) CellCount() int {
	return len(s.buckets)
}

// Within implements Searcher.
func (s *H3Searcher) Within(region Geometry) ([]PointFeature, error) {
	if region == nil {
		return PointsWithinGeo(nil, region)
	}
	if err := region.Validate(); err != nil {
		return nil, err
	}

	bb := region.BoundingBox()
	var hits []int
	for _, b := range s.buckets {
		if !b.bounds.Intersects(bb) {
			continue
		}
		for _, i := range b.members {
			pt := s.points[i].Point
			if bb.Contains(pt) && region.Contains(pt) {
				hits = append(hits, i)
			}
		}
	}

	sort.Ints(hits)
	result := make([]PointFeature, len(hits))
	for k, i := range hits {
		result[k] = s.points[i]
	}
	return result, nil
}
