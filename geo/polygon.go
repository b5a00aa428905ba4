// Package geo provides geospatial utilities.
package geo

import (
	"fmt"
	"math"

	apperrors "github.com/civicmap/requestmap/pkg/errors"
)

// edgeEpsilon is the tolerance used when deciding that a point lies on an edge.
const edgeEpsilon = 1e-12

// Geometry is an areal region that points can be tested against.
type Geometry interface {
	// Contains reports whether p lies inside the region. Points exactly on
	// an edge, including hole edges, are inside.
	Contains(p Point) bool
	BoundingBox() BoundingBox
	// Validate returns an INVALID_GEOMETRY error for degenerate or
	// self-intersecting rings.
	Validate() error
	IsEmpty() bool
}

// Ring is a closed sequence of points: the first point equals the last.
type Ring []Point

// Polygon is an outer ring with optional holes. The zero value is the empty
// polygon, which contains nothing.
type Polygon struct {
	Outer Ring   `json:"outer"`
	Holes []Ring `json:"holes,omitempty"`
}

// MultiPolygon is a union of polygons.
type MultiPolygon []Polygon

// NewPolygon creates a polygon from an outer ring and holes, closing every
// ring that is not already closed.
func NewPolygon(outer []Point, holes ...[]Point) Polygon {
	p := Polygon{Outer: CloseRing(outer)}
	for _, h := range holes {
		p.Holes = append(p.Holes, CloseRing(h))
	}
	return p
}

// CloseRing returns a copy of points with the first point appended when the
// ring is open.
func CloseRing(points []Point) Ring {
	if len(points) == 0 {
		return nil
	}
	ring := make(Ring, len(points), len(points)+1)
	copy(ring, points)
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring
}

// IsClosed reports whether the first and last points are equal.
func (r Ring) IsClosed() bool {
	return len(r) > 0 && r[0] == r[len(r)-1]
}

// DistinctVertices returns the number of distinct vertices in the ring.
func (r Ring) DistinctVertices() int {
	seen := make(map[Point]struct{}, len(r))
	for _, p := range r {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// BoundingBox returns the bounding box of the ring.
func (r Ring) BoundingBox() BoundingBox {
	if len(r) == 0 {
		return BoundingBox{}
	}
	bb := pointBox(r[0])
	for _, pt := range r[1:] {
		bb = bb.Extend(pt)
	}
	return bb
}

// locate runs the ray casting test and reports separately whether p lies on
// one of the ring's edges.
func (r Ring) locate(p Point) (inside, onEdge bool) {
	n := len(r)
	if n < 3 {
		return false, false
	}

	j := n - 1
	for i := 0; i < n; i++ {
		pi := r[i]
		pj := r[j]

		if onSegment(p, pj, pi) {
			return true, true
		}

		if ((pi.Lat > p.Lat) != (pj.Lat > p.Lat)) &&
			(p.Lng < (pj.Lng-pi.Lng)*(p.Lat-pi.Lat)/(pj.Lat-pi.Lat)+pi.Lng) {
			inside = !inside
		}
		j = i
	}

	return inside, false
}

// validate checks a single ring.
func (r Ring) validate(name string) error {
	for _, pt := range r {
		if !pt.IsFinite() {
			return apperrors.InvalidGeometry(fmt.Sprintf("%s ring has a non-finite coordinate", name))
		}
	}
	if r.DistinctVertices() < 3 {
		return apperrors.InvalidGeometry(fmt.Sprintf("%s ring has fewer than 3 distinct vertices", name))
	}
	if r.selfIntersects() {
		return apperrors.InvalidGeometry(fmt.Sprintf("%s ring is self-intersecting", name))
	}
	return nil
}

// selfIntersects checks every pair of non-adjacent edges.
func (r Ring) selfIntersects() bool {
	pts := dedupeConsecutive(CloseRing(r))
	edges := len(pts) - 1
	for i := 0; i < edges; i++ {
		for j := i + 1; j < edges; j++ {
			if j == i+1 || (i == 0 && j == edges-1) {
				continue
			}
			if segmentsIntersect(pts[i], pts[i+1], pts[j], pts[j+1]) {
				return true
			}
		}
	}
	return false
}

// Contains checks if a point is inside the polygon. A point inside a hole is
// outside; a point on a hole's edge is inside. Rings unwrapped past the
// antimeridian are tested in their own longitude frame.
func (p Polygon) Contains(point Point) bool {
	if p.IsEmpty() {
		return false
	}

	inside, onEdge := p.Outer.locate(p.Outer.BoundingBox().Wrap(point))
	if onEdge {
		return true
	}
	if !inside {
		return false
	}

	for _, hole := range p.Holes {
		inHole, onHoleEdge := hole.locate(hole.BoundingBox().Wrap(point))
		if onHoleEdge {
			return true
		}
		if inHole {
			return false
		}
	}
	return true
}

// IsEmpty reports whether the polygon has no usable outer ring.
func (p Polygon) IsEmpty() bool {
	return len(p.Outer) < 3
}

// BoundingBox returns the bounding box of the outer ring.
func (p Polygon) BoundingBox() BoundingBox {
	return p.Outer.BoundingBox()
}

// Validate checks the outer ring and every hole.
func (p Polygon) Validate() error {
	if p.IsEmpty() {
		return apperrors.InvalidGeometry("polygon is empty")
	}
	if err := p.Outer.validate("outer"); err != nil {
		return err
	}
	for i, hole := range p.Holes {
		if err := hole.validate(fmt.Sprintf("hole %d", i)); err != nil {
			return err
		}
	}
	return nil
}

// Area calculates the approximate area of the polygon in square kilometers,
// holes subtracted. Uses the Shoelace formula with Earth's radius.
func (p Polygon) Area() float64 {
	if p.IsEmpty() {
		return 0
	}
	area := ringArea(p.Outer)
	for _, h := range p.Holes {
		area -= ringArea(h)
	}
	return math.Max(area, 0)
}

func ringArea(r Ring) float64 {
	n := len(r)
	if n < 3 {
		return 0
	}

	var area float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		xi := degreesToRadians(r[i].Lng)
		yi := degreesToRadians(r[i].Lat)
		xj := degreesToRadians(r[j].Lng)
		yj := degreesToRadians(r[j].Lat)

		area += xi*yj - xj*yi
	}

	area = math.Abs(area) / 2.0
	return area * EarthRadiusKm * EarthRadiusKm
}

// Contains reports whether any member polygon contains the point.
func (m MultiPolygon) Contains(point Point) bool {
	for _, p := range m {
		if p.BoundingBox().Contains(point) && p.Contains(point) {
			return true
		}
	}
	return false
}

// IsEmpty reports whether every member polygon is empty.
func (m MultiPolygon) IsEmpty() bool {
	for _, p := range m {
		if !p.IsEmpty() {
			return false
		}
	}
	return true
}

// BoundingBox returns the union of the member bounding boxes.
func (m MultiPolygon) BoundingBox() BoundingBox {
	var bb BoundingBox
	first := true
	for _, p := range m {
		if p.IsEmpty() {
			continue
		}
		if first {
			bb = p.BoundingBox()
			first = false
			continue
		}
		bb = bb.Union(p.BoundingBox())
	}
	return bb
}

// Validate validates every member polygon.
func (m MultiPolygon) Validate() error {
	if m.IsEmpty() {
		return apperrors.InvalidGeometry("multipolygon is empty")
	}
	for i, p := range m {
		if err := p.Validate(); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInvalidGeometry, fmt.Sprintf("polygon %d", i))
		}
	}
	return nil
}

// PointInPolygon tests p against g with edges counted as inside.
func PointInPolygon(p Point, g Geometry) bool {
	if g == nil {
		return false
	}
	return g.Contains(p)
}

// WorldPolygon returns the rectangle covering every valid coordinate.
func WorldPolygon() Polygon {
	return Polygon{Outer: worldRing()}
}

func worldRing() Ring {
	return Ring{
		{Lng: -180, Lat: -90},
		{Lng: 180, Lat: -90},
		{Lng: 180, Lat: 90},
		{Lng: -180, Lat: 90},
		{Lng: -180, Lat: -90},
	}
}

func onSegment(p, a, b Point) bool {
	cross := (b.Lng-a.Lng)*(p.Lat-a.Lat) - (b.Lat-a.Lat)*(p.Lng-a.Lng)
	if math.Abs(cross) > edgeEpsilon {
		return false
	}
	return p.Lng >= math.Min(a.Lng, b.Lng)-edgeEpsilon && p.Lng <= math.Max(a.Lng, b.Lng)+edgeEpsilon &&
		p.Lat >= math.Min(a.Lat, b.Lat)-edgeEpsilon && p.Lat <= math.Max(a.Lat, b.Lat)+edgeEpsilon
}

func orientation(a, b, c Point) int {
	v := (b.Lng-a.Lng)*(c.Lat-a.Lat) - (b.Lat-a.Lat)*(c.Lng-a.Lng)
	switch {
	case v > edgeEpsilon:
		return 1
	case v < -edgeEpsilon:
		return -1
	default:
		return 0
	}
}

func segmentsIntersect(p1, p2, p3, p4 Point) bool {
	o1 := orientation(p1, p2, p3)
	o2 := orientation(p1, p2, p4)
	o3 := orientation(p3, p4, p1)
	o4 := orientation(p3, p4, p2)

	if o1 != o2 && o3 != o4 {
		return true
	}

	// Collinear touching cases
	return (o1 == 0 && onSegment(p3, p1, p2)) ||
		(o2 == 0 && onSegment(p4, p1, p2)) ||
		(o3 == 0 && onSegment(p1, p3, p4)) ||
		(o4 == 0 && onSegment(p2, p3, p4))
}

func dedupeConsecutive(r Ring) Ring {
	if len(r) == 0 {
		return r
	}
	out := Ring{r[0]}
	for _, pt := range r[1:] {
		if pt != out[len(out)-1] {
			out = append(out, pt)
		}
	}
	return out
}
