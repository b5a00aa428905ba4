// Package region models the geographic selection that constrains which
// service requests are counted.
package region

import (
	"fmt"

	"github.com/civicmap/requestmap/pkg/geo"
)

// Kind identifies a family of named boundaries.
type Kind string

const (
	// KindNC is a neighborhood council boundary.
	KindNC Kind = "nc"
	// KindCC is a city council district.
	KindCC Kind = "cc"
)

// Kinds lists every boundary kind.
var Kinds = []Kind{KindNC, KindCC}

// ParseKind validates a kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindNC, KindCC:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown boundary kind %q", s)
	}
}

// Type is the region type a user selects from: an address circle or one of
// the boundary kinds.
type Type string

const (
	TypeAddress Type = "address"
	TypeNC      Type = "nc"
	TypeCC      Type = "cc"
)

// Kind returns the boundary kind for a boundary region type.
func (t Type) Kind() (Kind, bool) {
	switch t {
	case TypeNC:
		return KindNC, true
	case TypeCC:
		return KindCC, true
	default:
		return "", false
	}
}

// Filter is the active region selection. Exactly one of NoFilter,
// AddressCircle or NamedBoundary. The interface is sealed; use Accept to
// handle every variant.
type Filter interface {
	// Geometry returns the region to test requests against, or nil for
	// NoFilter.
	Geometry() geo.Geometry
	// Equal compares filters by value.
	Equal(other Filter) bool
	// Accept dispatches to the visitor method for the concrete variant.
	Accept(v Visitor)

	isFilter()
}

// Visitor handles each Filter variant. Adding a variant adds a method here,
// so every visitor stops compiling until it handles the new case.
type Visitor interface {
	VisitNone(NoFilter)
	VisitAddress(AddressCircle)
	VisitBoundary(NamedBoundary)
}

// NoFilter selects every request.
type NoFilter struct{}

func (NoFilter) isFilter() {}

// Geometry implements Filter.
func (NoFilter) Geometry() geo.Geometry { return nil }

// Accept implements Filter.
func (f NoFilter) Accept(v Visitor) { v.VisitNone(f) }

// Equal implements Filter.
func (NoFilter) Equal(other Filter) bool {
	_, ok := other.(NoFilter)
	return ok
}

// AddressCircle is a circle of RadiusMiles around Center. Its polygon is
// derived from the two parameters when the value is built and cannot be
// changed afterwards.
type AddressCircle struct {
	Center      geo.Point
	RadiusMiles float64

	polygon geo.Polygon
}

// NewAddressCircle builds the circle filter and its polygon.
func NewAddressCircle(center geo.Point, radiusMiles float64) AddressCircle {
	return AddressCircle{
		Center:      center,
		RadiusMiles: radiusMiles,
		polygon:     geo.BuildCircle(center, radiusMiles),
	}
}

func (AddressCircle) isFilter() {}

// Geometry implements Filter.
func (a AddressCircle) Geometry() geo.Geometry { return a.polygon }

// Polygon returns the circle polygon.
func (a AddressCircle) Polygon() geo.Polygon { return a.polygon }

// Mask returns the dimming mask around the circle.
func (a AddressCircle) Mask() geo.Polygon { return geo.BuildMask(a.polygon) }

// Accept implements Filter.
func (a AddressCircle) Accept(v Visitor) { v.VisitAddress(a) }

// Equal implements Filter. The polygon is derived, so center and radius
// decide equality.
func (a AddressCircle) Equal(other Filter) bool {
	o, ok := other.(AddressCircle)
	return ok && o.Center == a.Center && o.RadiusMiles == a.RadiusMiles
}

// NamedBoundary is a neighborhood council or council district taken from the
// static boundary dataset.
type NamedBoundary struct {
	Kind Kind
	ID   string

	geometry geo.Geometry
}

// NewNamedBoundary builds the filter for a catalog boundary.
func NewNamedBoundary(b Boundary) NamedBoundary {
	return NamedBoundary{Kind: b.Kind, ID: b.ID, geometry: b.Geometry}
}

func (NamedBoundary) isFilter() {}

// Geometry implements Filter.
func (b NamedBoundary) Geometry() geo.Geometry { return b.geometry }

// Accept implements Filter.
func (b NamedBoundary) Accept(v Visitor) { v.VisitBoundary(b) }

// Equal implements Filter. Boundary geometry is fixed per id.
func (b NamedBoundary) Equal(other Filter) bool {
	o, ok := other.(NamedBoundary)
	return ok && o.Kind == b.Kind && o.ID == b.ID
}

// Equal compares two possibly nil filters by value. A nil filter equals
// NoFilter.
func Equal(a, b Filter) bool {
	if a == nil {
		a = NoFilter{}
	}
	if b == nil {
		b = NoFilter{}
	}
	return a.Equal(b)
}

// Describe returns a short label for logs.
func Describe(f Filter) string {
	if f == nil {
		f = NoFilter{}
	}
	d := describer{}
	f.Accept(&d)
	return d.label
}

type describer struct{ label string }

func (d *describer) VisitNone(NoFilter) { d.label = "none" }

func (d *describer) VisitAddress(a AddressCircle) {
	d.label = fmt.Sprintf("address(%.6f,%.6f r=%gmi)", a.Center.Lat, a.Center.Lng, a.RadiusMiles)
}

func (d *describer) VisitBoundary(b NamedBoundary) {
	d.label = fmt.Sprintf("%s(%s)", b.Kind, b.ID)
}
