// Package geo provides the geometry kernel and spatial predicates used by the
// request map: geodesic circles, polygons with holes, point-in-polygon tests
// and point searches over request collections.
package geo

import (
	"math"
)

const (
	// EarthRadiusKm is the Earth's radius in kilometers.
	EarthRadiusKm = 6371.0
	// EarthRadiusMiles is the Earth's radius in miles.
	EarthRadiusMiles = 3958.8
	// KmPerMile converts miles to kilometers.
	KmPerMile = 1.609344
)

// Point represents a geographic coordinate.
type Point struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// IsValid checks if the point has valid coordinates.
func (p Point) IsValid() bool {
	return p.IsFinite() && p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// IsFinite reports whether both coordinates are finite numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lng) && !math.IsInf(p.Lat, 0) && !math.IsInf(p.Lng, 0)
}

// Add returns p shifted by d, component-wise.
func (p Point) Add(d Point) Point {
	return Point{Lng: p.Lng + d.Lng, Lat: p.Lat + d.Lat}
}

// Sub returns the component-wise difference p - q.
func (p Point) Sub(q Point) Point {
	return Point{Lng: p.Lng - q.Lng, Lat: p.Lat - q.Lat}
}

// HaversineDistance calculates the great-circle distance between two points
// using the Haversine formula. Returns distance in kilometers.
func HaversineDistance(p1, p2 Point) float64 {
	lat1 := degreesToRadians(p1.Lat)
	lat2 := degreesToRadians(p2.Lat)
	deltaLat := degreesToRadians(p2.Lat - p1.Lat)
	deltaLng := degreesToRadians(p2.Lng - p1.Lng)

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// HaversineDistanceMiles returns distance in miles.
func HaversineDistanceMiles(p1, p2 Point) float64 {
	return HaversineDistance(p1, p2) / KmPerMile
}

// DestinationPoint calculates the destination point given start point,
// bearing (in degrees), and distance (in kilometers).
func DestinationPoint(start Point, bearing, distanceKm float64) Point {
	lat1 := degreesToRadians(start.Lat)
	lng1 := degreesToRadians(start.Lng)
	bearingRad := degreesToRadians(bearing)

	angularDist := distanceKm / EarthRadiusKm

	lat2 := math.Asin(
		math.Sin(lat1)*math.Cos(angularDist) +
			math.Cos(lat1)*math.Sin(angularDist)*math.Cos(bearingRad),
	)

	lng2 := lng1 + math.Atan2(
		math.Sin(bearingRad)*math.Sin(angularDist)*math.Cos(lat1),
		math.Cos(angularDist)-math.Sin(lat1)*math.Sin(lat2),
	)

	// Normalize longitude to -180 to 180
	lng2 = math.Mod(lng2+3*math.Pi, 2*math.Pi) - math.Pi

	return Point{
		Lat: radiansToDegrees(lat2),
		Lng: radiansToDegrees(lng2),
	}
}

// BoundingBox is an axis-aligned lng/lat rectangle.
type BoundingBox struct {
	MinLat float64 `json:"south"`
	MaxLat float64 `json:"north"`
	MinLng float64 `json:"west"`
	MaxLng float64 `json:"east"`
}

// North returns the northern edge.
func (bb BoundingBox) North() float64 { return bb.MaxLat }

// South returns the southern edge.
func (bb BoundingBox) South() float64 { return bb.MinLat }

// East returns the eastern edge.
func (bb BoundingBox) East() float64 { return bb.MaxLng }

// West returns the western edge.
func (bb BoundingBox) West() float64 { return bb.MinLng }

// Contains checks if a point is within the bounding box, edges included.
// Boxes reaching past the antimeridian also contain the wrapped point.
func (bb BoundingBox) Contains(p Point) bool {
	p = bb.Wrap(p)
	return p.Lat >= bb.MinLat && p.Lat <= bb.MaxLat &&
		p.Lng >= bb.MinLng && p.Lng <= bb.MaxLng
}

// Wrap shifts p by a whole turn of longitude when that brings it into the
// box's longitude span, and returns p unchanged otherwise.
func (bb BoundingBox) Wrap(p Point) Point {
	switch {
	case p.Lng < bb.MinLng && p.Lng+360 <= bb.MaxLng:
		p.Lng += 360
	case p.Lng > bb.MaxLng && p.Lng-360 >= bb.MinLng:
		p.Lng -= 360
	}
	return p
}

// Intersects reports whether the two boxes share at least one point, taking
// boxes that reach past the antimeridian into account.
func (bb BoundingBox) Intersects(o BoundingBox) bool {
	for _, shift := range []float64{0, 360, -360} {
		if bb.MinLat <= o.MaxLat && o.MinLat <= bb.MaxLat &&
			bb.MinLng <= o.MaxLng+shift && o.MinLng+shift <= bb.MaxLng {
			return true
		}
	}
	return false
}

// Extend grows the box to cover p.
func (bb BoundingBox) Extend(p Point) BoundingBox {
	return BoundingBox{
		MinLat: math.Min(bb.MinLat, p.Lat),
		MaxLat: math.Max(bb.MaxLat, p.Lat),
		MinLng: math.Min(bb.MinLng, p.Lng),
		MaxLng: math.Max(bb.MaxLng, p.Lng),
	}
}

// Union returns the smallest box covering both boxes.
func (bb BoundingBox) Union(o BoundingBox) BoundingBox {
	return bb.Extend(Point{Lat: o.MinLat, Lng: o.MinLng}).Extend(Point{Lat: o.MaxLat, Lng: o.MaxLng})
}

// Center returns the center point of the bounding box.
func (bb BoundingBox) Center() Point {
	return Point{
		Lat: (bb.MinLat + bb.MaxLat) / 2,
		Lng: (bb.MinLng + bb.MaxLng) / 2,
	}
}

// pointBox is the degenerate box covering a single point.
func pointBox(p Point) BoundingBox {
	return BoundingBox{MinLat: p.Lat, MaxLat: p.Lat, MinLng: p.Lng, MaxLng: p.Lng}
}

func degreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

func radiansToDegrees(radians float64) float64 {
	return radians * 180 / math.Pi
}
