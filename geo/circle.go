package geo

import (
	"math"
	"sort"
)

const (
	// DefaultRadiusMiles is the address circle radius when none is given.
	DefaultRadiusMiles = 1.0
	// CircleSteps is the number of distinct vertices on a built circle.
	CircleSteps = 64
)

// BuildCircle returns a closed ring approximating the geodesic circle of the
// given radius around center. Each vertex is placed with the spherical
// destination formula, so the shape stays round at any latitude.
//
// A circle that crosses the antimeridian keeps its vertices within 180
// degrees of the center, so some longitudes lie outside [-180, 180]. A
// circle that encloses a pole is returned as a polar cap instead.
//
// A radius that is zero, negative or not finite yields the empty polygon,
// which has zero area and contains no point.
func BuildCircle(center Point, radiusMiles float64) Polygon {
	if !(radiusMiles > 0) || math.IsInf(radiusMiles, 0) || !center.IsFinite() {
		return Polygon{}
	}

	distanceKm := radiusMiles * KmPerMile
	if poleLat, ok := enclosedPole(center, distanceKm); ok {
		return polarCap(center, distanceKm, poleLat)
	}

	ring := make(Ring, 0, CircleSteps+1)
	for i := 0; i < CircleSteps; i++ {
		// Same vertex order as a compass sweep starting due north,
		// turning counter-clockwise.
		bearing := -float64(i) * 360 / CircleSteps
		v := DestinationPoint(center, bearing, distanceKm)
		v.Lng = unwrapLng(v.Lng, center.Lng)
		ring = append(ring, v)
	}
	ring = append(ring, ring[0])

	return Polygon{Outer: ring}
}

// enclosedPole returns the latitude of the pole lying strictly inside the
// circle, if any.
func enclosedPole(center Point, distanceKm float64) (float64, bool) {
	for _, lat := range []float64{90, -90} {
		if HaversineDistance(center, Point{Lng: center.Lng, Lat: lat}) < distanceKm {
			return lat, true
		}
	}
	return 0, false
}

// polarCap traces a circle around a pole as the area between the circle and
// the pole's edge of the map. Every meridian crosses such a circle once, so
// its vertices sorted by longitude form the southern (or northern) side of
// the cap; the seam at the antimeridian is closed along the map edge.
func polarCap(center Point, distanceKm, poleLat float64) Polygon {
	verts := make([]Point, 0, CircleSteps)
	for i := 0; i < CircleSteps; i++ {
		bearing := float64(i) * 360 / CircleSteps
		v := DestinationPoint(center, bearing, distanceKm)
		if math.Abs(center.Lat) == 90 {
			// Bearings are undefined at the pole itself.
			v.Lng = -180 + bearing
		}
		verts = append(verts, v)
	}
	sort.Slice(verts, func(i, j int) bool { return verts[i].Lng < verts[j].Lng })

	first, last := verts[0], verts[len(verts)-1]
	seamLat := last.Lat
	if span := first.Lng + 360 - last.Lng; span > 0 {
		seamLat += (first.Lat - last.Lat) * (180 - last.Lng) / span
	}

	ring := make(Ring, 0, len(verts)+5)
	ring = append(ring, Point{Lng: -180, Lat: seamLat})
	ring = append(ring, verts...)
	ring = append(ring,
		Point{Lng: 180, Lat: seamLat},
		Point{Lng: 180, Lat: poleLat},
		Point{Lng: -180, Lat: poleLat},
	)
	return Polygon{Outer: CloseRing(ring)}
}

// BuildMask returns the world rectangle with circle cut out as a hole. It is
// used to dim everything outside the selected circle.
func BuildMask(circle Polygon) Polygon {
	mask := WorldPolygon()
	if circle.IsEmpty() {
		return mask
	}
	hole := make(Ring, len(circle.Outer))
	copy(hole, circle.Outer)
	mask.Holes = []Ring{hole}
	return mask
}

// unwrapLng shifts lng by whole turns so it lies within 180 degrees of ref.
func unwrapLng(lng, ref float64) float64 {
	for lng-ref > 180 {
		lng -= 360
	}
	for lng-ref < -180 {
		lng += 360
	}
	return lng
}
