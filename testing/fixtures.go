package testing

import (
	"github.com/civicmap/requestmap/pkg/aggregate"
	"github.com/civicmap/requestmap/pkg/geo"
	"github.com/civicmap/requestmap/pkg/region"
)

// Square returns the closed axis-aligned square [minLng,maxLng]x[minLat,maxLat].
func Square(minLng, minLat, maxLng, maxLat float64) geo.Polygon {
	return geo.Polygon{Outer: geo.Ring{
		{Lng: minLng, Lat: minLat},
		{Lng: maxLng, Lat: minLat},
		{Lng: maxLng, Lat: maxLat},
		{Lng: minLng, Lat: maxLat},
		{Lng: minLng, Lat: minLat},
	}}
}

// Boundaries is a small catalog: NC 10 and NC 11 side by side, NC 13 with
// no count table, and CC 5 covering both councils.
func Boundaries() *region.BoundarySet {
	return region.NewBoundarySet(
		region.Boundary{Kind: region.KindNC, ID: "10", Name: "Arroyo Seco", URL: "https://arroyoseco.example", Geometry: Square(0, 0, 1.5, 1.5)},
		region.Boundary{Kind: region.KindNC, ID: "11", Name: "Eagle Rock", Geometry: Square(1.5, 0, 3, 1.5)},
		region.Boundary{Kind: region.KindNC, ID: "13", Name: "Glassell Park", Geometry: Square(0, 1.5, 3, 3)},
		region.Boundary{Kind: region.KindCC, ID: "5", Name: "Council District 5", Geometry: Square(0, 0, 3, 3)},
	)
}

// Requests returns request points inside and around the catalog.
func Requests() []geo.PointFeature {
	return []geo.PointFeature{
		{ID: "r1", Type: "pothole", Point: geo.Point{Lng: 0.5, Lat: 0.5}},
		{ID: "r2", Type: "graffiti", Point: geo.Point{Lng: 0.51, Lat: 0.5}},
		{ID: "r3", Type: "pothole", Point: geo.Point{Lng: 2, Lat: 1}},
		{ID: "r4", Type: "bulky items", Point: geo.Point{Lng: 10, Lat: 10}},
	}
}

// Tables returns count tables consistent with Requests.
func Tables() aggregate.Tables {
	return aggregate.Tables{
		region.KindNC: aggregate.Table{
			"10": {"pothole": 1, "graffiti": 1},
			"11": {"pothole": 1},
		},
		region.KindCC: aggregate.Table{
			"5": {"pothole": 2, "graffiti": 1},
		},
	}
}
