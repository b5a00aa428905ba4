package geo

import (
	"github.com/paulmach/orb/geojson"

	apperrors "github.com/civicmap/requestmap/pkg/errors"
)

// PointFeature is a single service request on the map.
type PointFeature struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Point Point  `json:"coordinates"`
}

// Searcher finds the point features that fall inside a region. Results keep
// the order of the underlying feature set.
type Searcher interface {
	Within(region Geometry) ([]PointFeature, error)
}

// BoundingBoxOf scans every coordinate of every feature in fc.
func BoundingBoxOf(fc *geojson.FeatureCollection) (BoundingBox, error) {
	if fc == nil || len(fc.Features) == 0 {
		return BoundingBox{}, apperrors.EmptyInput("bounding box of an empty feature collection")
	}

	var bb BoundingBox
	found := false
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		b := f.Geometry.Bound()
		fb := BoundingBox{MinLat: b.Min.Lat(), MaxLat: b.Max.Lat(), MinLng: b.Min.Lon(), MaxLng: b.Max.Lon()}
		if !found {
			bb = fb
			found = true
			continue
		}
		bb = bb.Union(fb)
	}

	if !found {
		return BoundingBox{}, apperrors.EmptyInput("feature collection has no geometry")
	}
	return bb, nil
}

// BoundingBoxOfPoints returns the box covering every point feature.
func BoundingBoxOfPoints(points []PointFeature) (BoundingBox, error) {
	if len(points) == 0 {
		return BoundingBox{}, apperrors.EmptyInput("bounding box of an empty point set")
	}
	bb := pointBox(points[0].Point)
	for _, f := range points[1:] {
		bb = bb.Extend(f.Point)
	}
	return bb, nil
}

// PointsWithinGeo returns, in input order, the features whose coordinate lies
// inside region. Runs in O(features x edges) after a bounding box check.
func PointsWithinGeo(points []PointFeature, region Geometry) ([]PointFeature, error) {
	if region == nil {
		return nil, apperrors.InvalidGeometry("region is nil")
	}
	if err := region.Validate(); err != nil {
		return nil, err
	}

	bb := region.BoundingBox()
	result := make([]PointFeature, 0, len(points))
	for _, f := range points {
		if bb.Contains(f.Point) && region.Contains(f.Point) {
			result = append(result, f)
		}
	}
	return result, nil
}

// LinearSearcher scans the whole feature set on every query.
type LinearSearcher struct {
	points []PointFeature
}

// NewLinearSearcher creates a searcher over points.
func NewLinearSearcher(points []PointFeature) *LinearSearcher {
	return &LinearSearcher{points: points}
}

// Within implements Searcher.
func (s *LinearSearcher) Within(region Geometry) ([]PointFeature, error) {
	return PointsWithinGeo(s.points, region)
}
