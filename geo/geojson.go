package geo

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	apperrors "github.com/civicmap/requestmap/pkg/errors"
)

// ToOrb converts the polygon to an orb polygon. GeoJSON order is [lng, lat].
func (p Polygon) ToOrb() orb.Polygon {
	if p.IsEmpty() {
		return orb.Polygon{}
	}
	poly := orb.Polygon{ringToOrb(p.Outer)}
	for _, h := range p.Holes {
		poly = append(poly, ringToOrb(h))
	}
	return poly
}

// PolygonFromOrb converts an orb polygon, closing open rings.
func PolygonFromOrb(op orb.Polygon) Polygon {
	if len(op) == 0 {
		return Polygon{}
	}
	var p Polygon
	p.Outer = ringFromOrb(op[0])
	for _, r := range op[1:] {
		p.Holes = append(p.Holes, ringFromOrb(r))
	}
	return p
}

// GeometryFromOrb converts polygonal orb geometry.
func GeometryFromOrb(g orb.Geometry) (Geometry, error) {
	switch v := g.(type) {
	case orb.Polygon:
		return PolygonFromOrb(v), nil
	case orb.MultiPolygon:
		mp := make(MultiPolygon, 0, len(v))
		for _, p := range v {
			mp = append(mp, PolygonFromOrb(p))
		}
		return mp, nil
	case nil:
		return nil, apperrors.InvalidGeometry("missing geometry")
	default:
		return nil, apperrors.InvalidGeometry(fmt.Sprintf("unsupported geometry type %s", g.GeoJSONType()))
	}
}

// GeometryToOrb converts a region geometry back to orb.
func GeometryToOrb(g Geometry) orb.Geometry {
	switch v := g.(type) {
	case Polygon:
		return v.ToOrb()
	case MultiPolygon:
		mp := make(orb.MultiPolygon, 0, len(v))
		for _, p := range v {
			mp = append(mp, p.ToOrb())
		}
		return mp
	default:
		return orb.Polygon{}
	}
}

// NewGeoJSONFeature wraps a region geometry as a GeoJSON feature.
func NewGeoJSONFeature(g Geometry, props map[string]interface{}) *geojson.Feature {
	f := geojson.NewFeature(GeometryToOrb(g))
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

// PointFeaturesFromGeoJSON extracts point features carrying "id" and "type"
// properties. Non-point features are skipped.
func PointFeaturesFromGeoJSON(fc *geojson.FeatureCollection) []PointFeature {
	if fc == nil {
		return nil
	}
	points := make([]PointFeature, 0, len(fc.Features))
	for _, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		id := ""
		if v, ok := f.Properties["id"]; ok && v != nil {
			id = fmt.Sprint(v)
		} else if f.ID != nil {
			id = fmt.Sprint(f.ID)
		}
		points = append(points, PointFeature{
			ID:    id,
			Type:  f.Properties.MustString("type", ""),
			Point: Point{Lng: pt.Lon(), Lat: pt.Lat()},
		})
	}
	return points
}

func ringToOrb(r Ring) orb.Ring {
	out := make(orb.Ring, len(r))
	for i, pt := range r {
		out[i] = orb.Point{pt.Lng, pt.Lat}
	}
	return out
}

func ringFromOrb(r orb.Ring) Ring {
	pts := make([]Point, len(r))
	for i, pt := range r {
		pts[i] = Point{Lng: pt.Lon(), Lat: pt.Lat()}
	}
	return CloseRing(pts)
}
