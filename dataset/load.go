package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/paulmach/orb/geojson"

	"github.com/civicmap/requestmap/pkg/aggregate"
	apperrors "github.com/civicmap/requestmap/pkg/errors"
	"github.com/civicmap/requestmap/pkg/geo"
	"github.com/civicmap/requestmap/pkg/logging"
	"github.com/civicmap/requestmap/pkg/region"
)

// Default document names.
const (
	DefaultNCFile       = "nc-boundaries.json"
	DefaultCCFile       = "cc-boundaries.json"
	DefaultRequestsFile = "requests.json"
	DefaultNCTableFile  = "nc-counts.json"
	DefaultCCTableFile  = "cc-counts.json"
)

// Files names the documents of one dataset.
type Files struct {
	NCBoundaries string
	CCBoundaries string
	Requests     string
	NCCounts     string
	CCCounts     string
}

// DefaultFiles returns the default document names.
func DefaultFiles() Files {
	return Files{
		NCBoundaries: DefaultNCFile,
		CCBoundaries: DefaultCCFile,
		Requests:     DefaultRequestsFile,
		NCCounts:     DefaultNCTableFile,
		CCCounts:     DefaultCCTableFile,
	}
}

// Dataset is everything the engine reads at startup.
type Dataset struct {
	Boundaries *region.BoundarySet
	Requests   []geo.PointFeature
	Tables     aggregate.Tables
}

// Loader reads a Dataset from a Source.
type Loader struct {
	source Source
	files  Files
	logger *logging.Logger
}

// NewLoader creates a loader.
func NewLoader(source Source, files Files, logger *logging.Logger) *Loader {
	if logger == nil {
		logger = logging.NewLogger("info")
	}
	return &Loader{source: source, files: files, logger: logger.WithService("dataset")}
}

// Load reads every document. Boundaries and requests are required; a missing
// count table leaves that kind without aggregates, so every named-boundary
// selection of the kind reports a missing aggregate.
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	nc, err := l.boundaries(ctx, region.KindNC, l.files.NCBoundaries)
	if err != nil {
		return nil, err
	}
	cc, err := l.boundaries(ctx, region.KindCC, l.files.CCBoundaries)
	if err != nil {
		return nil, err
	}

	requests, err := l.requests(ctx, l.files.Requests)
	if err != nil {
		return nil, err
	}

	tables := aggregate.Tables{}
	for kind, name := range map[region.Kind]string{region.KindNC: l.files.NCCounts, region.KindCC: l.files.CCCounts} {
		t, err := l.table(ctx, name)
		if apperrors.IsNotFound(err) {
			l.logger.Warn("count table not found", "kind", string(kind), "file", name)
			continue
		}
		if err != nil {
			return nil, err
		}
		tables[kind] = t
	}

	ds := &Dataset{
		Boundaries: region.NewBoundarySet(append(nc, cc...)...),
		Requests:   requests,
		Tables:     tables,
	}
	l.logger.Info("dataset loaded",
		"source", l.source.String(),
		"nc_boundaries", len(nc),
		"cc_boundaries", len(cc),
		"requests", len(requests),
		"tables", len(tables),
	)
	return ds, nil
}

func (l *Loader) read(ctx context.Context, name string) ([]byte, error) {
	rc, err := l.source.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (l *Loader) boundaries(ctx context.Context, kind region.Kind, name string) ([]region.Boundary, error) {
	data, err := l.read(ctx, name)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, apperrors.InvalidGeometry(fmt.Sprintf("%s: %v", name, err))
	}
	return BoundariesFromGeoJSON(kind, fc, l.logger)
}

func (l *Loader) requests(ctx context.Context, name string) ([]geo.PointFeature, error) {
	data, err := l.read(ctx, name)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, apperrors.Validation(fmt.Sprintf("%s: %v", name, err))
	}
	return geo.PointFeaturesFromGeoJSON(fc), nil
}

func (l *Loader) table(ctx context.Context, name string) (aggregate.Table, error) {
	data, err := l.read(ctx, name)
	if err != nil {
		return nil, err
	}
	var t aggregate.Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, apperrors.Validation(fmt.Sprintf("%s: %v", name, err))
	}
	return t, nil
}

// BoundariesFromGeoJSON converts boundary features. Neighborhood councils are
// keyed by the nc_id property and council districts by name. Features
// without an id or with non-polygonal geometry are skipped.
func BoundariesFromGeoJSON(kind region.Kind, fc *geojson.FeatureCollection, logger *logging.Logger) ([]region.Boundary, error) {
	if fc == nil || len(fc.Features) == 0 {
		return nil, apperrors.EmptyInput(fmt.Sprintf("no %s boundaries", kind))
	}
	if logger == nil {
		logger = logging.NewLogger("info")
	}

	out := make([]region.Boundary, 0, len(fc.Features))
	for i, f := range fc.Features {
		id := featureID(kind, f)
		if id == "" {
			logger.Warn("boundary without id skipped", "kind", string(kind), "index", i)
			continue
		}
		g, err := geo.GeometryFromOrb(f.Geometry)
		if err != nil {
			logger.Warn("boundary geometry skipped", "kind", string(kind), "id", id, "error", err.Error())
			continue
		}
		out = append(out, region.Boundary{
			Kind:     kind,
			ID:       id,
			Name:     featureName(kind, id, f),
			URL:      firstString(f.Properties, "waddress", "dwebsite"),
			Geometry: g,
		})
	}
	return out, nil
}

func featureID(kind region.Kind, f *geojson.Feature) string {
	key := "nc_id"
	if kind == region.KindCC {
		key = "name"
	}
	if v, ok := f.Properties[key]; ok && v != nil {
		return propString(v)
	}
	if f.ID != nil {
		return propString(f.ID)
	}
	return ""
}

func featureName(kind region.Kind, id string, f *geojson.Feature) string {
	switch kind {
	case region.KindNC:
		if name := firstString(f.Properties, "nc_name", "name"); name != "" {
			return name
		}
		return "Neighborhood Council " + id
	default:
		return "Council District " + id
	}
}

func firstString(props geojson.Properties, keys ...string) string {
	for _, k := range keys {
		if v := props.MustString(k, ""); v != "" {
			return v
		}
	}
	return ""
}

// propString formats ids that GeoJSON may carry as numbers.
func propString(v interface{}) string {
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprint(v)
}
