package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/civicmap/requestmap/pkg/errors"
	"github.com/civicmap/requestmap/pkg/geo"
	"github.com/civicmap/requestmap/pkg/region"
)

const ncDoc = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"nc_id": 10, "name": "Arroyo Seco", "waddress": "https://arroyoseco.example"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
    {"type": "Feature", "properties": {"nc_id": 11, "dwebsite": "https://eaglerock.example"},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[1,0],[2,0],[2,1],[1,1],[1,0]]]]}},
    {"type": "Feature", "properties": {"name": "no id"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]}},
    {"type": "Feature", "properties": {"nc_id": 12},
     "geometry": {"type": "Point", "coordinates": [0.5, 0.5]}}
  ]
}`

const ccDoc = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "5"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[2,0],[2,2],[0,2],[0,0]]]}}
  ]
}`

const requestsDoc = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"id": "r1", "type": "pothole"}, "geometry": {"type": "Point", "coordinates": [0.5, 0.5]}},
    {"type": "Feature", "properties": {"id": "r2", "type": "graffiti"}, "geometry": {"type": "Point", "coordinates": [1.5, 0.5]}}
  ]
}`

const ncCounts = `{"10": {"pothole": 1}, "11": {"graffiti": 1}}`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return dir
}

func TestLoader_Load(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		DefaultNCFile:       ncDoc,
		DefaultCCFile:       ccDoc,
		DefaultRequestsFile: requestsDoc,
		DefaultNCTableFile:  ncCounts,
	})

	ds, err := NewLoader(NewDirSource(dir), DefaultFiles(), nil).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"10", "11"}, ds.Boundaries.IDs(region.KindNC))
	assert.Equal(t, []string{"5"}, ds.Boundaries.IDs(region.KindCC))
	assert.Len(t, ds.Requests, 2)

	nc10, err := ds.Boundaries.Lookup(region.KindNC, "10")
	require.NoError(t, err)
	assert.Equal(t, "Arroyo Seco", nc10.Name)
	assert.Equal(t, "https://arroyoseco.example", nc10.URL)
	assert.True(t, nc10.Geometry.Contains(geo.Point{Lng: 0.5, Lat: 0.5}))

	nc11, err := ds.Boundaries.Lookup(region.KindNC, "11")
	require.NoError(t, err)
	assert.Equal(t, "Neighborhood Council 11", nc11.Name)
	assert.Equal(t, "https://eaglerock.example", nc11.URL)

	cc5, err := ds.Boundaries.Lookup(region.KindCC, "5")
	require.NoError(t, err)
	assert.Equal(t, "Council District 5", cc5.Name)

	require.Contains(t, ds.Tables, region.KindNC)
	assert.NotContains(t, ds.Tables, region.KindCC)
	assert.Equal(t, 1, ds.Tables[region.KindNC]["10"]["pothole"])
}

func TestLoader_MissingBoundaries(t *testing.T) {
	dir := writeFiles(t, map[string]string{DefaultCCFile: ccDoc, DefaultRequestsFile: requestsDoc})

	_, err := NewLoader(NewDirSource(dir), DefaultFiles(), nil).Load(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestLoader_BadTable(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		DefaultNCFile:       ncDoc,
		DefaultCCFile:       ccDoc,
		DefaultRequestsFile: requestsDoc,
		DefaultCCTableFile:  `{"5": [1, 2]}`,
	})

	_, err := NewLoader(NewDirSource(dir), DefaultFiles(), nil).Load(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestBoundariesFromGeoJSON_Empty(t *testing.T) {
	_, err := BoundariesFromGeoJSON(region.KindNC, geojson.NewFeatureCollection(), nil)
	assert.True(t, apperrors.IsEmptyInput(err))
}

func TestDirSource_StaysInDir(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.json": "{}"})
	src := NewDirSource(filepath.Join(dir, "sub"))

	_, err := src.Open(context.Background(), "../a.json")
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, "dir:"+filepath.Join(dir, "sub"), src.String())
}

func TestNewBlobSource_RequiresLocation(t *testing.T) {
	_, err := NewBlobSource(BlobConfig{ContainerName: "datasets"})
	assert.True(t, apperrors.IsValidation(err))
}
