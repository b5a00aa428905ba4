package region

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/civicmap/requestmap/pkg/errors"
	"github.com/civicmap/requestmap/pkg/geo"
)

func square(minLng, minLat, maxLng, maxLat float64) geo.Polygon {
	return geo.NewPolygon([]geo.Point{
		{Lng: minLng, Lat: minLat},
		{Lng: maxLng, Lat: minLat},
		{Lng: maxLng, Lat: maxLat},
		{Lng: minLng, Lat: maxLat},
	})
}

func testBoundaries() *BoundarySet {
	return NewBoundarySet(
		Boundary{Kind: KindNC, ID: "10", Name: "Downtown", Geometry: square(0, 0, 1, 1)},
		Boundary{Kind: KindNC, ID: "11", Name: "Harbor", Geometry: square(1, 0, 2, 1)},
		Boundary{Kind: KindNC, ID: "12", Name: "Hollow", Geometry: geo.Polygon{}},
		Boundary{Kind: KindCC, ID: "5", Name: "District 5", Geometry: geo.MultiPolygon{
			square(-3, -3, -2, -2),
			square(2, 2, 3, 3),
		}},
	)
}

type recordingVisitor struct{ seen string }

func (r *recordingVisitor) VisitNone(NoFilter)          { r.seen = "none" }
func (r *recordingVisitor) VisitAddress(AddressCircle)  { r.seen = "address" }
func (r *recordingVisitor) VisitBoundary(NamedBoundary) { r.seen = "boundary" }

func TestFilter_Accept(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   string
	}{
		{"none", NoFilter{}, "none"},
		{"address", NewAddressCircle(geo.Point{}, 1), "address"},
		{"boundary", NamedBoundary{Kind: KindNC, ID: "10"}, "boundary"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &recordingVisitor{}
			tt.filter.Accept(v)
			if v.seen != tt.want {
				t.Errorf("visited %q, want %q", v.seen, tt.want)
			}
		})
	}
}

func TestFilter_Equal(t *testing.T) {
	c := geo.Point{Lng: -118.25, Lat: 34.05}

	tests := []struct {
		name string
		a, b Filter
		want bool
	}{
		{"none equals none", NoFilter{}, NoFilter{}, true},
		{"nil equals none", nil, NoFilter{}, true},
		{"same circle", NewAddressCircle(c, 1), NewAddressCircle(c, 1), true},
		{"different radius", NewAddressCircle(c, 1), NewAddressCircle(c, 2), false},
		{"different center", NewAddressCircle(c, 1), NewAddressCircle(c.Add(geo.Point{Lng: 0.001}), 1), false},
		{"same boundary", NamedBoundary{Kind: KindNC, ID: "10"}, NamedBoundary{Kind: KindNC, ID: "10"}, true},
		{"same id other kind", NamedBoundary{Kind: KindNC, ID: "5"}, NamedBoundary{Kind: KindCC, ID: "5"}, false},
		{"circle vs none", NewAddressCircle(c, 1), NoFilter{}, false},
		{"boundary vs circle", NamedBoundary{Kind: KindNC, ID: "10"}, NewAddressCircle(c, 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
			if got := Equal(tt.b, tt.a); got != tt.want {
				t.Errorf("Equal() reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddressCircle_GeometryMatchesParameters(t *testing.T) {
	c := geo.Point{Lng: -118.25, Lat: 34.05}
	f := NewAddressCircle(c, 2)

	want := geo.BuildCircle(c, 2)
	assert.Equal(t, want, f.Polygon())
	assert.Equal(t, geo.BuildMask(want), f.Mask())
	assert.True(t, geo.PointInPolygon(c, f.Geometry()))
}

func TestNoFilter_GeometryIsNil(t *testing.T) {
	assert.Nil(t, NoFilter{}.Geometry())
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "none", Describe(nil))
	assert.Equal(t, "nc(10)", Describe(NamedBoundary{Kind: KindNC, ID: "10"}))
	assert.Contains(t, Describe(NewAddressCircle(geo.Point{Lng: 1, Lat: 2}, 1)), "address(")
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("nc")
	require.NoError(t, err)
	assert.Equal(t, KindNC, k)

	_, err = ParseKind("zip")
	assert.Error(t, err)
}

func TestType_Kind(t *testing.T) {
	k, ok := TypeCC.Kind()
	assert.True(t, ok)
	assert.Equal(t, KindCC, k)

	_, ok = TypeAddress.Kind()
	assert.False(t, ok)
}

func TestModel_SelectNamedBoundary(t *testing.T) {
	m := NewModel(testBoundaries(), TypeNC)

	f, err := m.SelectNamedBoundary(KindNC, "10")
	require.NoError(t, err)
	assert.True(t, Equal(f, m.Filter()))

	nb, ok := m.Filter().(NamedBoundary)
	require.True(t, ok, "filter is %T", m.Filter())
	assert.Equal(t, "10", nb.ID)
	assert.True(t, geo.PointInPolygon(geo.Point{Lng: 0.5, Lat: 0.5}, nb.Geometry()))
}

func TestModel_SelectNamedBoundary_Unknown(t *testing.T) {
	m := NewModel(testBoundaries(), TypeNC)
	m.SelectAddressRegion(&geo.Point{Lng: 0.5, Lat: 0.5}, 1)
	before := m.Filter()

	_, err := m.SelectNamedBoundary(KindNC, "99999")
	require.Error(t, err)
	assert.True(t, apperrors.IsUnknownRegion(err))
	assert.True(t, Equal(before, m.Filter()), "filter changed on error")
}

func TestModel_SelectNamedBoundary_EmptyGeometry(t *testing.T) {
	m := NewModel(testBoundaries(), TypeNC)

	_, err := m.SelectNamedBoundary(KindNC, "12")
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidGeometry(err))
	assert.Equal(t, NoFilter{}, m.Filter())
}

func TestModel_SelectAddressRegion(t *testing.T) {
	m := NewModel(testBoundaries(), TypeAddress)
	center := geo.Point{Lng: -118.25, Lat: 34.05}

	f := m.SelectAddressRegion(&center, 1)
	ac, ok := f.(AddressCircle)
	require.True(t, ok)
	assert.Equal(t, center, ac.Center)
	assert.Equal(t, 1.0, ac.RadiusMiles)

	m.SelectAddressRegion(nil, 1)
	assert.Equal(t, NoFilter{}, m.Filter())
}

func TestModel_SetRegionTypeResets(t *testing.T) {
	m := NewModel(testBoundaries(), TypeNC)
	_, err := m.SelectNamedBoundary(KindNC, "10")
	require.NoError(t, err)

	m.SetRegionType(TypeNC)
	assert.Equal(t, NoFilter{}, m.Filter())
	assert.Equal(t, TypeNC, m.RegionType())

	_, err = m.SelectNamedBoundary(KindNC, "11")
	require.NoError(t, err)
	m.SetRegionType(TypeAddress)
	assert.Equal(t, NoFilter{}, m.Filter())
	assert.Equal(t, TypeAddress, m.RegionType())
}

func TestModel_Reset(t *testing.T) {
	m := NewModel(testBoundaries(), TypeCC)
	_, err := m.SelectNamedBoundary(KindCC, "5")
	require.NoError(t, err)

	m.Reset()
	assert.Equal(t, NoFilter{}, m.Filter())
	assert.Equal(t, TypeCC, m.RegionType())
}

func TestBoundarySet_Lookup(t *testing.T) {
	s := testBoundaries()

	b, err := s.Lookup(KindNC, "11")
	require.NoError(t, err)
	assert.Equal(t, "Harbor", b.Name)

	_, err = s.Lookup(KindCC, "10")
	assert.True(t, apperrors.IsUnknownRegion(err))

	var nilSet *BoundarySet
	_, err = nilSet.Lookup(KindNC, "10")
	assert.True(t, apperrors.IsUnknownRegion(err))
}

func TestBoundarySet_Containing(t *testing.T) {
	s := testBoundaries()

	tests := []struct {
		name   string
		kind   Kind
		point  geo.Point
		wantID string
		wantOK bool
	}{
		{"inside downtown", KindNC, geo.Point{Lng: 0.5, Lat: 0.5}, "10", true},
		{"inside harbor", KindNC, geo.Point{Lng: 1.5, Lat: 0.5}, "11", true},
		{"shared edge picks lowest id", KindNC, geo.Point{Lng: 1, Lat: 0.5}, "10", true},
		{"outside", KindNC, geo.Point{Lng: 5, Lat: 5}, "", false},
		{"second part of multipolygon", KindCC, geo.Point{Lng: 2.5, Lat: 2.5}, "5", true},
		{"between parts", KindCC, geo.Point{Lng: 0, Lat: 0}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, ok := s.Containing(tt.kind, tt.point)
			if ok != tt.wantOK {
				t.Fatalf("Containing() ok = %v, want %v", ok, tt.wantOK)
			}
			if b.ID != tt.wantID {
				t.Errorf("Containing() id = %q, want %q", b.ID, tt.wantID)
			}
		})
	}
}

func TestBoundarySet_Extent(t *testing.T) {
	s := testBoundaries()

	bb, err := s.Extent(KindNC)
	require.NoError(t, err)
	assert.Equal(t, 0.0, bb.West())
	assert.Equal(t, 2.0, bb.East())
	assert.Equal(t, 0.0, bb.South())
	assert.Equal(t, 1.0, bb.North())

	bb, err = s.Extent(KindCC)
	require.NoError(t, err)
	assert.Equal(t, -3.0, bb.West())
	assert.Equal(t, 3.0, bb.North())

	_, err = NewBoundarySet().Extent(KindNC)
	assert.True(t, apperrors.IsEmptyInput(err))
}

func TestBoundarySet_IDsKeepLoadOrder(t *testing.T) {
	s := testBoundaries()
	assert.Equal(t, []string{"10", "11", "12"}, s.IDs(KindNC))
	assert.Equal(t, 3, s.Len(KindNC))
	assert.Equal(t, 1, s.Len(KindCC))
}
