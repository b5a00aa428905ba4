package interaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/civicmap/requestmap/pkg/errors"
	"github.com/civicmap/requestmap/pkg/geo"
	"github.com/civicmap/requestmap/pkg/logging"
	"github.com/civicmap/requestmap/pkg/region"
)

func testNCs() *region.BoundarySet {
	sq := func(minLng, minLat, maxLng, maxLat float64) geo.Polygon {
		return geo.NewPolygon([]geo.Point{
			{Lng: minLng, Lat: minLat}, {Lng: maxLng, Lat: minLat},
			{Lng: maxLng, Lat: maxLat}, {Lng: minLng, Lat: maxLat},
		})
	}
	return region.NewBoundarySet(
		region.Boundary{Kind: region.KindNC, ID: "10", Name: "Downtown", Geometry: sq(0, 0, 1, 1)},
		region.Boundary{Kind: region.KindNC, ID: "11", Name: "Harbor", Geometry: sq(1, 0, 2, 1)},
	)
}

func newBoundaryFixture(t *testing.T) (*BoundaryController, *Scene, *[]region.Boundary, *[]string) {
	t.Helper()

	scene := NewScene()
	var selected []region.Boundary
	var hovered []string
	c := NewBoundaryController(logging.NewLogger("error"), region.KindNC, testNCs())
	c.Init(scene,
		func(b region.Boundary) error {
			selected = append(selected, b)
			return nil
		},
		func(name string) { hovered = append(hovered, name) },
	)
	c.Show()
	return c, scene, &selected, &hovered
}

func TestBoundaryController_SelectRegion(t *testing.T) {
	c, scene, selected, _ := newBoundaryFixture(t)

	require.NoError(t, c.SelectRegion("10"))
	require.Len(t, *selected, 1)
	assert.Equal(t, "Downtown", (*selected)[0].Name)
	assert.Equal(t, []string{"10"}, scene.Selected("nc"))

	vp := scene.Viewport()
	require.NotNil(t, vp)
	assert.Equal(t, 1.0, vp.Bounds.North())

	require.NoError(t, c.SelectRegion("11"))
	assert.Equal(t, []string{"11"}, scene.Selected("nc"), "previous highlight cleared")
	assert.Equal(t, "11", c.SelectedRegion())
}

func TestBoundaryController_SelectUnknownRegion(t *testing.T) {
	c, scene, selected, _ := newBoundaryFixture(t)
	require.NoError(t, c.SelectRegion("10"))

	err := c.SelectRegion("99999")
	require.Error(t, err)
	assert.True(t, apperrors.IsUnknownRegion(err))
	assert.Len(t, *selected, 1)
	assert.Equal(t, "10", c.SelectedRegion())
	assert.Equal(t, []string{"10"}, scene.Selected("nc"))
}

func TestBoundaryController_SelectRejected(t *testing.T) {
	scene := NewScene()
	c := NewBoundaryController(logging.NewLogger("error"), region.KindNC, testNCs())
	c.Init(scene,
		func(b region.Boundary) error {
			if b.ID == "11" {
				return apperrors.InvalidGeometry("ring is self-intersecting")
			}
			return nil
		},
		nil,
	)
	c.Show()
	require.NoError(t, c.SelectRegion("10"))
	before := scene.Viewport()

	err := c.SelectRegion("11")
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidGeometry(err))
	assert.Equal(t, "10", c.SelectedRegion())
	assert.Equal(t, []string{"10"}, scene.Selected("nc"))
	assert.Equal(t, before, scene.Viewport())
}

func TestBoundaryController_ClearSelectedRegion(t *testing.T) {
	c, scene, _, _ := newBoundaryFixture(t)
	require.NoError(t, c.SelectRegion("10"))

	c.ClearSelectedRegion()
	assert.Empty(t, scene.Selected("nc"))
	assert.Equal(t, "", c.SelectedRegion())
}

func TestBoundaryController_Hover(t *testing.T) {
	c, scene, _, hovered := newBoundaryFixture(t)

	c.Hover("10")
	c.Hover("10")
	assert.Equal(t, []string{"Downtown"}, *hovered, "repeat hover fires once")
	assert.Equal(t, CursorPointer, scene.Cursor())

	c.Hover("11")
	c.Hover("")
	assert.Equal(t, []string{"Downtown", "Harbor", ""}, *hovered)
	assert.Equal(t, CursorDefault, scene.Cursor())

	c.Hover("nope")
	assert.Len(t, *hovered, 3)
}

func TestBoundaryController_HideClearsHover(t *testing.T) {
	c, scene, _, hovered := newBoundaryFixture(t)
	c.Hover("10")

	c.Hide()
	assert.Equal(t, []string{"Downtown", ""}, *hovered)
	assert.False(t, scene.LayerVisible(c.FillLayer()))
	assert.False(t, scene.LayerVisible(c.BorderLayer()))

	c.Hover("10")
	assert.Len(t, *hovered, 2, "hidden layers do not hover")
}
