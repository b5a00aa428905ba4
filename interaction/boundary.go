package interaction

import (
	"github.com/civicmap/requestmap/pkg/logging"
	"github.com/civicmap/requestmap/pkg/region"
)

// BoundarySelectFunc receives the boundary the user selected. A non-nil
// error rejects the selection.
type BoundarySelectFunc func(region.Boundary) error

// HoverFunc receives the name of the hovered boundary, or "" when the
// pointer leaves every boundary.
type HoverFunc func(name string)

// BoundaryController manages one boundary layer (neighborhood councils or
// council districts): selection highlight, hover name and visibility.
//
// Like AddressController it expects serial event delivery.
type BoundaryController struct {
	logger     *logging.Logger
	kind       region.Kind
	boundaries *region.BoundarySet

	surface  Surface
	onSelect BoundarySelectFunc
	onHover  HoverFunc

	selected string
	hovered  string
	visible  bool
}

// NewBoundaryController creates a controller for the boundaries of kind.
func NewBoundaryController(logger *logging.Logger, kind region.Kind, boundaries *region.BoundarySet) *BoundaryController {
	return &BoundaryController{
		logger:     logger.With("component", "boundary_controller", "kind", string(kind)),
		kind:       kind,
		boundaries: boundaries,
	}
}

// FillLayer is the name of the clickable fill layer.
func (c *BoundaryController) FillLayer() string { return string(c.kind) + "-fills" }

// BorderLayer is the name of the outline layer.
func (c *BoundaryController) BorderLayer() string { return string(c.kind) + "-borders" }

// Source is the name of the boundary source.
func (c *BoundaryController) Source() string { return string(c.kind) }

// Kind returns the boundary kind.
func (c *BoundaryController) Kind() region.Kind { return c.kind }

// Init attaches the controller to a surface.
func (c *BoundaryController) Init(surface Surface, onSelect BoundarySelectFunc, onHover HoverFunc) {
	c.surface = surface
	c.onSelect = onSelect
	c.onHover = onHover
	c.applyVisibility()
}

// SelectRegion reports the boundary with the given id through the select
// callback, then highlights it and zooms to it. An unknown id, or an error
// from the callback, is returned and leaves the previous selection in place.
func (c *BoundaryController) SelectRegion(id string) error {
	b, err := c.boundaries.Lookup(c.kind, id)
	if err != nil {
		c.logger.Warn("select of unknown boundary", "id", id)
		return err
	}

	if c.onSelect != nil {
		if err := c.onSelect(b); err != nil {
			c.logger.Warn("boundary selection rejected", "id", id, "error", err.Error())
			return err
		}
	}

	c.clearHighlight()
	c.selected = id
	if c.surface != nil {
		c.surface.SetFeatureSelected(c.Source(), id, true)
		if b.Geometry != nil && !b.Geometry.IsEmpty() {
			c.surface.FitBounds(b.Geometry.BoundingBox(), FitPadding)
		}
	}
	return nil
}

// ClearSelectedRegion removes the selection highlight.
func (c *BoundaryController) ClearSelectedRegion() {
	c.clearHighlight()
	c.selected = ""
}

// SelectedRegion returns the selected id, or "".
func (c *BoundaryController) SelectedRegion() string {
	return c.selected
}

// Hover updates the hovered boundary. An empty or unknown id means the
// pointer left the layer. The hover callback fires only on change.
func (c *BoundaryController) Hover(id string) {
	name := ""
	if id != "" && c.visible {
		if b, err := c.boundaries.Lookup(c.kind, id); err == nil {
			name = b.Name
		} else {
			id = ""
		}
	} else {
		id = ""
	}
	if id == c.hovered {
		return
	}
	c.hovered = id

	if c.surface != nil {
		if id != "" {
			c.surface.SetCursor(CursorPointer)
		} else {
			c.surface.SetCursor(CursorDefault)
		}
	}
	if c.onHover != nil {
		c.onHover(name)
	}
}

// Show makes the boundary layers visible.
func (c *BoundaryController) Show() {
	c.visible = true
	c.applyVisibility()
}

// Hide hides the boundary layers and drops the hover state.
func (c *BoundaryController) Hide() {
	c.Hover("")
	c.visible = false
	c.applyVisibility()
}

// Visible reports whether the layers are shown.
func (c *BoundaryController) Visible() bool {
	return c.visible
}

func (c *BoundaryController) clearHighlight() {
	if c.selected != "" && c.surface != nil {
		c.surface.SetFeatureSelected(c.Source(), c.selected, false)
	}
}

func (c *BoundaryController) applyVisibility() {
	if c.surface == nil {
		return
	}
	c.surface.SetLayerVisibility(c.FillLayer(), c.visible)
	c.surface.SetLayerVisibility(c.BorderLayer(), c.visible)
}
