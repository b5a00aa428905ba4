package interaction

import (
	"github.com/civicmap/requestmap/pkg/geo"
	"github.com/civicmap/requestmap/pkg/logging"
	"github.com/civicmap/requestmap/pkg/region"
)

// State is the drag state of the address circle.
type State int

const (
	StateIdle State = iota
	StateDragging
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDragging:
		return "dragging"
	default:
		return "unknown"
	}
}

// EventType identifies a pointer or touch event from the map.
type EventType string

const (
	EventPointerDown EventType = "pointerdown"
	EventPointerMove EventType = "pointermove"
	EventPointerUp   EventType = "pointerup"
	EventTouchStart  EventType = "touchstart"
	EventTouchMove   EventType = "touchmove"
	EventTouchEnd    EventType = "touchend"
	EventCancel      EventType = "cancel"
)

// ScreenPoint is a pixel position on the map canvas.
type ScreenPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Event is one input event. Touches is the number of active touch points
// and is only read for touch events.
type Event struct {
	Type    EventType   `json:"type"`
	LngLat  geo.Point   `json:"lngLat"`
	Screen  ScreenPoint `json:"screenPoint"`
	Touches int         `json:"touches,omitempty"`
}

func (e Event) isTouch() bool {
	return e.Type == EventTouchStart || e.Type == EventTouchMove || e.Type == EventTouchEnd
}

// DragSession is the state owned by the controller for one gesture. It
// exists only while dragging.
type DragSession struct {
	// PointerOffset is the pointer position minus the circle center at
	// press time.
	PointerOffset geo.Point
	OriginCenter  geo.Point
	// Current is the last candidate center drawn during the gesture.
	Current geo.Point
	Touch   bool
}

// Selection is the payload of a committed address region. A nil Geo means
// the selection was cleared.
type Selection struct {
	Geo         geo.Geometry
	Center      *geo.Point
	RadiusMiles float64
}

// SelectFunc receives committed address regions.
type SelectFunc func(Selection)

// AddressController moves the address circle in response to pointer and
// touch events. In-progress moves only redraw the circle; a release, a
// cancel or a programmatic SetCenter commits the region through the select
// callback.
//
// A controller is not safe for concurrent use. Events must be delivered
// serially, as the map runtime does.
type AddressController struct {
	logger   *logging.Logger
	surface  Surface
	onSelect SelectFunc

	radius   float64
	center   *geo.Point
	drag     *DragSession
	visible  bool
	hovering bool
}

// NewAddressController creates a controller using radiusMiles for the
// circle. A non-positive radius falls back to geo.DefaultRadiusMiles.
func NewAddressController(logger *logging.Logger, radiusMiles float64) *AddressController {
	if !(radiusMiles > 0) {
		radiusMiles = geo.DefaultRadiusMiles
	}
	return &AddressController{
		logger:  logger.With("component", "address_controller"),
		radius:  radiusMiles,
		visible: true,
	}
}

// Init attaches the controller to a surface. Nothing is committed until the
// center is set.
func (c *AddressController) Init(surface Surface, onSelect SelectFunc) {
	c.surface = surface
	c.onSelect = onSelect
	c.drag = nil
	c.hovering = false
	c.applyVisibility()
	c.redraw()
}

// State returns the drag state.
func (c *AddressController) State() State {
	if c.drag != nil {
		return StateDragging
	}
	return StateIdle
}

// Session returns a copy of the active drag session.
func (c *AddressController) Session() (DragSession, bool) {
	if c.drag == nil {
		return DragSession{}, false
	}
	return *c.drag, true
}

// Center returns the committed center, or nil.
func (c *AddressController) Center() *geo.Point {
	if c.center == nil {
		return nil
	}
	p := *c.center
	return &p
}

// RadiusMiles returns the circle radius.
func (c *AddressController) RadiusMiles() float64 {
	return c.radius
}

// Handle processes one input event and reports whether it was consumed,
// meaning the map should not pan for it.
func (c *AddressController) Handle(e Event) bool {
	switch e.Type {
	case EventPointerDown, EventTouchStart:
		return c.press(e)
	case EventPointerMove, EventTouchMove:
		if c.drag == nil {
			if e.Type == EventPointerMove {
				c.hover(e.LngLat)
			}
			return false
		}
		return c.move(e)
	case EventPointerUp, EventTouchEnd:
		if c.drag == nil || c.drag.Touch != e.isTouch() {
			return false
		}
		c.release(e.LngLat.Sub(c.drag.PointerOffset))
		return true
	case EventCancel:
		if c.drag == nil {
			return false
		}
		c.release(c.drag.Current)
		return true
	default:
		return false
	}
}

// Cancel ends an active drag as if the pointer were released at the last
// drawn position.
func (c *AddressController) Cancel() {
	c.Handle(Event{Type: EventCancel})
}

func (c *AddressController) press(e Event) bool {
	if e.isTouch() && e.Touches != 1 {
		// Leave multi-finger gestures to pan and zoom.
		return false
	}
	if c.drag != nil {
		c.logger.Debug("ignoring press during active drag", "event", e.Type)
		return true
	}
	if !c.visible || c.center == nil || !c.hit(e.LngLat) {
		return false
	}

	c.drag = &DragSession{
		PointerOffset: e.LngLat.Sub(*c.center),
		OriginCenter:  *c.center,
		Current:       *c.center,
		Touch:         e.isTouch(),
	}
	if !c.drag.Touch {
		c.setCursor(CursorGrab)
	}
	return true
}

func (c *AddressController) move(e Event) bool {
	if c.drag.Touch != e.isTouch() {
		return false
	}
	c.drag.Current = e.LngLat.Sub(c.drag.PointerOffset)
	c.draw(region.NewAddressCircle(c.drag.Current, c.radius))
	if !c.drag.Touch {
		c.setCursor(CursorGrabbing)
	}
	return true
}

func (c *AddressController) release(center geo.Point) {
	c.drag = nil
	c.hovering = false
	c.setCursor(CursorDefault)
	c.commit(center)
}

func (c *AddressController) hover(p geo.Point) {
	over := c.visible && c.center != nil && c.hit(p)
	if over == c.hovering {
		return
	}
	c.hovering = over
	if over {
		c.setCursor(CursorMove)
	} else {
		c.setCursor(CursorDefault)
	}
}

// hit reports whether p lies on the committed circle's fill.
func (c *AddressController) hit(p geo.Point) bool {
	circle := region.NewAddressCircle(*c.center, c.radius)
	return geo.PointInPolygon(p, circle.Geometry())
}

// SetCenter moves the circle to p, zooms to it and commits. A nil p clears
// the circle and commits an empty selection. Any drag in progress is
// discarded.
func (c *AddressController) SetCenter(p *geo.Point) {
	c.discardDrag()
	if p == nil {
		c.center = nil
		c.redraw()
		c.emit(Selection{RadiusMiles: c.radius})
		return
	}

	circle := region.NewAddressCircle(*p, c.radius)
	if c.surface != nil && !circle.Polygon().IsEmpty() {
		c.surface.FitBounds(circle.Polygon().BoundingBox(), FitPadding)
	}
	c.commit(*p)
}

// SetRadius changes the circle radius. A committed circle is redrawn and
// committed again; during a drag the new radius applies from the next move.
func (c *AddressController) SetRadius(miles float64) {
	if !(miles > 0) || miles == c.radius {
		return
	}
	c.radius = miles
	if c.drag != nil {
		c.draw(region.NewAddressCircle(c.drag.Current, c.radius))
		return
	}
	if c.center != nil {
		c.commit(*c.center)
	}
}

// Show makes the circle layers visible.
func (c *AddressController) Show() {
	c.visible = true
	c.applyVisibility()
}

// Hide hides the circle layers and drops any drag in progress without
// committing it.
func (c *AddressController) Hide() {
	c.discardDrag()
	c.visible = false
	c.applyVisibility()
}

// Visible reports whether the circle layers are shown.
func (c *AddressController) Visible() bool {
	return c.visible
}

// Discard drops any drag in progress without committing and restores the
// committed circle.
func (c *AddressController) Discard() {
	c.discardDrag()
}

func (c *AddressController) discardDrag() {
	if c.drag == nil {
		return
	}
	c.logger.Debug("discarding drag session",
		"origin_lat", c.drag.OriginCenter.Lat, "origin_lng", c.drag.OriginCenter.Lng)
	c.drag = nil
	c.hovering = false
	c.setCursor(CursorDefault)
	c.redraw()
}

func (c *AddressController) commit(center geo.Point) {
	c.center = &center
	circle := region.NewAddressCircle(center, c.radius)
	c.draw(circle)

	p := center
	c.emit(Selection{Geo: circle.Polygon(), Center: &p, RadiusMiles: c.radius})
}

func (c *AddressController) emit(sel Selection) {
	if c.onSelect != nil {
		c.onSelect(sel)
	}
}

// redraw shows the committed circle, or empties the sources.
func (c *AddressController) redraw() {
	if c.center == nil {
		if c.surface != nil {
			c.surface.SetSourceData(SourceShed, nil)
			c.surface.SetSourceData(SourceShedMask, nil)
		}
		return
	}
	c.draw(region.NewAddressCircle(*c.center, c.radius))
}

func (c *AddressController) draw(circle region.AddressCircle) {
	if c.surface == nil {
		return
	}
	c.surface.SetSourceData(SourceShed, circle.Polygon())
	c.surface.SetSourceData(SourceShedMask, circle.Mask())
}

func (c *AddressController) setCursor(cur Cursor) {
	if c.surface != nil {
		c.surface.SetCursor(cur)
	}
}

func (c *AddressController) applyVisibility() {
	if c.surface == nil {
		return
	}
	for _, layer := range []string{LayerShedBorder, LayerShedFill, LayerShedMaskFill} {
		c.surface.SetLayerVisibility(layer, c.visible)
	}
}
