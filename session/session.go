// Package session ties one map view together: the region model, the layer
// controllers, the selected request types and the resulting counts.
package session

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/civicmap/requestmap/pkg/aggregate"
	apperrors "github.com/civicmap/requestmap/pkg/errors"
	"github.com/civicmap/requestmap/pkg/geo"
	"github.com/civicmap/requestmap/pkg/interaction"
	"github.com/civicmap/requestmap/pkg/logging"
	"github.com/civicmap/requestmap/pkg/region"
	"github.com/civicmap/requestmap/pkg/telemetry"
)

// InitialLocation is the location label when no region is selected.
const InitialLocation = "All of Los Angeles"

// BoundaryInfo names a boundary in the location panel.
type BoundaryInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// LocationInfo describes the selected region for display.
type LocationInfo struct {
	Location    string        `json:"location,omitempty"`
	RadiusMiles float64       `json:"radius,omitempty"`
	NC          *BoundaryInfo `json:"nc,omitempty"`
	CC          *BoundaryInfo `json:"cc,omitempty"`
}

// Config holds the shared, read-only collaborators of a session.
type Config struct {
	Boundaries  *region.BoundarySet
	Counter     aggregate.Counter
	AllTypes    aggregate.TypeSet
	RadiusMiles float64
	Logger      *logging.Logger
	Metrics     *telemetry.EngineMetrics
}

// Session is one map view. Its methods are serialized, standing in for the
// single event loop of a browser map.
type Session struct {
	mu sync.Mutex

	id         string
	boundaries *region.BoundarySet
	allTypes   aggregate.TypeSet
	logger     *logging.Logger
	metrics    *telemetry.EngineMetrics

	model       *region.Model
	recounter   *aggregate.Recounter
	scene       *interaction.Scene
	address     *interaction.AddressController
	boundaryCtl map[region.Kind]*interaction.BoundaryController

	selected   aggregate.TypeSet
	location   LocationInfo
	hovered    string
	counts     aggregate.Counts
	countErr   error
	lastAccess time.Time

	// ctx is the context of the call currently holding mu. Controller
	// callbacks run synchronously inside that call.
	ctx context.Context
}

// New creates a session on the address tab with every type selected and
// computes the initial counts.
func New(ctx context.Context, id string, cfg Config) (*Session, error) {
	if cfg.Counter == nil {
		return nil, apperrors.Internal("session requires a counter")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("info")
	}

	s := &Session{
		id:          id,
		boundaries:  cfg.Boundaries,
		allTypes:    cfg.AllTypes,
		logger:      cfg.Logger.WithSessionID(id),
		metrics:     cfg.Metrics,
		model:       region.NewModel(cfg.Boundaries, region.TypeAddress),
		recounter:   aggregate.NewRecounter(cfg.Counter),
		scene:       interaction.NewScene(),
		address:     interaction.NewAddressController(cfg.Logger, cfg.RadiusMiles),
		boundaryCtl: make(map[region.Kind]*interaction.BoundaryController),
		selected:    cfg.AllTypes,
		location:    LocationInfo{Location: InitialLocation},
		lastAccess:  time.Now(),
	}

	s.address.Init(s.scene, s.onAddressSelect)
	for _, kind := range region.Kinds {
		c := interaction.NewBoundaryController(cfg.Logger, kind, cfg.Boundaries)
		c.Init(s.scene, s.onBoundarySelect, func(name string) { s.hovered = name })
		s.boundaryCtl[kind] = c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.begin(ctx)
	s.applyRegionType(region.TypeAddress)
	s.zoomOut()
	s.refresh()
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// LastAccess returns the time of the last call.
func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

// HandleEvent routes a pointer or touch event. On the address tab it drives
// the circle; on a boundary tab pointer moves hover the boundary underneath.
// It reports whether the event was consumed.
func (s *Session) HandleEvent(ctx context.Context, e interaction.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begin(ctx)

	t := s.model.RegionType()
	if t == region.TypeAddress {
		consumed := s.address.Handle(e)
		s.refresh()
		return consumed
	}

	if kind, ok := t.Kind(); ok && e.Type == interaction.EventPointerMove {
		id := ""
		if b, found := s.boundaries.Containing(kind, e.LngLat); found {
			id = b.ID
		}
		s.boundaryCtl[kind].Hover(id)
	}
	return false
}

// Click selects the boundary under point on a boundary tab. Clicking
// outside every boundary or on the selected one does nothing.
func (s *Session) Click(ctx context.Context, point geo.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begin(ctx)

	kind, ok := s.model.RegionType().Kind()
	if !ok {
		return nil
	}
	b, found := s.boundaries.Containing(kind, point)
	if !found || b.ID == s.boundaryCtl[kind].SelectedRegion() {
		return nil
	}
	if err := s.boundaryCtl[kind].SelectRegion(b.ID); err != nil {
		return err
	}
	s.refresh()
	return nil
}

// SelectRegion selects a boundary by id on the active boundary tab.
func (s *Session) SelectRegion(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begin(ctx)

	kind, ok := s.model.RegionType().Kind()
	if !ok {
		return apperrors.BadRequest("boundary selection requires the nc or cc region type")
	}
	if err := s.boundaryCtl[kind].SelectRegion(id); err != nil {
		return err
	}
	s.refresh()
	return nil
}

// SetCenter places the address circle at p, or clears it when p is nil.
// label replaces the coordinate text in the location panel when set.
func (s *Session) SetCenter(ctx context.Context, p *geo.Point, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begin(ctx)

	if s.model.RegionType() != region.TypeAddress {
		return apperrors.BadRequest("setting a center requires the address region type")
	}
	if p != nil && !p.IsValid() {
		return apperrors.Validation(fmt.Sprintf("invalid center %.6f,%.6f", p.Lat, p.Lng))
	}
	s.address.SetCenter(p)
	if p != nil && label != "" {
		s.location.Location = label
	}
	s.refresh()
	return nil
}

// SetRadius changes the address circle radius.
func (s *Session) SetRadius(ctx context.Context, miles float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begin(ctx)

	if !(miles > 0) {
		return apperrors.Validation("radius must be positive")
	}
	s.address.SetRadius(miles)
	s.refresh()
	return nil
}

// ChangeRegionType switches tabs. Any drag in progress is discarded and the
// map is reset.
func (s *Session) ChangeRegionType(ctx context.Context, t region.Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begin(ctx)

	switch t {
	case region.TypeAddress, region.TypeNC, region.TypeCC:
	default:
		return apperrors.Validation(fmt.Sprintf("unknown region type %q", t))
	}

	s.address.Discard()
	s.model.SetRegionType(t)
	s.applyRegionType(t)
	s.reset()
	return nil
}

// SetSelectedTypes replaces the selected request types. Types outside the
// known enumeration are rejected.
func (s *Session) SetSelectedTypes(ctx context.Context, types aggregate.TypeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begin(ctx)

	if s.allTypes.Len() > 0 && !s.allTypes.Covers(types) {
		return apperrors.Validation("unknown request type selected")
	}
	s.selected = types
	s.refresh()
	return nil
}

// Reset clears every selection and zooms out to the whole city.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begin(ctx)
	s.reset()
}

// Counts returns the counts for the current filter and types.
func (s *Session) Counts() (aggregate.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts, s.countErr
}

// LocationInfo returns the location panel contents.
func (s *Session) LocationInfo() LocationInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location
}

// Filter returns the active region filter.
func (s *Session) Filter() region.Filter {
	return s.model.Filter()
}

// RegionType returns the active tab.
func (s *Session) RegionType() region.Type {
	return s.model.RegionType()
}

// Recounts returns how many times counts were computed.
func (s *Session) Recounts() int {
	return s.recounter.Runs()
}

// Scene returns the session's render state.
func (s *Session) Scene() *interaction.Scene {
	return s.scene
}

func (s *Session) begin(ctx context.Context) {
	s.ctx = ctx
	s.lastAccess = time.Now()
}

func (s *Session) reset() {
	s.address.SetCenter(nil)
	for _, c := range s.boundaryCtl {
		c.ClearSelectedRegion()
	}
	s.model.Reset()
	s.location = LocationInfo{Location: InitialLocation}
	s.zoomOut()
	s.refresh()
}

func (s *Session) applyRegionType(t region.Type) {
	if t == region.TypeAddress {
		s.address.Show()
	} else {
		s.address.Hide()
	}
	for kind, c := range s.boundaryCtl {
		if k, ok := t.Kind(); ok && k == kind {
			c.Show()
		} else {
			c.Hide()
		}
	}
}

func (s *Session) zoomOut() {
	if bb, err := s.boundaries.Extent(region.KindNC); err == nil {
		s.scene.FitBounds(bb, interaction.FitPadding)
	}
}

// refresh recounts when the filter or the type set changed.
func (s *Session) refresh() {
	counts, recomputed, err := s.recounter.Update(s.ctx, s.model.Filter(), s.selected)
	if !recomputed {
		return
	}
	if err != nil {
		s.countErr = err
		s.logger.Warn("recount failed", "filter", region.Describe(s.model.Filter()), "error", err.Error())
		return
	}
	s.counts = counts
	s.countErr = nil
	telemetry.AddSpanEvent(s.ctx, "session.recount",
		attribute.String("session.id", s.id),
		attribute.Int("count.total", counts.Total()),
	)
}

func (s *Session) onAddressSelect(sel interaction.Selection) {
	if sel.Center == nil {
		s.model.SelectAddressRegion(nil, sel.RadiusMiles)
		return
	}

	s.model.SelectAddressRegion(sel.Center, sel.RadiusMiles)
	s.metrics.RecordCommit(s.ctx, string(region.TypeAddress))

	info := LocationInfo{
		Location:    coordinateLabel(*sel.Center),
		RadiusMiles: sel.RadiusMiles,
	}
	if b, ok := s.boundaries.Containing(region.KindNC, *sel.Center); ok {
		info.NC = &BoundaryInfo{ID: b.ID, Name: b.Name, URL: b.URL}
	}
	s.location = info
}

// coordinateLabel renders p with hemisphere letters, e.g.
// "34.052200 N 118.243700 W".
func coordinateLabel(p geo.Point) string {
	ns, ew := "N", "E"
	if p.Lat < 0 {
		ns = "S"
	}
	if p.Lng < 0 {
		ew = "W"
	}
	return fmt.Sprintf("%.6f %s %.6f %s", math.Abs(p.Lat), ns, math.Abs(p.Lng), ew)
}

func (s *Session) onBoundarySelect(b region.Boundary) error {
	if _, err := s.model.SelectNamedBoundary(b.Kind, b.ID); err != nil {
		s.metrics.RecordRegionError(s.ctx, apperrors.Code(err))
		return err
	}
	s.metrics.RecordCommit(s.ctx, string(b.Kind))

	info := &BoundaryInfo{ID: b.ID, Name: b.Name, URL: b.URL}
	switch b.Kind {
	case region.KindNC:
		s.location = LocationInfo{NC: info}
	case region.KindCC:
		s.location = LocationInfo{CC: info}
	}
	return nil
}
