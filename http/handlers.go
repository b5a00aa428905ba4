package http

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/geojson"

	"github.com/civicmap/requestmap/pkg/aggregate"
	apperrors "github.com/civicmap/requestmap/pkg/errors"
	"github.com/civicmap/requestmap/pkg/geo"
	"github.com/civicmap/requestmap/pkg/logging"
	"github.com/civicmap/requestmap/pkg/region"
	"github.com/civicmap/requestmap/pkg/session"
	"github.com/civicmap/requestmap/pkg/validation"
)

// Pagination bounds for boundary listings.
const (
	defaultPerPage = 50
	maxPerPage     = 200
)

// HandlerConfig holds the handler dependencies.
type HandlerConfig struct {
	Service    *aggregate.Service
	Boundaries *region.BoundarySet
	Sessions   *session.Store
	// DefaultRadiusMiles applies to address regions sent without a radius.
	DefaultRadiusMiles float64
	Logger             *logging.Logger
}

// Handler serves the count, boundary and session endpoints.
type Handler struct {
	service    *aggregate.Service
	boundaries *region.BoundarySet
	sessions   *session.Store
	radius     float64
	logger     *logging.Logger
}

// NewHandler creates a handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("info")
	}
	if cfg.DefaultRadiusMiles <= 0 {
		cfg.DefaultRadiusMiles = 1
	}
	return &Handler{
		service:    cfg.Service,
		boundaries: cfg.Boundaries,
		sessions:   cfg.Sessions,
		radius:     cfg.DefaultRadiusMiles,
		logger:     cfg.Logger.WithService("api"),
	}
}

// RegionSpec describes a region filter. An empty type means no filter. An
// address region without a center is also no filter.
type RegionSpec struct {
	Type        string     `json:"type" validate:"omitempty,region_type"`
	Center      *geo.Point `json:"center,omitempty"`
	RadiusMiles float64    `json:"radius_miles,omitempty" validate:"omitempty,radius_miles"`
	ID          string     `json:"id,omitempty" validate:"required_if=Type nc,required_if=Type cc"`
}

// CountRequest is the body of POST /v1/counts.
type CountRequest struct {
	Region RegionSpec `json:"region"`
	// Types restricts the count. Empty selects every type.
	Types []string `json:"types,omitempty"`
}

// CountResponse carries per-type counts for a region.
type CountResponse struct {
	Filter string           `json:"filter"`
	Types  []string         `json:"types"`
	Counts aggregate.Counts `json:"counts"`
	Total  int              `json:"total"`
}

// CircleRequest is the body of POST /v1/circle.
type CircleRequest struct {
	Center      *geo.Point `json:"center" validate:"required"`
	RadiusMiles float64    `json:"radius_miles,omitempty" validate:"omitempty,radius_miles"`
}

// CircleResponse carries the circle and its inverse mask.
type CircleResponse struct {
	Circle *geojson.Feature `json:"circle"`
	Mask   *geojson.Feature `json:"mask"`
}

// LocateResponse names the boundaries containing a point.
type LocateResponse struct {
	NC *session.BoundaryInfo `json:"nc,omitempty"`
	CC *session.BoundaryInfo `json:"cc,omitempty"`
}

// Types lists the request type enumeration.
func (h *Handler) Types(w http.ResponseWriter, r *http.Request) {
	OK(w, h.service.AllTypes().Slice())
}

// Counts counts requests per type inside a region.
func (h *Handler) Counts(w http.ResponseWriter, r *http.Request) {
	var req CountRequest
	if !validation.DecodeAndValidate(w, r, &req) {
		return
	}

	filter, err := h.filterFor(req.Region)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}
	selected, err := h.typeSet(req.Types)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}

	counts, err := h.service.CountByType(r.Context(), filter, selected)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}
	OK(w, CountResponse{
		Filter: region.Describe(filter),
		Types:  selected.Slice(),
		Counts: counts,
		Total:  counts.Total(),
	})
}

// Boundaries lists the boundaries of a kind, paginated.
func (h *Handler) Boundaries(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}
	page, perPage, err := pageParams(r)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}

	ids := h.boundaries.IDs(kind)
	// Pages past the end are empty; the bound check keeps the offset from
	// overflowing for huge page numbers.
	start := len(ids)
	if page-1 <= len(ids)/perPage {
		start = min((page-1)*perPage, len(ids))
	}
	end := start + min(perPage, len(ids)-start)

	items := make([]session.BoundaryInfo, 0, end-start)
	for _, id := range ids[start:end] {
		b, err := h.boundaries.Lookup(kind, id)
		if err != nil {
			Error(w, r, h.logger, err)
			return
		}
		items = append(items, session.BoundaryInfo{ID: b.ID, Name: b.Name, URL: b.URL})
	}
	Paginated(w, items, page, perPage, len(ids))
}

// Boundary returns one boundary as a GeoJSON feature.
func (h *Handler) Boundary(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}
	b, err := h.boundaries.Lookup(kind, chi.URLParam(r, "id"))
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}
	OK(w, geo.NewGeoJSONFeature(b.Geometry, map[string]interface{}{
		"id":   b.ID,
		"kind": string(b.Kind),
		"name": b.Name,
		"url":  b.URL,
	}))
}

// Extent returns the bounding box of every boundary of a kind.
func (h *Handler) Extent(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}
	bb, err := h.boundaries.Extent(kind)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}
	OK(w, bb)
}

// Locate names the neighborhood council and council district at a point.
func (h *Handler) Locate(w http.ResponseWriter, r *http.Request) {
	p, err := pointParams(r)
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}

	var resp LocateResponse
	if b, ok := h.boundaries.Containing(region.KindNC, p); ok {
		resp.NC = &session.BoundaryInfo{ID: b.ID, Name: b.Name, URL: b.URL}
	}
	if b, ok := h.boundaries.Containing(region.KindCC, p); ok {
		resp.CC = &session.BoundaryInfo{ID: b.ID, Name: b.Name, URL: b.URL}
	}
	OK(w, resp)
}

// Circle builds the address circle and its mask.
func (h *Handler) Circle(w http.ResponseWriter, r *http.Request) {
	var req CircleRequest
	if !validation.DecodeAndValidate(w, r, &req) {
		return
	}
	if !req.Center.IsValid() {
		Error(w, r, h.logger, invalidCenter())
		return
	}
	radius := req.RadiusMiles
	if radius == 0 {
		radius = h.radius
	}

	c := region.NewAddressCircle(*req.Center, radius)
	OK(w, CircleResponse{
		Circle: geo.NewGeoJSONFeature(c.Polygon(), map[string]interface{}{"radius_miles": radius}),
		Mask:   geo.NewGeoJSONFeature(c.Mask(), nil),
	})
}

func (h *Handler) filterFor(rs RegionSpec) (region.Filter, error) {
	t := region.Type(rs.Type)
	if t == "" {
		return region.NoFilter{}, nil
	}

	model := region.NewModel(h.boundaries, t)
	if t == region.TypeAddress {
		if rs.Center != nil && !rs.Center.IsValid() {
			return nil, invalidCenter()
		}
		radius := rs.RadiusMiles
		if radius == 0 {
			radius = h.radius
		}
		return model.SelectAddressRegion(rs.Center, radius), nil
	}

	kind, _ := t.Kind()
	return model.SelectNamedBoundary(kind, rs.ID)
}

func (h *Handler) typeSet(types []string) (aggregate.TypeSet, error) {
	all := h.service.AllTypes()
	if len(types) == 0 {
		return all, nil
	}

	selected := aggregate.NewTypeSet(types...)
	if all.Covers(selected) {
		return selected, nil
	}
	var unknown []string
	for _, t := range selected.Slice() {
		if !all.Contains(t) {
			unknown = append(unknown, t)
		}
	}
	sort.Strings(unknown)
	details := make(map[string]string, len(unknown))
	for _, t := range unknown {
		details[t] = "unknown request type"
	}
	return aggregate.TypeSet{}, apperrors.ValidationWithDetails("unknown request types", details)
}

func invalidCenter() error {
	return apperrors.ValidationWithDetails("invalid center", map[string]string{
		"center": "must be a valid lat/lng",
	})
}

func kindParam(r *http.Request) (region.Kind, error) {
	kind, err := region.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		return "", apperrors.Validation(err.Error())
	}
	return kind, nil
}

func pageParams(r *http.Request) (page, perPage int, err error) {
	page, perPage = 1, defaultPerPage
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil || page < 1 {
			return 0, 0, apperrors.Validation("page must be a positive integer")
		}
	}
	if v := q.Get("per_page"); v != "" {
		if perPage, err = strconv.Atoi(v); err != nil || perPage < 1 || perPage > maxPerPage {
			return 0, 0, apperrors.Validation("per_page must be between 1 and " + strconv.Itoa(maxPerPage))
		}
	}
	return page, perPage, nil
}

func pointParams(r *http.Request) (geo.Point, error) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil || validation.ValidateVar(lat, "latitude") != nil {
		return geo.Point{}, apperrors.ValidationWithDetails("invalid point", map[string]string{"lat": "must be a valid latitude (-90 to 90)"})
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil || validation.ValidateVar(lng, "longitude") != nil {
		return geo.Point{}, apperrors.ValidationWithDetails("invalid point", map[string]string{"lng": "must be a valid longitude (-180 to 180)"})
	}
	return geo.Point{Lat: lat, Lng: lng}, nil
}
