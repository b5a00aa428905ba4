package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/civicmap/requestmap/pkg/aggregate"
	apperrors "github.com/civicmap/requestmap/pkg/errors"
	"github.com/civicmap/requestmap/pkg/geo"
	"github.com/civicmap/requestmap/pkg/interaction"
	"github.com/civicmap/requestmap/pkg/region"
	"github.com/civicmap/requestmap/pkg/session"
	"github.com/civicmap/requestmap/pkg/telemetry"
	"github.com/civicmap/requestmap/pkg/validation"
)

// EventRequest is one pointer or touch event forwarded from the map.
type EventRequest struct {
	Type    string                  `json:"type" validate:"required,oneof=pointerdown pointermove pointerup touchstart touchmove touchend cancel"`
	LngLat  geo.Point               `json:"lngLat"`
	Screen  interaction.ScreenPoint `json:"screenPoint"`
	Touches int                     `json:"touches,omitempty" validate:"min=0"`
}

// EventResponse reports whether the event was consumed and the new state.
type EventResponse struct {
	Consumed bool          `json:"consumed"`
	State    session.State `json:"state"`
}

// PointRequest carries a map click.
type PointRequest struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

// RegionTypeRequest switches the session tab.
type RegionTypeRequest struct {
	RegionType string `json:"regionType" validate:"required,region_type"`
}

// SelectRequest selects a boundary on the active tab.
type SelectRequest struct {
	ID string `json:"id" validate:"required"`
}

// CenterRequest places or clears the address circle.
type CenterRequest struct {
	Center *geo.Point `json:"center"`
	Label  string     `json:"label,omitempty" validate:"max=200"`
}

// RadiusRequest changes the address circle radius.
type RadiusRequest struct {
	RadiusMiles float64 `json:"radius_miles" validate:"required,radius_miles"`
}

// TypesRequest replaces the selected request types.
type TypesRequest struct {
	Types []string `json:"types" validate:"dive,required"`
}

// CreateSession starts a new map session.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Create(r.Context())
	if err != nil {
		Error(w, r, h.logger, err)
		return
	}
	w.Header().Set("Location", "/v1/sessions/"+sess.ID())
	Created(w, sess.Snapshot())
}

// GetSession returns the session state.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	OK(w, sess.Snapshot())
}

// DeleteSession ends a session.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.sessions.Delete(sess.ID())
	NoContent(w)
}

// SessionEvent forwards a pointer or touch event.
func (h *Handler) SessionEvent(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req EventRequest
	if !validation.DecodeAndValidate(w, r, &req) {
		return
	}

	consumed := sess.HandleEvent(r.Context(), interaction.Event{
		Type:    interaction.EventType(req.Type),
		LngLat:  req.LngLat,
		Screen:  req.Screen,
		Touches: req.Touches,
	})
	OK(w, EventResponse{Consumed: consumed, State: sess.Snapshot()})
}

// SessionClick selects the boundary under a clicked point.
func (h *Handler) SessionClick(w http.ResponseWriter, r *http.Request) {
	var req PointRequest
	h.update(w, r, &req, func(sess *session.Session) error {
		return sess.Click(r.Context(), geo.Point{Lat: req.Lat, Lng: req.Lng})
	})
}

// SessionRegionType switches tabs.
func (h *Handler) SessionRegionType(w http.ResponseWriter, r *http.Request) {
	var req RegionTypeRequest
	h.update(w, r, &req, func(sess *session.Session) error {
		return sess.ChangeRegionType(r.Context(), region.Type(req.RegionType))
	})
}

// SessionSelect selects a boundary by id.
func (h *Handler) SessionSelect(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	h.update(w, r, &req, func(sess *session.Session) error {
		return sess.SelectRegion(r.Context(), req.ID)
	})
}

// SessionCenter places or clears the address circle.
func (h *Handler) SessionCenter(w http.ResponseWriter, r *http.Request) {
	var req CenterRequest
	h.update(w, r, &req, func(sess *session.Session) error {
		return sess.SetCenter(r.Context(), req.Center, req.Label)
	})
}

// SessionRadius changes the circle radius.
func (h *Handler) SessionRadius(w http.ResponseWriter, r *http.Request) {
	var req RadiusRequest
	h.update(w, r, &req, func(sess *session.Session) error {
		return sess.SetRadius(r.Context(), req.RadiusMiles)
	})
}

// SessionTypes replaces the selected request types.
func (h *Handler) SessionTypes(w http.ResponseWriter, r *http.Request) {
	var req TypesRequest
	h.update(w, r, &req, func(sess *session.Session) error {
		return sess.SetSelectedTypes(r.Context(), aggregate.NewTypeSet(req.Types...))
	})
}

// SessionReset clears every selection.
func (h *Handler) SessionReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Reset(r.Context())
	OK(w, sess.Snapshot())
}

// update decodes the body into req, applies fn and responds with the new
// state.
func (h *Handler) update(w http.ResponseWriter, r *http.Request, req interface{}, fn func(*session.Session) error) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if !validation.DecodeAndValidate(w, r, req) {
		return
	}
	if err := fn(sess); err != nil {
		Error(w, r, h.logger, err)
		return
	}
	OK(w, sess.Snapshot())
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	if validation.ValidateVar(id, "uuid4") != nil {
		Error(w, r, h.logger, apperrors.NotFound("session"))
		return nil, false
	}
	telemetry.SetSpanAttributes(r.Context(), attribute.String("session.id", id))
	sess, err := h.sessions.Get(id)
	if err != nil {
		Error(w, r, h.logger, err)
		return nil, false
	}
	return sess, true
}
