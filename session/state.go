package session

import (
	"github.com/paulmach/orb/geojson"

	"github.com/civicmap/requestmap/pkg/aggregate"
	apperrors "github.com/civicmap/requestmap/pkg/errors"
	"github.com/civicmap/requestmap/pkg/geo"
	"github.com/civicmap/requestmap/pkg/interaction"
	"github.com/civicmap/requestmap/pkg/region"
)

// State is a point-in-time view of a session for clients.
type State struct {
	ID            string                      `json:"id"`
	RegionType    region.Type                 `json:"regionType"`
	Filter        string                      `json:"filter"`
	DragState     string                      `json:"dragState"`
	SelectedTypes []string                    `json:"selectedTypes"`
	Counts        aggregate.Counts            `json:"counts"`
	CountError    *CountError                 `json:"countError,omitempty"`
	Location      LocationInfo                `json:"locationInfo"`
	HoveredRegion string                      `json:"hoveredRegionName,omitempty"`
	CanReset      bool                        `json:"canReset"`
	Cursor        interaction.Cursor          `json:"cursor"`
	Viewport      *interaction.Viewport       `json:"viewport,omitempty"`
	Layers        map[string]bool             `json:"layers"`
	Sources       map[string]*geojson.Feature `json:"sources"`
	Selected      map[region.Kind][]string    `json:"selectedFeatures"`
}

// CountError explains why counts are unavailable.
type CountError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Snapshot returns the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	filter := s.model.Filter()
	st := State{
		ID:            s.id,
		RegionType:    s.model.RegionType(),
		Filter:        region.Describe(filter),
		DragState:     s.address.State().String(),
		SelectedTypes: s.selected.Slice(),
		Counts:        s.counts,
		Location:      s.location,
		HoveredRegion: s.hovered,
		CanReset:      !region.Equal(filter, region.NoFilter{}),
		Cursor:        s.scene.Cursor(),
		Viewport:      s.scene.Viewport(),
		Layers:        s.scene.Layers(),
		Sources:       make(map[string]*geojson.Feature),
		Selected:      make(map[region.Kind][]string),
	}
	if s.countErr != nil {
		st.CountError = &CountError{Code: apperrors.Code(s.countErr), Message: s.countErr.Error()}
	}
	for name, g := range s.scene.Sources() {
		st.Sources[name] = geo.NewGeoJSONFeature(g, nil)
	}
	for kind, c := range s.boundaryCtl {
		st.Selected[kind] = s.scene.Selected(c.Source())
	}
	return st
}
