package aggregate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/civicmap/requestmap/pkg/errors"
	"github.com/civicmap/requestmap/pkg/geo"
	"github.com/civicmap/requestmap/pkg/logging"
	"github.com/civicmap/requestmap/pkg/region"
)

func scenarioRequests() []geo.PointFeature {
	return []geo.PointFeature{
		{ID: "1", Type: "pothole", Point: geo.Point{Lng: 0, Lat: 0}},
		{ID: "2", Type: "pothole", Point: geo.Point{Lng: 0.005, Lat: 0.005}},
		{ID: "3", Type: "graffiti", Point: geo.Point{Lng: 5, Lat: 5}},
		{ID: "4", Type: "bulky items", Point: geo.Point{Lng: -40, Lat: 12}},
		{ID: "5", Type: "graffiti", Point: geo.Point{Lng: 100, Lat: -30}},
	}
}

func scenarioTables() Tables {
	return Tables{
		region.KindCC: Table{
			"5": {"pothole": 12, "graffiti": 3},
		},
		region.KindNC: Table{
			"10": {"bulky items": 4},
		},
	}
}

func newTestService(t *testing.T, cfg Config) *Service {
	t.Helper()
	if cfg.Requests == nil {
		cfg.Requests = scenarioRequests()
	}
	if cfg.Tables == nil {
		cfg.Tables = scenarioTables()
	}
	cfg.Logger = logging.NewLogger("error")
	s, err := NewService(cfg)
	require.NoError(t, err)
	return s
}

func allScenarioTypes() TypeSet {
	return NewTypeSet("pothole", "graffiti", "bulky items")
}

func TestCountByType_CircleScenario(t *testing.T) {
	searchers := map[string]func([]geo.PointFeature) geo.Searcher{
		"linear": func(p []geo.PointFeature) geo.Searcher { return geo.NewLinearSearcher(p) },
		"h3":     func(p []geo.PointFeature) geo.Searcher { return geo.NewH3Searcher(p, geo.H3ResolutionBlock) },
	}

	for name, mk := range searchers {
		t.Run(name, func(t *testing.T) {
			requests := scenarioRequests()
			s := newTestService(t, Config{Requests: requests, Searcher: mk(requests)})

			filter := region.NewAddressCircle(geo.Point{Lng: 0, Lat: 0}, 1)
			counts, err := s.CountByType(context.Background(), filter, allScenarioTypes())
			require.NoError(t, err)

			assert.Equal(t, 2, counts.Get("pothole"))
			assert.Equal(t, 0, counts.Get("graffiti"))
			assert.Equal(t, 0, counts.Get("bulky items"))
			assert.Equal(t, 2, counts.Total())
		})
	}
}

func TestCountByType_NamedBoundaryScenario(t *testing.T) {
	s := newTestService(t, Config{})
	filter := region.NewNamedBoundary(region.Boundary{Kind: region.KindCC, ID: "5"})

	counts, err := s.CountByType(context.Background(), filter, NewTypeSet("pothole"))
	require.NoError(t, err)
	assert.Equal(t, Counts{"pothole": 12}, counts)
}

func TestCountByType_MissingAggregate(t *testing.T) {
	s := newTestService(t, Config{})
	filter := region.NewNamedBoundary(region.Boundary{Kind: region.KindCC, ID: "14"})

	_, err := s.CountByType(context.Background(), filter, allScenarioTypes())
	require.Error(t, err)
	assert.True(t, apperrors.IsMissingAggregate(err))
}

func TestCountByType_NoFilter(t *testing.T) {
	s := newTestService(t, Config{})

	tests := []struct {
		name     string
		selected TypeSet
		want     Counts
	}{
		{
			name:     "all types",
			selected: allScenarioTypes(),
			want:     Counts{"pothole": 2, "graffiti": 2, "bulky items": 1},
		},
		{
			name:     "strict subset",
			selected: NewTypeSet("graffiti"),
			want:     Counts{"graffiti": 2},
		},
		{
			name:     "nothing selected",
			selected: NewTypeSet(),
			want:     Counts{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counts, err := s.CountByType(context.Background(), region.NoFilter{}, tt.selected)
			require.NoError(t, err)
			assert.Equal(t, tt.want, counts)
		})
	}
}

func TestCountByType_NilFilterIsNoFilter(t *testing.T) {
	s := newTestService(t, Config{})

	counts, err := s.CountByType(context.Background(), nil, allScenarioTypes())
	require.NoError(t, err)
	assert.Equal(t, 5, counts.Total())
}

func TestCountByType_InvalidCircle(t *testing.T) {
	s := newTestService(t, Config{})

	_, err := s.CountByType(context.Background(), region.NewAddressCircle(geo.Point{}, 0), allScenarioTypes())
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidGeometry(err))
}

func TestCountByType_TypeFilterAndGeoCommute(t *testing.T) {
	s := newTestService(t, Config{})
	filter := region.NewAddressCircle(geo.Point{Lng: 0, Lat: 0}, 1)

	counts, err := s.CountByType(context.Background(), filter, NewTypeSet("graffiti"))
	require.NoError(t, err)
	assert.Equal(t, Counts{}, counts)
}

func TestNewService_RejectsUnknownTableType(t *testing.T) {
	_, err := NewService(Config{
		Requests: scenarioRequests(),
		Tables:   Tables{region.KindNC: Table{"1": {"abandoned vehicle": 1}}},
		AllTypes: allScenarioTypes(),
		Logger:   logging.NewLogger("error"),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestTypesOf(t *testing.T) {
	got := TypesOf(scenarioRequests(), Tables{region.KindNC: Table{"1": {"homeless encampment": 2}}})
	assert.Equal(t, []string{"bulky items", "graffiti", "homeless encampment", "pothole"}, got.Slice())
}

func TestTypeSet(t *testing.T) {
	a := NewTypeSet("b", "a", "b")
	assert.Equal(t, 2, a.Len())
	assert.True(t, a.Contains("a"))
	assert.False(t, a.Contains("c"))
	assert.True(t, a.Equal(NewTypeSet("a", "b")))
	assert.False(t, a.Equal(NewTypeSet("a")))
	assert.True(t, a.Covers(NewTypeSet("a")))
	assert.False(t, NewTypeSet("a").Covers(a))
	assert.Equal(t, []string{"a", "b", "c"}, a.Union(NewTypeSet("c")).Slice())
	assert.True(t, TypeSet{}.Equal(NewTypeSet()))
}

type countingCounter struct {
	calls int
	err   error
}

func (c *countingCounter) CountByType(ctx context.Context, filter region.Filter, selected TypeSet) (Counts, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return Counts{"pothole": c.calls}, nil
}

func TestRecounter_RecountsOnlyOnValueChange(t *testing.T) {
	ctx := context.Background()
	counter := &countingCounter{}
	r := NewRecounter(counter)

	center := geo.Point{Lng: 1, Lat: 1}
	types := NewTypeSet("pothole", "graffiti")

	_, recomputed, err := r.Update(ctx, region.NewAddressCircle(center, 1), types)
	require.NoError(t, err)
	assert.True(t, recomputed)

	// Fresh values equal to the previous ones do not recount.
	_, recomputed, err = r.Update(ctx, region.NewAddressCircle(center, 1), NewTypeSet("graffiti", "pothole"))
	require.NoError(t, err)
	assert.False(t, recomputed)
	assert.Equal(t, 1, counter.calls)

	_, recomputed, _ = r.Update(ctx, region.NewAddressCircle(center, 2), types)
	assert.True(t, recomputed)

	_, recomputed, _ = r.Update(ctx, region.NewAddressCircle(center, 2), NewTypeSet("pothole"))
	assert.True(t, recomputed)
	assert.Equal(t, 3, counter.calls)
	assert.Equal(t, 3, r.Runs())

	r.Invalidate()
	_, recomputed, _ = r.Update(ctx, region.NewAddressCircle(center, 2), NewTypeSet("pothole"))
	assert.True(t, recomputed)
}

func TestRecounter_ErrorKeepsPreviousState(t *testing.T) {
	ctx := context.Background()
	counter := &countingCounter{}
	r := NewRecounter(counter)

	first, _, err := r.Update(ctx, region.NoFilter{}, NewTypeSet("pothole"))
	require.NoError(t, err)

	counter.err = errors.New("boom")
	_, _, err = r.Update(ctx, region.NamedBoundary{Kind: region.KindNC, ID: "1"}, NewTypeSet("pothole"))
	require.Error(t, err)
	assert.Equal(t, first, r.Counts())

	counter.err = nil
	_, recomputed, err := r.Update(ctx, region.NamedBoundary{Kind: region.KindNC, ID: "1"}, NewTypeSet("pothole"))
	require.NoError(t, err)
	assert.True(t, recomputed, "failed inputs are retried")
}
