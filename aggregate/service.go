package aggregate

import (
	"context"
	"encoding/json"
	"time"

	apperrors "github.com/civicmap/requestmap/pkg/errors"
	"github.com/civicmap/requestmap/pkg/geo"
	"github.com/civicmap/requestmap/pkg/logging"
	"github.com/civicmap/requestmap/pkg/region"
	"github.com/civicmap/requestmap/pkg/telemetry"
)

// Count paths.
const (
	PathAggregate = "aggregate"
	PathLive      = "live"
)

// DefaultCacheTTL is how long live counts stay cached.
const DefaultCacheTTL = 10 * time.Minute

// Counter computes per-type request counts for a region filter.
type Counter interface {
	CountByType(ctx context.Context, filter region.Filter, selected TypeSet) (Counts, error)
}

// Config holds the service dependencies. Requests, Tables and AllTypes are
// read-only after construction and may be shared by every session.
type Config struct {
	Requests []geo.PointFeature
	// Searcher answers spatial queries over Requests. Defaults to a linear
	// scan.
	Searcher geo.Searcher
	Tables   Tables
	// AllTypes is the request type enumeration. Defaults to the types
	// present in Requests and Tables.
	AllTypes TypeSet

	Cache    Cache
	CacheTTL time.Duration

	Logger  *logging.Logger
	Tracer  *Tracer
	Metrics *telemetry.EngineMetrics
}

// Service counts requests per type. Named boundaries read the precomputed
// tables; circles and the unfiltered view are counted from the request
// points.
type Service struct {
	requests []geo.PointFeature
	searcher geo.Searcher
	tables   Tables
	allTypes TypeSet

	cache    Cache
	cacheTTL time.Duration

	logger  *logging.Logger
	tracer  *Tracer
	metrics *telemetry.EngineMetrics
}

// NewService creates a count service. It fails when a table names a type
// outside AllTypes.
func NewService(cfg Config) (*Service, error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("info")
	}
	if cfg.Searcher == nil {
		cfg.Searcher = geo.NewLinearSearcher(cfg.Requests)
	}
	if cfg.AllTypes.Len() == 0 {
		cfg.AllTypes = TypesOf(cfg.Requests, cfg.Tables)
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if err := cfg.Tables.Validate(cfg.AllTypes); err != nil {
		return nil, err
	}

	return &Service{
		requests: cfg.Requests,
		searcher: cfg.Searcher,
		tables:   cfg.Tables,
		allTypes: cfg.AllTypes,
		cache:    cfg.Cache,
		cacheTTL: cfg.CacheTTL,
		logger:   cfg.Logger.WithService("aggregate"),
		tracer:   cfg.Tracer,
		metrics:  cfg.Metrics,
	}, nil
}

// TypesOf collects every request type that appears in requests or tables.
func TypesOf(requests []geo.PointFeature, tables Tables) TypeSet {
	var types []string
	for _, r := range requests {
		types = append(types, r.Type)
	}
	for _, table := range tables {
		for _, row := range table {
			for t := range row {
				types = append(types, t)
			}
		}
	}
	return NewTypeSet(types...)
}

// AllTypes returns the request type enumeration.
func (s *Service) AllTypes() TypeSet {
	return s.allTypes
}

// Tables returns the precomputed tables.
func (s *Service) Tables() Tables {
	return s.tables
}

// CountByType returns request counts per type for the filter, restricted to
// the selected types. Types with no matching request are omitted.
func (s *Service) CountByType(ctx context.Context, filter region.Filter, selected TypeSet) (Counts, error) {
	if filter == nil {
		filter = region.NoFilter{}
	}

	ctx, span := s.tracer.StartSpan(ctx, "aggregate.CountByType")
	defer span.End()

	start := time.Now()
	c := &countVisitor{ctx: ctx, s: s, span: span, selected: selected}
	filter.Accept(c)

	if c.err != nil {
		span.RecordError(c.err)
		s.metrics.RecordRegionError(ctx, apperrors.Code(c.err))
		s.logger.Warn("count failed",
			"filter", region.Describe(filter),
			"code", apperrors.Code(c.err),
			"error", c.err.Error(),
		)
		return nil, c.err
	}

	matched := c.counts.Total()
	span.SetAttributes(telemetry.CountAttributes(c.path, selected.Len(), matched)...)
	s.metrics.RecordRecount(ctx, c.path, time.Since(start), matched)
	s.logger.Debug("counted requests",
		"filter", region.Describe(filter),
		"path", c.path,
		"matched", matched,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return c.counts, nil
}

// countVisitor dispatches on the filter variant.
type countVisitor struct {
	ctx      context.Context
	s        *Service
	span     *Span
	selected TypeSet

	path   string
	counts Counts
	err    error
}

func (v *countVisitor) VisitNone(f region.NoFilter) {
	v.span.SetAttributes(telemetry.RegionAttributes("none", "", "")...)
	v.path = PathLive
	v.counts, v.err = v.s.liveCount(v.ctx, f, v.selected)
}

func (v *countVisitor) VisitAddress(f region.AddressCircle) {
	v.span.SetAttributes(telemetry.RegionAttributes("address", "", "")...)
	v.span.SetAttributes(telemetry.CircleAttributes(f.Center.Lat, f.Center.Lng, f.RadiusMiles)...)
	v.path = PathLive
	v.counts, v.err = v.s.liveCount(v.ctx, f, v.selected)
}

func (v *countVisitor) VisitBoundary(f region.NamedBoundary) {
	v.span.SetAttributes(telemetry.RegionAttributes("boundary", string(f.Kind), f.ID)...)
	v.path = PathAggregate
	v.counts, v.err = v.s.boundaryCount(f, v.selected)
}

// boundaryCount projects the precomputed row onto the selected types.
func (s *Service) boundaryCount(f region.NamedBoundary, selected TypeSet) (Counts, error) {
	row, err := s.tables.Lookup(f.Kind, f.ID)
	if err != nil {
		return nil, err
	}
	counts := make(Counts, len(row))
	for t, n := range row {
		if selected.Contains(t) {
			counts[t] = n
		}
	}
	return counts, nil
}

// liveCount filters the request points and tallies them, going through the
// cache when one is configured.
func (s *Service) liveCount(ctx context.Context, f region.Filter, selected TypeSet) (Counts, error) {
	key := ""
	if s.cache != nil {
		key = CacheKey(f, selected)
		if counts, ok := s.cached(ctx, key); ok {
			return counts, nil
		}
	}

	points := s.requests
	if g := f.Geometry(); g != nil {
		var err error
		points, err = s.searcher.Within(g)
		if err != nil {
			return nil, err
		}
	}

	filterTypes := !selected.Covers(s.allTypes)
	counts := make(Counts)
	for _, p := range points {
		if filterTypes && !selected.Contains(p.Type) {
			continue
		}
		counts[p.Type]++
	}

	if s.cache != nil {
		s.store(ctx, key, counts)
	}
	return counts, nil
}

func (s *Service) cached(ctx context.Context, key string) (Counts, bool) {
	var data []byte
	err := telemetry.WrapDatabaseOperation(ctx, s.tracer.otelTracer(), "redis", "GET", "counts", func(ctx context.Context) error {
		var err error
		data, err = s.cache.Get(ctx, key)
		return err
	})
	if err != nil {
		s.logger.Warn("count cache get failed", "key", key, "error", err.Error())
		return nil, false
	}
	if data == nil {
		s.metrics.RecordCacheLookup(ctx, false)
		return nil, false
	}

	var counts Counts
	if err := json.Unmarshal(data, &counts); err != nil {
		s.logger.Warn("count cache entry unreadable", "key", key, "error", err.Error())
		return nil, false
	}
	s.metrics.RecordCacheLookup(ctx, true)
	return counts, true
}

func (s *Service) store(ctx context.Context, key string, counts Counts) {
	data, err := json.Marshal(counts)
	if err != nil {
		return
	}
	err = telemetry.WrapDatabaseOperation(ctx, s.tracer.otelTracer(), "redis", "SET", "counts", func(ctx context.Context) error {
		return s.cache.Set(ctx, key, data, s.cacheTTL)
	})
	if err != nil {
		s.logger.Warn("count cache set failed", "key", key, "error", err.Error())
	}
}
