// Package bootstrap wires the request map service from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/civicmap/requestmap/pkg/aggregate"
	"github.com/civicmap/requestmap/pkg/config"
	"github.com/civicmap/requestmap/pkg/database"
	"github.com/civicmap/requestmap/pkg/dataset"
	"github.com/civicmap/requestmap/pkg/geo"
	"github.com/civicmap/requestmap/pkg/health"
	apihttp "github.com/civicmap/requestmap/pkg/http"
	"github.com/civicmap/requestmap/pkg/logging"
	"github.com/civicmap/requestmap/pkg/resilience"
	"github.com/civicmap/requestmap/pkg/session"
	"github.com/civicmap/requestmap/pkg/telemetry"
)

// Service holds all initialized components.
type Service struct {
	Config   *config.Config
	Logger   *logging.Logger
	Dataset  *dataset.Dataset
	Counts   *aggregate.Service
	Sessions *session.Store
	Health   *health.Checker
	Server   *apihttp.Server

	tracing     *telemetry.TracingProvider
	metrics     *telemetry.MetricsProvider
	redis       *database.RedisClient
	rateLimiter *apihttp.RateLimiter
}

// Initialize loads configuration from Key Vault (production) or environment
// variables (development) and builds the service.
func Initialize(ctx context.Context, serviceName string) (*Service, error) {
	cfg, err := config.Load(serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return New(ctx, cfg)
}

// New builds the service from cfg. On error everything created so far is
// released.
func New(ctx context.Context, cfg *config.Config) (_ *Service, err error) {
	logger := logging.NewLogger(cfg.LogLevel).With("service", cfg.ServiceName, "environment", cfg.Environment)
	logger.Info("starting", "version", cfg.Version, "key_vault", valueOrNone(cfg.KeyVaultName))

	svc := &Service{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = svc.Close(context.Background())
		}
	}()

	tracer, err := svc.initTracing(ctx)
	if err != nil {
		return nil, err
	}
	if svc.metrics, err = telemetry.NewMetricsProvider(ctx, telemetry.MetricsConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
	}); err != nil {
		return nil, err
	}
	meter := svc.metrics.Meter()
	engineMetrics, err := telemetry.NewEngineMetrics(meter)
	if err != nil {
		return nil, err
	}
	httpMetrics, err := telemetry.NewHTTPMetrics(meter)
	if err != nil {
		return nil, err
	}

	if svc.Dataset, err = loadDataset(ctx, cfg, logger); err != nil {
		return nil, err
	}

	cache, breaker, err := svc.initCache(ctx, meter)
	if err != nil {
		return nil, err
	}

	requests := svc.Dataset.Requests
	if svc.Counts, err = aggregate.NewService(aggregate.Config{
		Requests: requests,
		Searcher: geo.NewH3Searcher(requests, geo.H3Resolution(cfg.H3Resolution)),
		Tables:   svc.Dataset.Tables,
		Cache:    cache,
		CacheTTL: cfg.CacheTTL,
		Logger:   logger,
		Tracer:   aggregate.NewTracer(tracer),
		Metrics:  engineMetrics,
	}); err != nil {
		return nil, fmt.Errorf("failed to create count service: %w", err)
	}

	svc.Sessions = session.NewStore(session.Config{
		Boundaries:  svc.Dataset.Boundaries,
		Counter:     svc.Counts,
		AllTypes:    svc.Counts.AllTypes(),
		RadiusMiles: cfg.DefaultRadiusMiles,
		Logger:      logger,
		Metrics:     engineMetrics,
	}, cfg.SessionIdleTimeout)

	svc.Health = health.NewChecker(cfg.Version)
	svc.Health.AddCheck("datasets", health.DatasetCheck(svc.Dataset.Boundaries, func() int { return len(requests) }), true)
	if svc.redis != nil {
		svc.Health.AddCheck("redis", health.RedisCheck(svc.redis, 2*time.Second), false)
		svc.Health.AddCheck("redis_breaker", health.BreakerCheck(breaker), false)
	}

	if cfg.RateLimitEnabled {
		rl := apihttp.DefaultRateLimiterConfig()
		rl.RequestsPerSecond = cfg.RateLimitRPS
		rl.BurstSize = cfg.RateLimitBurst
		rl.OnLimitExceeded = func(r *http.Request, key string) {
			logger.Warn("rate limit exceeded", "key", key, "path", r.URL.Path)
		}
		svc.rateLimiter = apihttp.NewRateLimiter(rl)
	}

	router := apihttp.NewRouter(apihttp.RouterConfig{
		Handler: apihttp.NewHandler(apihttp.HandlerConfig{
			Service:            svc.Counts,
			Boundaries:         svc.Dataset.Boundaries,
			Sessions:           svc.Sessions,
			DefaultRadiusMiles: cfg.DefaultRadiusMiles,
			Logger:             logger,
		}),
		Health:         svc.Health,
		Logger:         logger,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:    svc.rateLimiter,
		Tracer:         tracer,
		Metrics:        httpMetrics,
		RequestTimeout: cfg.WriteTimeout,
	})

	svc.Server = apihttp.NewServer(apihttp.ServerConfig{
		Port:            cfg.Port,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		IdleTimeout:     cfg.IdleTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, router, logger)

	return svc, nil
}

// Run sweeps idle sessions and serves HTTP until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	go s.Sessions.Run(ctx, s.Config.SessionSweepInterval)
	return s.Server.Run(ctx)
}

// Close releases the cache connection and flushes telemetry.
func (s *Service) Close(ctx context.Context) error {
	var errs []error
	if s.rateLimiter != nil {
		s.rateLimiter.Close()
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.metrics != nil {
		errs = append(errs, s.metrics.Shutdown(ctx))
	}
	if s.tracing != nil {
		errs = append(errs, s.tracing.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// initTracing exports spans when an OTLP endpoint is configured and
// otherwise returns a no-op tracer.
func (s *Service) initTracing(ctx context.Context) (trace.Tracer, error) {
	cfg := s.Config
	if cfg.OTLPEndpoint == "" {
		return noop.NewTracerProvider().Tracer(cfg.ServiceName), nil
	}
	tp, err := telemetry.NewTracingProvider(ctx, telemetry.TracingConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		Endpoint:       cfg.OTLPEndpoint,
		SampleRate:     cfg.TraceSampleRate,
		Insecure:       cfg.OTLPInsecure,
	})
	if err != nil {
		return nil, err
	}
	s.tracing = tp
	s.Logger.Info("tracing enabled", "endpoint", cfg.OTLPEndpoint, "sample_rate", cfg.TraceSampleRate)
	return tp.Tracer(), nil
}

// initCache connects the shared count cache. Without a Redis host counts
// are cached in process and the returned breaker is nil.
func (s *Service) initCache(ctx context.Context, meter metric.Meter) (aggregate.Cache, *resilience.CircuitBreaker, error) {
	cfg := s.Config
	if cfg.RedisHost == "" {
		s.Logger.Info("count cache in process")
		return aggregate.NewInMemoryCache(), nil, nil
	}

	dbMetrics, err := telemetry.NewDatabaseMetrics(meter, "redis")
	if err != nil {
		return nil, nil, err
	}
	rc := database.DefaultRedisConfig()
	rc.Host = cfg.RedisHost
	rc.Port = cfg.RedisPort
	rc.Password = cfg.RedisPassword
	rc.DB = cfg.RedisDB
	rc.TLSEnabled = cfg.RedisTLS
	if s.redis, err = database.NewRedisClient(ctx, rc, dbMetrics); err != nil {
		return nil, nil, err
	}
	s.Logger.Info("count cache in redis", "addr", rc.Addr())

	bc := resilience.DefaultCircuitBreakerConfig("redis")
	bc.OnStateChange = func(name string, from, to resilience.CircuitState) {
		s.Logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
	}
	breaker := resilience.NewCircuitBreaker(bc)
	cache := aggregate.NewGuardedCache(aggregate.NewRedisCache(s.redis.Client(), cfg.ServiceName+":counts:"), breaker)
	return cache, breaker, nil
}

func loadDataset(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*dataset.Dataset, error) {
	var source dataset.Source
	if cfg.UseBlobDatasets() {
		blob, err := dataset.NewBlobSource(dataset.BlobConfig{
			ConnectionString: cfg.BlobConnectionString,
			ContainerURL:     cfg.BlobContainerURL,
			ContainerName:    cfg.BlobContainerName,
		})
		if err != nil {
			return nil, err
		}
		source = blob
	} else {
		source = dataset.NewDirSource(cfg.DatasetDir)
	}

	files := dataset.Files{
		NCBoundaries: cfg.NCFile,
		CCBoundaries: cfg.CCFile,
		Requests:     cfg.RequestsFile,
		NCCounts:     cfg.NCCountsFile,
		CCCounts:     cfg.CCCountsFile,
	}
	ds, err := dataset.NewLoader(source, files, logger).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load datasets from %s: %w", source, err)
	}
	return ds, nil
}

func valueOrNone(s string) string {
	if s == "" {
		return "(none - using env vars)"
	}
	return s
}
