// Package telemetry provides observability utilities.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string // OTLP endpoint
	Insecure       bool   // Use insecure connection
	ExportInterval time.Duration
}

// MetricsProvider provides metrics functionality.
type MetricsProvider struct {
	provider *sdkmetric.MeterProvider
	meter    metric.Meter
	config   MetricsConfig
}

// NewMetricsProvider creates a new metrics provider.
func NewMetricsProvider(ctx context.Context, config MetricsConfig) (*MetricsProvider, error) {
	// Create resource
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			attribute.String("environment", config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	// Without an endpoint instruments still work but nothing is exported.
	if config.Endpoint != "" {
		exporterOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(config.Endpoint)}
		if config.Insecure {
			exporterOpts = append(exporterOpts, otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create metric exporter: %w", err)
		}

		interval := config.ExportInterval
		if interval <= 0 {
			interval = 60 * time.Second
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))))
	}

	provider := sdkmetric.NewMeterProvider(opts...)

	// Set global provider
	otel.SetMeterProvider(provider)

	// Get meter
	meter := provider.Meter(config.ServiceName)

	return &MetricsProvider{
		provider: provider,
		meter:    meter,
		config:   config,
	}, nil
}

// Meter returns the meter for creating instruments.
func (m *MetricsProvider) Meter() metric.Meter {
	return m.meter
}

// Shutdown shuts down the metrics provider.
func (m *MetricsProvider) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// HTTPMetrics provides HTTP-related metrics.
type HTTPMetrics struct {
	requestsTotal   metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestSize     metric.Int64Histogram
	responseSize    metric.Int64Histogram
	activeRequests  metric.Int64UpDownCounter
}

// NewHTTPMetrics creates HTTP metrics.
func NewHTTPMetrics(meter metric.Meter) (*HTTPMetrics, error) {
	requestsTotal, err := meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	requestSize, err := meter.Int64Histogram(
		"http_request_size_bytes",
		metric.WithDescription("HTTP request size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	responseSize, err := meter.Int64Histogram(
		"http_response_size_bytes",
		metric.WithDescription("HTTP response size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return nil, err
	}

	return &HTTPMetrics{
		requestsTotal:   requestsTotal,
		requestDuration: requestDuration,
		requestSize:     requestSize,
		responseSize:    responseSize,
		activeRequests:  activeRequests,
	}, nil
}

// RecordRequest records HTTP request metrics.
func (m *HTTPMetrics) RecordRequest(ctx context.Context, method, path string, status int, duration time.Duration, reqSize, respSize int64) {
	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status_code", status),
		attribute.String("status_class", statusClass(status)),
	}

	m.requestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestSize.Record(ctx, reqSize, metric.WithAttributes(attrs...))
	m.responseSize.Record(ctx, respSize, metric.WithAttributes(attrs...))
}

// IncrementActiveRequests increments active requests.
func (m *HTTPMetrics) IncrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, 1)
}

// DecrementActiveRequests decrements active requests.
func (m *HTTPMetrics) DecrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, -1)
}

func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// DatabaseMetrics provides database-related metrics.
type DatabaseMetrics struct {
	operationsTotal   metric.Int64Counter
	operationDuration metric.Float64Histogram
	errorsTotal       metric.Int64Counter
}

// NewDatabaseMetrics creates database metrics.
func NewDatabaseMetrics(meter metric.Meter, dbType string) (*DatabaseMetrics, error) {
	prefix := fmt.Sprintf("db_%s", dbType)

	operationsTotal, err := meter.Int64Counter(
		prefix+"_operations_total",
		metric.WithDescription("Total database operations"),
		metric.WithUnit("{operations}"),
	)
	if err != nil {
		return nil, err
	}

	operationDuration, err := meter.Float64Histogram(
		prefix+"_operation_duration_seconds",
		metric.WithDescription("Database operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5),
	)
	if err != nil {
		return nil, err
	}

	errorsTotal, err := meter.Int64Counter(
		prefix+"_errors_total",
		metric.WithDescription("Total database errors"),
		metric.WithUnit("{errors}"),
	)
	if err != nil {
		return nil, err
	}

	return &DatabaseMetrics{
		operationsTotal:   operationsTotal,
		operationDuration: operationDuration,
		errorsTotal:       errorsTotal,
	}, nil
}

// RecordOperation records a database operation.
func (m *DatabaseMetrics) RecordOperation(ctx context.Context, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
	}

	m.operationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.operationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if err != nil {
		m.errorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// EngineMetrics provides request-count engine metrics.
type EngineMetrics struct {
	recountsTotal   metric.Int64Counter
	recountDuration metric.Float64Histogram
	requestsMatched metric.Int64Histogram
	cacheLookups    metric.Int64Counter
	regionErrors    metric.Int64Counter
	dragCommits     metric.Int64Counter
}

// NewEngineMetrics creates engine metrics.
func NewEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	recountsTotal, err := meter.Int64Counter(
		"geofilter_recounts_total",
		metric.WithDescription("Total request recounts by path"),
		metric.WithUnit("{recounts}"),
	)
	if err != nil {
		return nil, err
	}

	recountDuration, err := meter.Float64Histogram(
		"geofilter_recount_duration_seconds",
		metric.WithDescription("Recount duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5),
	)
	if err != nil {
		return nil, err
	}

	requestsMatched, err := meter.Int64Histogram(
		"geofilter_requests_matched",
		metric.WithDescription("Requests counted per recount"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return nil, err
	}

	cacheLookups, err := meter.Int64Counter(
		"geofilter_cache_lookups_total",
		metric.WithDescription("Count cache lookups by result"),
		metric.WithUnit("{lookups}"),
	)
	if err != nil {
		return nil, err
	}

	regionErrors, err := meter.Int64Counter(
		"geofilter_region_errors_total",
		metric.WithDescription("Region filter errors by code"),
		metric.WithUnit("{errors}"),
	)
	if err != nil {
		return nil, err
	}

	dragCommits, err := meter.Int64Counter(
		"geofilter_region_commits_total",
		metric.WithDescription("Committed region selections by region type"),
		metric.WithUnit("{commits}"),
	)
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		recountsTotal:   recountsTotal,
		recountDuration: recountDuration,
		requestsMatched: requestsMatched,
		cacheLookups:    cacheLookups,
		regionErrors:    regionErrors,
		dragCommits:     dragCommits,
	}, nil
}

// RecordRecount records one recount. path is "aggregate" or "live".
func (m *EngineMetrics) RecordRecount(ctx context.Context, path string, duration time.Duration, matched int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("path", path))
	m.recountsTotal.Add(ctx, 1, attrs)
	m.recountDuration.Record(ctx, duration.Seconds(), attrs)
	m.requestsMatched.Record(ctx, int64(matched), attrs)
}

// RecordCacheLookup records a count cache hit or miss.
func (m *EngineMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordRegionError records a failed region or count operation.
func (m *EngineMetrics) RecordRegionError(ctx context.Context, code string) {
	if m == nil {
		return
	}
	m.regionErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}

// RecordCommit records a committed region selection.
func (m *EngineMetrics) RecordCommit(ctx context.Context, regionType string) {
	if m == nil {
		return
	}
	m.dragCommits.Add(ctx, 1, metric.WithAttributes(attribute.String("region_type", regionType)))
}

// MetricsMiddleware creates an HTTP middleware that records metrics.
func MetricsMiddleware(metrics *HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			metrics.IncrementActiveRequests(ctx)
			defer metrics.DecrementActiveRequests(ctx)

			start := time.Now()

			// Wrap response writer to capture status and size
			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			reqSize := r.ContentLength
			if reqSize < 0 {
				reqSize = 0
			}
			metrics.RecordRequest(
				ctx,
				r.Method,
				routePattern(r),
				wrapped.status,
				time.Since(start),
				reqSize,
				int64(wrapped.size),
			)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}
