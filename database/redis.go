// Package database provides the Redis connection behind the count cache.
package database

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/civicmap/requestmap/pkg/resilience"
	"github.com/civicmap/requestmap/pkg/telemetry"
)

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host        string
	Port        int
	Password    string
	DB          int
	TLSEnabled  bool
	PoolSize    int
	MinIdleConn int
}

// DefaultRedisConfig returns defaults for Azure Cache for Redis.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Port:        6380, // Azure Redis uses 6380 for TLS
		TLSEnabled:  true,
		PoolSize:    50,
		MinIdleConn: 5,
	}
}

// Addr returns host:port. A Host that already carries a port wins.
func (c RedisConfig) Addr() string {
	if _, _, err := net.SplitHostPort(c.Host); err == nil {
		return c.Host
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RedisClient wraps the Redis client.
type RedisClient struct {
	client *redis.Client
	config RedisConfig
}

// NewRedisClient connects to Redis, retrying the initial ping. metrics may
// be nil.
func NewRedisClient(ctx context.Context, config RedisConfig, metrics *telemetry.DatabaseMetrics) (*RedisClient, error) {
	opts := &redis.Options{
		Addr:         config.Addr(),
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConn,
	}
	if config.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	client := redis.NewClient(opts)
	if metrics != nil {
		client.AddHook(NewMetricsHook(metrics))
	}

	r := &RedisClient{client: client, config: config}
	if err := r.PingWithRetry(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return r, nil
}

// Client returns the underlying redis client.
func (r *RedisClient) Client() *redis.Client {
	return r.client
}

// Ping checks the connection.
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// PingWithRetry checks the connection, retrying transient failures.
func (r *RedisClient) PingWithRetry(ctx context.Context) error {
	return resilience.Retry(ctx, resilience.RedisRetryConfig(), func() error {
		return r.Ping(ctx)
	})
}

// Close closes the client.
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// MetricsHook records every Redis command in DatabaseMetrics. A cache miss
// (redis.Nil) is not an error.
type MetricsHook struct {
	metrics *telemetry.DatabaseMetrics
}

// NewMetricsHook creates the hook.
func NewMetricsHook(metrics *telemetry.DatabaseMetrics) *MetricsHook {
	return &MetricsHook{metrics: metrics}
}

// DialHook passes dials through unchanged.
func (h *MetricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

// ProcessHook times a single command.
func (h *MetricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.metrics.RecordOperation(ctx, cmd.Name(), time.Since(start), commandError(err))
		return err
	}
}

// ProcessPipelineHook times a pipeline as one operation.
func (h *MetricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		h.metrics.RecordOperation(ctx, "pipeline", time.Since(start), commandError(err))
		return err
	}
}

func commandError(err error) error {
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
