package aggregate

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/civicmap/requestmap/pkg/region"
	"github.com/civicmap/requestmap/pkg/resilience"
)

// Cache stores computed counts. Get returns nil, nil on a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisCache implements Cache using Redis.
type RedisCache struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisCache creates a new Redis cache.
func NewRedisCache(client redis.UniversalClient, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "counts:"
	}
	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get retrieves a cached value.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	fullKey := c.keyPrefix + key
	val, err := c.client.Get(ctx, fullKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get error: %w", err)
	}
	return val, nil
}

// Set stores a value in cache with TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	fullKey := c.keyPrefix + key
	if err := c.client.Set(ctx, fullKey, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// GuardedCache stops calling a failing cache until its circuit breaker lets
// a probe through. Rejected calls return resilience.ErrCircuitOpen.
type GuardedCache struct {
	cache   Cache
	breaker *resilience.CircuitBreaker
}

// NewGuardedCache wraps cache with breaker.
func NewGuardedCache(cache Cache, breaker *resilience.CircuitBreaker) *GuardedCache {
	return &GuardedCache{cache: cache, breaker: breaker}
}

// Get retrieves a cached value through the breaker.
func (c *GuardedCache) Get(ctx context.Context, key string) ([]byte, error) {
	var val []byte
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		val, err = c.cache.Get(ctx, key)
		return err
	})
	return val, err
}

// Set stores a value through the breaker.
func (c *GuardedCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.cache.Set(ctx, key, value, ttl)
	})
}

// Breaker returns the guarding circuit breaker.
func (c *GuardedCache) Breaker() *resilience.CircuitBreaker {
	return c.breaker
}

// InMemoryCache implements Cache in process memory.
// Use for testing or single-instance deployments.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
	}
}

// Get retrieves a cached value.
func (c *InMemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.data, key)
		return nil, nil
	}
	return entry.value, nil
}

// Set stores a value in cache with TTL.
func (c *InMemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// CacheKey hashes the inputs of a live count. Circles are keyed by center
// and radius; the polygon is derived from them. Free-text parts are length
// prefixed so that no two inputs share an encoding.
func CacheKey(filter region.Filter, selected TypeSet) string {
	var b strings.Builder
	kb := keyBuilder{b: &b}
	if filter == nil {
		filter = region.NoFilter{}
	}
	filter.Accept(kb)
	b.WriteString("|types=")
	for _, t := range selected.types {
		writeField(&b, t)
	}

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

type keyBuilder struct{ b *strings.Builder }

func (k keyBuilder) VisitNone(region.NoFilter) { k.b.WriteString("none") }

func (k keyBuilder) VisitAddress(a region.AddressCircle) {
	fmt.Fprintf(k.b, "address:%s,%s,%s",
		strconv.FormatFloat(a.Center.Lng, 'g', -1, 64),
		strconv.FormatFloat(a.Center.Lat, 'g', -1, 64),
		strconv.FormatFloat(a.RadiusMiles, 'g', -1, 64))
}

func (k keyBuilder) VisitBoundary(nb region.NamedBoundary) {
	fmt.Fprintf(k.b, "%s:", nb.Kind)
	writeField(k.b, nb.ID)
}

func writeField(b *strings.Builder, s string) {
	fmt.Fprintf(b, "%d:%s;", len(s), s)
}
