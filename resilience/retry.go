package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

// RetryConfig holds retry configuration.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration
	// Multiplier grows the delay after each retry.
	Multiplier float64
	// Jitter is the maximum random spread as a fraction of the delay (0-1).
	Jitter float64
	// Retryable overrides IsRetryable when set.
	Retryable func(error) bool
}

// DefaultRetryConfig returns production defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.2,
	}
}

// RedisRetryConfig is tuned for a low-latency cache.
func RedisRetryConfig() RetryConfig {
	c := DefaultRetryConfig()
	c.InitialDelay = 50 * time.Millisecond
	c.MaxDelay = 2 * time.Second
	return c
}

// BlobRetryConfig is tuned for dataset downloads at startup.
func BlobRetryConfig() RetryConfig {
	c := DefaultRetryConfig()
	c.InitialDelay = 250 * time.Millisecond
	c.MaxDelay = 10 * time.Second
	return c
}

// Retry calls fn until it succeeds, returns a non-retryable error, the
// retries run out or ctx is done.
func Retry(ctx context.Context, config RetryConfig, fn func() error) error {
	_, err := RetryWithResult(ctx, config, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult is Retry for functions that return a value.
func RetryWithResult[T any](ctx context.Context, config RetryConfig, fn func() (T, error)) (T, error) {
	retryable := config.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	var (
		result  T
		lastErr error
	)
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		var err error
		result, err = fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable(err) {
			return result, err
		}
		if attempt == config.MaxRetries {
			break
		}

		timer := time.NewTimer(backoff(config, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return result, fmt.Errorf("max retries (%d) exceeded: %w", config.MaxRetries, lastErr)
}

// backoff returns initialDelay * multiplier^attempt, capped and jittered.
func backoff(config RetryConfig, attempt int) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attempt))
	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}
	if config.Jitter > 0 {
		spread := delay * config.Jitter * rand.Float64()
		if rand.Float64() < 0.5 {
			delay -= spread
		} else {
			delay += spread
		}
	}
	return time.Duration(delay)
}

var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"temporary failure",
	"service unavailable",
	"too many requests",
	"network is unreachable",
}

// IsRetryable reports whether err looks transient. Context errors and
// client-side HTTP statuses are not retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case 408, 429, 500, 502, 503, 504:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
