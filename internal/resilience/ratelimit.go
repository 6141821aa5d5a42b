package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig describes a token bucket: LimitForPeriod tokens are
// refilled every LimitRefreshPeriod. TimeoutDuration is how long a caller
// is willing to wait for a token before being rejected.
type RateLimiterConfig struct {
	LimitForPeriod     int
	LimitRefreshPeriod time.Duration
	TimeoutDuration    time.Duration
}

func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		LimitForPeriod:     10,
		LimitRefreshPeriod: time.Second,
		TimeoutDuration:    0,
	}
}

// ErrRateLimited reports a rejected acquisition together with the exact
// wait until the next token, derived from the bucket internals, so callers
// can surface a retry-after value.
type ErrRateLimited struct {
	Name       string
	RetryAfter time.Duration
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("rate limit exceeded for %q, retry after %v", e.Name, e.RetryAfter)
}

// RateLimiter is a named token bucket. Consumption is atomic: the
// underlying limiter does a test-and-decrement under its own lock.
type RateLimiter struct {
	name    string
	limiter *rate.Limiter
	timeout time.Duration
}

func NewRateLimiter(name string, cfg RateLimiterConfig) *RateLimiter {
	if cfg.LimitForPeriod < 1 {
		cfg.LimitForPeriod = 1
	}
	if cfg.LimitRefreshPeriod <= 0 {
		cfg.LimitRefreshPeriod = time.Second
	}
	per := cfg.LimitRefreshPeriod / time.Duration(cfg.LimitForPeriod)
	return &RateLimiter{
		name:    name,
		limiter: rate.NewLimiter(rate.Every(per), cfg.LimitForPeriod),
		timeout: cfg.TimeoutDuration,
	}
}

// Acquire takes one token, waiting up to the configured timeout for the
// next refill. On rejection it returns ErrRateLimited with the exact wait.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	r := l.limiter.Reserve()
	delay := r.Delay()
	if delay == 0 {
		return nil
	}
	if delay > l.timeout {
		r.Cancel()
		return &ErrRateLimited{Name: l.name, RetryAfter: delay}
	}
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// Remaining reports the whole tokens currently available in the bucket.
func (l *RateLimiter) Remaining() int {
	n := int(l.limiter.Tokens())
	if n < 0 {
		return 0
	}
	return n
}

// RateLimiterRegistry holds limiters keyed by endpoint or caller identity.
type RateLimiterRegistry struct {
	mu       sync.RWMutex
	limiters map[string]*RateLimiter
	cfg      RateLimiterConfig
}

func NewRateLimiterRegistry(cfg RateLimiterConfig) *RateLimiterRegistry {
	return &RateLimiterRegistry{
		limiters: make(map[string]*RateLimiter),
		cfg:      cfg,
	}
}

// Get returns the limiter for name, creating it on first use.
func (r *RateLimiterRegistry) Get(name string) *RateLimiter {
	r.mu.RLock()
	l, ok := r.limiters[name]
	r.mu.RUnlock()
	if ok {
		return l
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[name]; ok {
		return l
	}
	l = NewRateLimiter(name, r.cfg)
	r.limiters[name] = l
	return l
}
