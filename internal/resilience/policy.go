package resilience

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"
)

// Fallback is the typed failure result a policy produces instead of an
// error chain: an HTTP-status-like code (503 for breaker/retry exhaustion,
// 429 for rate limiting) plus a human-readable message. Callers decide
// whether to propagate or absorb it; there is nothing to catch.
type Fallback struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

// Policy bundles the three primitives under one logical-operation identity,
// e.g. one policy for "whatsapp-media" and a separate one for
// "whatsapp-session". The same named policy is shared by all calls to that
// operation.
type Policy struct {
	name    string
	limiter *RateLimiter
	breaker *CircuitBreaker
	retry   RetryConfig
}

func NewPolicy(name string, limiter RateLimiterConfig, breaker BreakerConfig, retry RetryConfig) *Policy {
	return &Policy{
		name:    name,
		limiter: NewRateLimiter(name, limiter),
		breaker: NewCircuitBreaker(name, breaker),
		retry:   retry,
	}
}

func (p *Policy) Name() string             { return p.name }
func (p *Policy) Breaker() *CircuitBreaker { return p.breaker }

// Execute runs op under p: the rate limiter gates entry, the circuit
// breaker short-circuits when open, and the retry loop governs transient
// failures within the permitted attempt window. Every attempt's duration
// and outcome feeds the breaker's sliding window. On any policy rejection
// or retry exhaustion the zero value and a non-nil Fallback are returned.
func Execute[T any](ctx context.Context, p *Policy, op func(ctx context.Context) (T, error)) (T, *Fallback) {
	var zero T

	if err := p.limiter.Acquire(ctx); err != nil {
		var rl *ErrRateLimited
		if errors.As(err, &rl) {
			log.Printf("resilience: policy=%s rate limited retry_after=%v", p.name, rl.RetryAfter)
			return zero, &Fallback{
				StatusCode: http.StatusTooManyRequests,
				Message:    "Rate limit exceeded. Please try again later.",
				RetryAfter: rl.RetryAfter,
			}
		}
		return zero, &Fallback{StatusCode: http.StatusServiceUnavailable, Message: err.Error()}
	}

	if err := p.breaker.Allow(); err != nil {
		var open *ErrOpen
		if errors.As(err, &open) {
			log.Printf("resilience: policy=%s breaker open retry_after=%v", p.name, open.RemainingWait)
			return zero, &Fallback{
				StatusCode: http.StatusServiceUnavailable,
				Message:    "Service temporarily unavailable due to repeated failures.",
				RetryAfter: open.RemainingWait,
			}
		}
		return zero, &Fallback{StatusCode: http.StatusServiceUnavailable, Message: err.Error()}
	}

	result, err := DoWithResult(ctx, p.retry, func(ctx context.Context) (T, error) {
		start := time.Now()
		v, opErr := op(ctx)
		p.breaker.Record(time.Since(start), opErr)
		return v, opErr
	})
	if err != nil {
		log.Printf("resilience: policy=%s exhausted: %v", p.name, err)
		return zero, &Fallback{
			StatusCode: http.StatusServiceUnavailable,
			Message:    "Operation failed: " + err.Error(),
		}
	}
	return result, nil
}
