package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy(name string) *Policy {
	return NewPolicy(name,
		RateLimiterConfig{LimitForPeriod: 100, LimitRefreshPeriod: time.Second},
		testBreakerConfig(),
		RetryConfig{MaxAttempts: 3, WaitDuration: time.Millisecond},
	)
}

func TestExecute_Success(t *testing.T) {
	p := testPolicy("ok")

	v, fb := Execute(context.Background(), p, func(ctx context.Context) (string, error) {
		return "result", nil
	})
	require.Nil(t, fb)
	assert.Equal(t, "result", v)
}

func TestExecute_RetriesThenSucceeds(t *testing.T) {
	p := testPolicy("flaky")

	calls := 0
	v, fb := Execute(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 7, nil
	})
	require.Nil(t, fb)
	assert.Equal(t, 7, v)
	assert.Equal(t, 3, calls)
}

func TestExecute_ExhaustionYields503(t *testing.T) {
	p := testPolicy("down")

	calls := 0
	_, fb := Execute(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("connection refused")
	})
	require.NotNil(t, fb)
	assert.Equal(t, http.StatusServiceUnavailable, fb.StatusCode)
	assert.Equal(t, 3, calls)
	assert.Contains(t, fb.Message, "connection refused")
}

func TestExecute_RateLimitYields429WithRetryAfter(t *testing.T) {
	p := NewPolicy("limited",
		RateLimiterConfig{LimitForPeriod: 1, LimitRefreshPeriod: time.Second},
		testBreakerConfig(),
		RetryConfig{MaxAttempts: 1},
	)

	_, fb := Execute(context.Background(), p, func(ctx context.Context) (int, error) {
		return 1, nil
	})
	require.Nil(t, fb)

	calls := 0
	_, fb = Execute(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		return 1, nil
	})
	require.NotNil(t, fb)
	assert.Equal(t, http.StatusTooManyRequests, fb.StatusCode)
	assert.Greater(t, fb.RetryAfter, time.Duration(0))
	assert.Equal(t, 0, calls, "rejected call must not reach the operation")
}

func TestExecute_OpenBreakerYields503WithoutCalling(t *testing.T) {
	p := testPolicy("broken")

	// Trip the breaker: 10 failed operations, one retry round each would
	// record 3 outcomes, so 4 executions are enough for the minimum sample.
	for i := 0; i < 4; i++ {
		Execute(context.Background(), p, func(ctx context.Context) (int, error) {
			return 0, errors.New("boom")
		})
	}
	require.Equal(t, StateOpen, p.Breaker().State())

	calls := 0
	_, fb := Execute(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		return 1, nil
	})
	require.NotNil(t, fb)
	assert.Equal(t, http.StatusServiceUnavailable, fb.StatusCode)
	assert.Equal(t, 0, calls, "open breaker must reject before the operation")
	assert.Greater(t, fb.RetryAfter, time.Duration(0))
}

func TestExecute_PermanentErrorSkipsRetries(t *testing.T) {
	p := testPolicy("permanent")

	calls := 0
	_, fb := Execute(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		return 0, Permanent(errors.New("bad request"))
	})
	require.NotNil(t, fb)
	assert.Equal(t, 1, calls)
}
