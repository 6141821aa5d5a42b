package middleware

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"mediastore/internal/pkg/response"
	"mediastore/internal/resilience"
)

var mediaByIDPath = regexp.MustCompile(`/media/[^/]+$`)

// RateLimit enforces a token bucket per caller and endpoint class. The
// caller key is the authenticated user id when Auth ran before this
// middleware, otherwise the client IP, so upload traffic from one tenant
// cannot starve reads from another. Rejections answer 429 with the wait
// until the next token in both Retry-After and
// X-Rate-Limit-Retry-After-Seconds.
func RateLimit(registry *resilience.RateLimiterRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := registry.Get(limiterKey(c))

		err := limiter.Acquire(c.Request.Context())
		if err == nil {
			c.Header("X-Rate-Limit-Remaining", strconv.Itoa(limiter.Remaining()))
			c.Next()
			return
		}

		var limited *resilience.ErrRateLimited
		if !errors.As(err, &limited) {
			// Context cancelled while waiting for a token.
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}

		seconds := int64(math.Ceil(limited.RetryAfter.Seconds()))
		c.Header("Retry-After", strconv.FormatInt(seconds, 10))
		c.Header("X-Rate-Limit-Retry-After-Seconds", strconv.FormatInt(seconds, 10))
		response.ErrorWithDetails(c, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
			fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", seconds),
			gin.H{"retry_after_seconds": seconds})
		c.Abort()
	}
}

func limiterKey(c *gin.Context) string {
	caller := "ip:" + c.ClientIP()
	if id := c.GetInt64("user_id"); id != 0 {
		caller = fmt.Sprintf("user:%d", id)
	}
	return caller + ":" + endpointClass(c.Request.URL.Path)
}

// endpointClass buckets routes so heavy endpoints and cheap reads drain
// separate limiters.
func endpointClass(path string) string {
	switch {
	case strings.Contains(path, "/upload"):
		return "upload"
	case mediaByIDPath.MatchString(path):
		return "get-media"
	default:
		return "default"
	}
}
