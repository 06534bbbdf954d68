package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stbhakita/parish/internal/api/response"
	"github.com/stbhakita/parish/internal/ratelimit"
)

// resetFormat renders X-RateLimit-Reset in UTC with millisecond precision
const resetFormat = "2006-01-02T15:04:05.000Z07:00"

// decisionKey holds the decision whose headers were written for this request
const decisionKey = "parish.ratelimit"

// RateLimit middleware counts requests per client address.
//
// When several limiters run on one request the headers describe the most
// constrained one, i.e. the one with the fewest remaining requests.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := limiter.Allow(response.ClientIP(c))

		if prev, ok := c.Get(decisionKey); !ok || d.Remaining < prev.(ratelimit.Decision).Remaining || !d.Allowed {
			c.Set(decisionKey, d)
			h := c.Writer.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", d.Reset.UTC().Format(resetFormat))
		}

		if !d.Allowed {
			secs := retryAfterSeconds(d.RetryAfter)
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, response.ErrorResponse{
				Error:      response.CodeTooManyRequests,
				Message:    "Too many requests. Please try again later.",
				RetryAfter: secs,
			})
			return
		}

		c.Next()
	}
}

// RateLimitPrefix applies limiter to every request whose path is prefix or
// lies below it, whether or not a route matches.
func RateLimitPrefix(prefix string, limiter *ratelimit.Limiter) gin.HandlerFunc {
	limit := RateLimit(limiter)
	return func(c *gin.Context) {
		if !underPrefix(c.Request.URL.Path, prefix) {
			c.Next()
			return
		}
		limit(c)
	}
}

func underPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/")
}

// retryAfterSeconds rounds up to whole seconds, never below one
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
