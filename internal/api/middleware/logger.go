package middleware

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stbhakita/parish/internal/api/response"
	"github.com/stbhakita/parish/internal/logging"
)

// Logger middleware writes one structured line per request
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		event := logging.WithLevel(levelFor(status)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("client_ip", c.ClientIP()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("request_id", GetRequestID(c))

		if last := c.Errors.Last(); last != nil {
			event = event.Err(last.Err)
		}

		event.Msg("request")
	}
}

// levelFor picks the log level for a response status. Security rejections
// are errors, other client mistakes are warnings.
func levelFor(status int) zerolog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status == http.StatusUnauthorized,
		status == http.StatusForbidden,
		status == http.StatusTooManyRequests:
		return zerolog.ErrorLevel
	case status >= http.StatusBadRequest:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// Recovery turns panics into a 500 response
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		logging.Error().
			Interface("panic", recovered).
			Str("path", c.Request.URL.Path).
			Str("request_id", GetRequestID(c)).
			Msg("recovered from panic")
		response.AbortWithError(c, http.StatusInternalServerError, response.CodeInternal, "Internal server error")
	})
}
