package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stbhakita/parish/internal/api/response"
	"github.com/stbhakita/parish/internal/sanitize"
)

// Sanitize middleware cleans every string in the query and in JSON bodies
// before any handler sees them. Bodies that are not a single valid JSON value
// are passed on untouched for the handler to reject.
//
// Request bodies are capped at maxBytes; larger ones are answered with 413.
func Sanitize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.RawQuery != "" {
			query := c.Request.URL.Query()
			sanitize.Strings(query)
			c.Request.URL.RawQuery = query.Encode()
		}

		if c.Request.Body != nil && c.Request.Body != http.NoBody {
			if c.Request.ContentLength > maxBytes {
				abortTooLarge(c)
				return
			}
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

			if isJSON(c.ContentType()) && !sanitizeBody(c) {
				return
			}
		}

		c.Next()
	}
}

func isJSON(contentType string) bool {
	return contentType == "application/json" || strings.HasSuffix(contentType, "+json")
}

func abortTooLarge(c *gin.Context) {
	response.AbortWithError(c, http.StatusRequestEntityTooLarge, response.CodeTooLarge, "Request body too large")
}

// sanitizeBody rewrites the JSON body in place. It returns false when the
// request was aborted.
func sanitizeBody(c *gin.Context) bool {
	raw, err := io.ReadAll(c.Request.Body)
	_ = c.Request.Body.Close()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortTooLarge(c)
			return false
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))
		return true
	}

	body := raw
	if v, ok := decodeSingle(raw); ok {
		if cleaned, err := json.Marshal(sanitize.Value(v)); err == nil {
			body = cleaned
		}
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	c.Request.ContentLength = int64(len(body))
	return true
}

// decodeSingle decodes raw only if it holds exactly one JSON value,
// optionally surrounded by whitespace.
func decodeSingle(raw []byte) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, false
	}
	return v, true
}
