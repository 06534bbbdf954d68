package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stbhakita/parish/internal/api/response"
	"github.com/stbhakita/parish/internal/auth"
	"github.com/stbhakita/parish/internal/models"
	"github.com/stbhakita/parish/internal/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubResolver struct {
	users map[string]*models.User
	err   error
}

func (s stubResolver) Resolve(_ context.Context, token string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if u, ok := s.users[token]; ok {
		return u, nil
	}
	return nil, auth.ErrInvalidToken
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	r.GET("/api/thing", ok)
	r.POST("/api/thing", ok)
	r.POST("/api/ping", ok)
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorResponse {
	t.Helper()
	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAuthenticate(t *testing.T) {
	alice := &models.User{ID: 1, Username: "alice", Role: models.RoleUser}
	resolver := stubResolver{users: map[string]*models.User{"good": alice}}

	var seen *models.User
	r := gin.New()
	r.GET("/me", Authenticate(resolver), func(c *gin.Context) {
		seen, _ = CurrentUser(c)
		c.Status(http.StatusNoContent)
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantMsg    string
	}{
		{"missing header", "", http.StatusUnauthorized, "Authentication required"},
		{"wrong scheme", "Basic Z29vZA==", http.StatusUnauthorized, "Authentication required"},
		{"unknown token", "Bearer bad", http.StatusUnauthorized, "Invalid or expired token"},
		{"valid token", "Bearer good", http.StatusNoContent, ""},
		{"lowercase scheme", "bearer good", http.StatusNoContent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := serve(r, req)
			assert.Equal(t, tt.wantStatus, w.Code)

			if tt.wantMsg != "" {
				body := decodeError(t, w)
				assert.False(t, body.Success)
				assert.Equal(t, response.CodeUnauthenticated, body.Error)
				assert.Equal(t, tt.wantMsg, body.Message)
				assert.Nil(t, seen)
			} else {
				assert.Equal(t, alice, seen)
			}
		})
	}
}

func TestAuthenticate_StorageFailure(t *testing.T) {
	r := gin.New()
	r.GET("/me", Authenticate(stubResolver{err: errors.New("database is locked")}), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := serve(r, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, response.CodeInternal, body.Error)
	assert.NotContains(t, w.Body.String(), "database is locked")
}

func TestRequireAdmin(t *testing.T) {
	resolver := stubResolver{users: map[string]*models.User{
		"user-token":  {ID: 1, Role: models.RoleUser},
		"admin-token": {ID: 2, Role: models.RoleAdmin},
	}}

	r := gin.New()
	r.POST("/admin", Authenticate(resolver), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	r.POST("/unauthenticated", RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	w := serve(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Admin access required", decodeError(t, w).Message)

	req = httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	assert.Equal(t, http.StatusCreated, serve(r, req).Code)

	// without an attached user the gate fails closed
	w = serve(r, httptest.NewRequest(http.MethodPost, "/unauthenticated", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRateLimit(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	limiter := ratelimit.New(2, 15*time.Minute, ratelimit.WithClock(func() time.Time { return now }))
	r := newEngine(RateLimit(limiter))

	for i := 1; i <= 2; i++ {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/api/thing", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, []string{"1", "0"}[i-1], w.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, "2026-03-01T10:15:00.000Z", w.Header().Get("X-RateLimit-Reset"))
		assert.Empty(t, w.Header().Get("Retry-After"))
	}

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/thing", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "900", w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	body := decodeError(t, w)
	assert.False(t, body.Success)
	assert.Equal(t, "Too many requests. Please try again later.", body.Message)
	assert.Equal(t, 900, body.RetryAfter)
}

func TestRateLimit_MostConstrainedHeadersWin(t *testing.T) {
	strict := ratelimit.New(5, 15*time.Minute)
	loose := ratelimit.New(100, time.Minute)
	r := newEngine(RateLimit(strict), RateLimit(loose))

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/thing", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))

	// the loose limiter still counted the request
	r = newEngine(RateLimit(loose))
	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/thing", nil))
	assert.Equal(t, "98", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimitPrefix(t *testing.T) {
	limiter := ratelimit.New(10, time.Minute)
	r := newEngine(RateLimitPrefix("/api", limiter))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/apiary", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/thing", nil))
	assert.Equal(t, "9", w.Header().Get("X-RateLimit-Remaining"))

	// unmatched paths below the prefix are still counted
	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "8", w.Header().Get("X-RateLimit-Remaining"))

	for _, path := range []string{"/health", "/apiary"} {
		w = serve(r, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"), path)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 2, retryAfterSeconds(1001*time.Millisecond))
	assert.Equal(t, 60, retryAfterSeconds(time.Minute))
}

func TestSecurityHeaders(t *testing.T) {
	r := newEngine(SecurityHeaders())

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/thing", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "1; mode=block", w.Header().Get("X-XSS-Protection"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'self'")
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))

	req := httptest.NewRequest(http.MethodGet, "/api/thing", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	w = serve(r, req)
	assert.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestValidateOrigin(t *testing.T) {
	allowed := []string{"https://parish.example.org", "http://localhost:3000"}
	r := newEngine(ValidateOrigin(allowed, true))

	tests := []struct {
		name       string
		method     string
		path       string
		origin     string
		referer    string
		wantStatus int
	}{
		{"get is exempt", http.MethodGet, "/api/thing", "", "", http.StatusOK},
		{"ping is exempt", http.MethodPost, "/api/ping", "", "", http.StatusOK},
		{"allowed origin", http.MethodPost, "/api/thing", "https://parish.example.org", "", http.StatusOK},
		{"allowed referer", http.MethodPost, "/api/thing", "", "http://localhost:3000/login", http.StatusOK},
		{"foreign origin", http.MethodPost, "/api/thing", "https://evil.example", "", http.StatusForbidden},
		{"no headers", http.MethodPost, "/api/thing", "", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}

			w := serve(r, req)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusForbidden {
				assert.Equal(t, "Invalid request origin", decodeError(t, w).Message)
			}
		})
	}
}

func TestValidateOrigin_NotEnforced(t *testing.T) {
	r := newEngine(ValidateOrigin(nil, false))
	w := serve(r, httptest.NewRequest(http.MethodPost, "/api/thing", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSanitize(t *testing.T) {
	var gotBody map[string]any
	var gotQuery string

	r := gin.New()
	r.Use(Sanitize(1 << 20))
	r.POST("/echo", func(c *gin.Context) {
		gotQuery = c.Query("q")
		raw, _ := io.ReadAll(c.Request.Body)
		gotBody = nil
		_ = json.Unmarshal(raw, &gotBody)
		c.Status(http.StatusOK)
	})

	body := `{"title":"<script>alert(1)</script>Mass","count":12345678901234567890,"tags":["  a  "]}`
	req := httptest.NewRequest(http.MethodPost, "/echo?q=%3Cscript%3Ex%3C%2Fscript%3Efind", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	serve(r, req)

	assert.Equal(t, "find", gotQuery)
	require.NotNil(t, gotBody)
	assert.Equal(t, "Mass", gotBody["title"])
	assert.Equal(t, []any{"a"}, gotBody["tags"])
	assert.NotNil(t, gotBody["count"])
}

func TestSanitize_InvalidJSONUntouched(t *testing.T) {
	var got string
	r := gin.New()
	r.Use(Sanitize(1 << 20))
	r.POST("/echo", func(c *gin.Context) {
		raw, _ := io.ReadAll(c.Request.Body)
		got = string(raw)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"title": <script>`))
	req.Header.Set("Content-Type", "application/json")
	serve(r, req)

	assert.Equal(t, `{"title": <script>`, got)
}

func TestSanitize_TrailingDataUntouched(t *testing.T) {
	var got string
	r := gin.New()
	r.Use(Sanitize(1 << 20))
	r.POST("/echo", func(c *gin.Context) {
		raw, _ := io.ReadAll(c.Request.Body)
		got = string(raw)
		c.Status(http.StatusOK)
	})

	for _, body := range []string{`{"a":1}garbage`, `{"a":"<script>x</script>"}{"b":2}`} {
		req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		serve(r, req)
		assert.Equal(t, body, got)
	}

	// trailing whitespace is still a single value
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("{\"a\":\" x \"}\n"))
	req.Header.Set("Content-Type", "application/json")
	serve(r, req)
	assert.JSONEq(t, `{"a":"x"}`, got)
}

func TestSanitize_BodyLimit(t *testing.T) {
	reached := false
	r := gin.New()
	r.Use(Sanitize(64))
	r.POST("/echo", func(c *gin.Context) {
		reached = true
		c.Status(http.StatusOK)
	})

	large := `{"title":"` + strings.Repeat("a", 128) + `"}`

	// declared length over the limit
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(large))
	req.Header.Set("Content-Type", "application/json")
	w := serve(r, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, response.CodeTooLarge, decodeError(t, w).Error)

	// unknown length, caught while reading
	req = httptest.NewRequest(http.MethodPost, "/echo", io.MultiReader(strings.NewReader(large)))
	req.Header.Set("Content-Type", "application/json")
	require.EqualValues(t, -1, req.ContentLength)
	w = serve(r, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.False(t, reached)

	req = httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"title":"ok"}`))
	req.Header.Set("Content-Type", "application/json")
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, reached)
}

func TestRequestID(t *testing.T) {
	var inHandler string
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		inHandler = GetRequestID(c)
		c.Status(http.StatusOK)
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, inHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "upstream-123")
	w = serve(r, req)
	assert.Equal(t, "upstream-123", w.Header().Get(RequestIDHeader))
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, levelFor(http.StatusOK))
	assert.Equal(t, zerolog.InfoLevel, levelFor(http.StatusCreated))
	assert.Equal(t, zerolog.WarnLevel, levelFor(http.StatusBadRequest))
	assert.Equal(t, zerolog.WarnLevel, levelFor(http.StatusConflict))
	assert.Equal(t, zerolog.WarnLevel, levelFor(http.StatusNotFound))
	assert.Equal(t, zerolog.ErrorLevel, levelFor(http.StatusUnauthorized))
	assert.Equal(t, zerolog.ErrorLevel, levelFor(http.StatusForbidden))
	assert.Equal(t, zerolog.ErrorLevel, levelFor(http.StatusTooManyRequests))
	assert.Equal(t, zerolog.ErrorLevel, levelFor(http.StatusInternalServerError))
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, response.CodeInternal, decodeError(t, w).Error)
}

func TestCORS(t *testing.T) {
	r := newEngine(CORS([]string{"https://parish.example.org"}, false))

	req := httptest.NewRequest(http.MethodOptions, "/api/thing", nil)
	req.Header.Set("Origin", "https://parish.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := serve(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://parish.example.org", w.Header().Get("Access-Control-Allow-Origin"))

	// unknown origins get no CORS headers but are not rejected here
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		req = httptest.NewRequest(method, "/api/thing", nil)
		req.Header.Set("Origin", "https://other.example")
		w = serve(r, req)
		assert.Equal(t, http.StatusOK, w.Code, method)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"), method)
	}
}

func TestCORS_AllowAll(t *testing.T) {
	r := newEngine(CORS(nil, true))

	req := httptest.NewRequest(http.MethodGet, "/api/thing", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}
