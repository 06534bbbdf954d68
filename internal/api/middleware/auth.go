package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stbhakita/parish/internal/api/response"
	"github.com/stbhakita/parish/internal/auth"
	"github.com/stbhakita/parish/internal/models"
)

// TokenResolver maps a bearer token to the user owning it
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (*models.User, error)
}

const userKey = "parish.user"

// SetUser attaches the authenticated user to the request
func SetUser(c *gin.Context, user *models.User) {
	c.Set(userKey, user)
}

// CurrentUser returns the user attached by Authenticate
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header
func BearerToken(c *gin.Context) string {
	const prefix = "bearer "
	header := c.GetHeader("Authorization")
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// Authenticate middleware resolves the bearer token and attaches its owner.
// Resolution is a pure read; the token is never refreshed or consumed.
func Authenticate(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			response.AbortWithError(c, http.StatusUnauthorized, response.CodeUnauthenticated, "Authentication required")
			return
		}

		user, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrMissingToken) {
				response.AbortWithError(c, http.StatusUnauthorized, response.CodeUnauthenticated, "Invalid or expired token")
				return
			}
			_ = c.Error(err)
			response.AbortWithError(c, http.StatusInternalServerError, response.CodeInternal, "Authentication error")
			return
		}

		SetUser(c, user)
		c.Next()
	}
}

// RequireAdmin middleware must run after Authenticate
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok || !user.IsAdmin() {
			response.AbortWithError(c, http.StatusForbidden, response.CodeForbidden, "Admin access required")
			return
		}

		c.Next()
	}
}
