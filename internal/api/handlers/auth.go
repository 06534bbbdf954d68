package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stbhakita/parish/internal/api/middleware"
	"github.com/stbhakita/parish/internal/api/response"
	"github.com/stbhakita/parish/internal/auth"
	"github.com/stbhakita/parish/internal/models"
)

// AuthService is the subset of auth.Service the endpoints need
type AuthService interface {
	Login(ctx context.Context, email, password string) (*models.User, *auth.IssuedToken, error)
	Register(ctx context.Context, username, email, password string) (*models.User, *auth.IssuedToken, error)
	Logout(ctx context.Context, token string) error
	Resolve(ctx context.Context, token string) (*models.User, error)
}

// AuthHandler handles login, registration, logout and the current user
type AuthHandler struct {
	svc   AuthService
	audit *auditor
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(svc AuthService, audit AuditRecorder) *AuthHandler {
	return &AuthHandler{
		svc:   svc,
		audit: newAuditor(audit),
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by login and registration
type AuthResponse struct {
	User    *models.User `json:"user"`
	Token   string       `json:"token"`
	Message string       `json:"message"`
}

// Login authenticates by email and password
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Email and password are required")
		return
	}

	user, issued, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.audit.record(c, models.ActionLoginFailed, req.Email, false, "invalid credentials")
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthenticated, "Invalid email or password")
			return
		}
		response.Internal(c, err)
		return
	}

	h.audit.record(c, models.ActionLogin, user.Username, true, "")

	c.JSON(http.StatusOK, AuthResponse{
		User:    user,
		Token:   issued.Token,
		Message: "Login successful",
	})
}

// Register creates a regular user and logs them in
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Email == "" || req.Password == "" {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Username, email, and password are required")
		return
	}

	user, issued, err := h.svc.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrUserExists):
		h.audit.record(c, models.ActionRegister, req.Username, false, "email or username already in use")
		response.Error(c, http.StatusConflict, response.CodeConflict, "Email or username already in use")
		return
	case errors.Is(err, auth.ErrPasswordTooLong):
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Password must be at most 72 bytes")
		return
	case err != nil:
		response.Internal(c, err)
		return
	}

	h.audit.record(c, models.ActionRegister, user.Username, true, "")

	c.JSON(http.StatusCreated, AuthResponse{
		User:    user,
		Token:   issued.Token,
		Message: "Registration successful",
	})
}

// Logout revokes the presented token. It always succeeds for the caller.
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	token := middleware.BearerToken(c)
	ctx := c.Request.Context()

	if token != "" {
		username := ""
		if user, err := h.svc.Resolve(ctx, token); err == nil {
			username = user.Username
		}

		if err := h.svc.Logout(ctx, token); err != nil {
			_ = c.Error(err)
		} else if username != "" {
			h.audit.record(c, models.ActionLogout, username, true, "")
		}
	}

	response.Message(c, http.StatusOK, "Logout successful")
}

// GetUser returns the owner of the presented token
// GET /api/auth/user
func (h *AuthHandler) GetUser(c *gin.Context) {
	token := middleware.BearerToken(c)
	if token == "" {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthenticated, "Authentication token required")
		return
	}

	user, err := h.svc.Resolve(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrMissingToken) {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthenticated, "Invalid or expired token")
			return
		}
		response.Internal(c, err)
		return
	}

	response.Data(c, http.StatusOK, user, "")
}
