package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stbhakita/parish/internal/api/response"
	"github.com/stbhakita/parish/internal/auth"
	"github.com/stbhakita/parish/internal/models"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// UserProvisioner creates users with an explicit role
type UserProvisioner interface {
	CreateUser(ctx context.Context, username, email, password, role string) (*models.User, error)
}

// UserLister lists every user
type UserLister interface {
	List(ctx context.Context) ([]*models.User, error)
}

// AuditLister reads the audit trail
type AuditLister interface {
	List(ctx context.Context, action string, limit int) ([]*models.AuditLog, error)
}

// AdminHandler handles administrative operations
type AdminHandler struct {
	provisioner UserProvisioner
	users       UserLister
	audits      AuditLister
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(provisioner UserProvisioner, users UserLister, audits AuditLister) *AdminHandler {
	return &AdminHandler{
		provisioner: provisioner,
		users:       users,
		audits:      audits,
	}
}

// CreateUserRequest represents a user creation request
type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// CreateUser provisions a user, optionally with the admin role
// POST /api/admin/users
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Email == "" || req.Password == "" {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Username, email, and password are required")
		return
	}
	if req.Role == "" {
		req.Role = models.RoleUser
	}

	user, err := h.provisioner.CreateUser(c.Request.Context(), req.Username, req.Email, req.Password, req.Role)
	switch {
	case errors.Is(err, auth.ErrInvalidRole):
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Role must be 'admin' or 'user'")
		return
	case errors.Is(err, auth.ErrPasswordTooLong):
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Password must be at most 72 bytes")
		return
	case errors.Is(err, auth.ErrUserExists):
		response.Error(c, http.StatusConflict, response.CodeConflict, "Email or username already in use")
		return
	case err != nil:
		response.Internal(c, err)
		return
	}

	response.Data(c, http.StatusCreated, user, "User created successfully")
}

// ListUsers returns every user
// GET /api/admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		response.Internal(c, err)
		return
	}
	if users == nil {
		users = []*models.User{}
	}

	response.Data(c, http.StatusOK, users, "")
}

// ListAudit returns recent audit events, optionally filtered by action
// GET /api/admin/audit
func (h *AdminHandler) ListAudit(c *gin.Context) {
	limit := queryInt(c, "limit", defaultAuditLimit)
	if limit <= 0 || limit > maxAuditLimit {
		limit = defaultAuditLimit
	}

	logs, err := h.audits.List(c.Request.Context(), c.Query("action"), limit)
	if err != nil {
		response.Internal(c, err)
		return
	}
	if logs == nil {
		logs = []*models.AuditLog{}
	}

	response.Data(c, http.StatusOK, logs, "")
}
