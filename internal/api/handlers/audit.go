package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/stbhakita/parish/internal/api/response"
	"github.com/stbhakita/parish/internal/logging"
	"github.com/stbhakita/parish/internal/models"
)

// AuditRecorder persists audit events
type AuditRecorder interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// auditor writes audit rows; a failed write is logged and never fails the request
type auditor struct {
	repo AuditRecorder
}

func newAuditor(repo AuditRecorder) *auditor {
	return &auditor{repo: repo}
}

func (a *auditor) record(c *gin.Context, action, username string, success bool, errMsg string) {
	if a == nil || a.repo == nil {
		return
	}

	entry := &models.AuditLog{
		Action:    action,
		Username:  username,
		ClientIP:  response.ClientIP(c),
		UserAgent: c.GetHeader("User-Agent"),
		Success:   success,
		ErrorMsg:  errMsg,
	}

	if err := a.repo.Create(c.Request.Context(), entry); err != nil {
		logging.Error().Err(err).Str("action", action).Msg("failed to write audit log")
	}
}
