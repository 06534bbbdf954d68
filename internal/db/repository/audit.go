package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stbhakita/parish/internal/models"
)

// AuditRepository handles audit log data access
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create creates a new audit log entry
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (action, username, client_ip, user_agent, success, error_msg)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	success := 0
	if log.Success {
		success = 1
	}

	result, err := r.db.ExecContext(ctx, query,
		log.Action,
		nullString(log.Username),
		log.ClientIP,
		nullString(log.UserAgent),
		success,
		nullString(log.ErrorMsg),
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	log.ID = id
	log.Timestamp = time.Now()

	return nil
}

// List lists audit logs, newest first, optionally filtered by action
func (r *AuditRepository) List(ctx context.Context, action string, limit int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, timestamp, action, username, client_ip, user_agent, success, error_msg
		FROM audit_logs
		WHERE 1=1
	`
	args := []any{}

	if action != "" {
		query += " AND action = ?"
		args = append(args, action)
	}

	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.AuditLog

	for rows.Next() {
		log := &models.AuditLog{}
		var success int
		var username, userAgent, errorMsg sql.NullString

		err := rows.Scan(
			&log.ID,
			&log.Timestamp,
			&log.Action,
			&username,
			&log.ClientIP,
			&userAgent,
			&success,
			&errorMsg,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}

		log.Success = success == 1
		log.Username = username.String
		log.UserAgent = userAgent.String
		log.ErrorMsg = errorMsg.String

		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	return logs, nil
}
