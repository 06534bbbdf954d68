package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stbhakita/parish/internal/models"
)

// AnnouncementRepository handles announcement data access
type AnnouncementRepository struct {
	db *sql.DB
}

// NewAnnouncementRepository creates a new announcement repository
func NewAnnouncementRepository(db *sql.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

const announcementSelect = `
	SELECT a.id, a.title, a.description, a.date, a.time, a.venue,
	       a.created_by, u.username, a.created_at, a.updated_at
	FROM announcements a
	JOIN users u ON a.created_by = u.id
`

// Create creates a new announcement and reloads it with the author's username
func (r *AnnouncementRepository) Create(ctx context.Context, a *models.Announcement) (*models.Announcement, error) {
	query := `
		INSERT INTO announcements (title, description, date, time, venue, created_by)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		a.Title,
		a.Description,
		a.Date,
		nullString(a.Time),
		nullString(a.Venue),
		a.CreatedByID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create announcement: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return r.GetByID(ctx, id)
}

// GetByID retrieves an announcement by ID
func (r *AnnouncementRepository) GetByID(ctx context.Context, id int64) (*models.Announcement, error) {
	a, err := scanAnnouncement(r.db.QueryRowContext(ctx, announcementSelect+` WHERE a.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get announcement: %w", err)
	}
	return a, nil
}

// List returns a page of announcements, most recent date first
func (r *AnnouncementRepository) List(ctx context.Context, limit, offset int) ([]*models.Announcement, error) {
	query := announcementSelect + ` ORDER BY a.date DESC, a.created_at DESC, a.id DESC LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list announcements: %w", err)
	}
	defer rows.Close()

	announcements := []*models.Announcement{}

	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan announcement: %w", err)
		}
		announcements = append(announcements, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list announcements: %w", err)
	}

	return announcements, nil
}

// Count returns the total number of announcements
func (r *AnnouncementRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM announcements`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count announcements: %w", err)
	}
	return count, nil
}

// Update overwrites the editable fields of an announcement
func (r *AnnouncementRepository) Update(ctx context.Context, a *models.Announcement) (*models.Announcement, error) {
	query := `
		UPDATE announcements
		SET title = ?, description = ?, date = ?, time = ?, venue = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		a.Title,
		a.Description,
		a.Date,
		nullString(a.Time),
		nullString(a.Venue),
		a.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update announcement: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}

	return r.GetByID(ctx, a.ID)
}

// Delete deletes an announcement
func (r *AnnouncementRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM announcements WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete announcement: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

func scanAnnouncement(row rowScanner) (*models.Announcement, error) {
	a := &models.Announcement{}
	var timeOfDay, venue sql.NullString

	err := row.Scan(
		&a.ID,
		&a.Title,
		&a.Description,
		&a.Date,
		&timeOfDay,
		&venue,
		&a.CreatedByID,
		&a.CreatedBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Time = timeOfDay.String
	a.Venue = venue.String

	return a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
