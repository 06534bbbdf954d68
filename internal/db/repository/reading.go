package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stbhakita/parish/internal/models"
)

// ReadingRepository handles Sunday reading data access
type ReadingRepository struct {
	db *sql.DB
}

// NewReadingRepository creates a new reading repository
func NewReadingRepository(db *sql.DB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

const readingSelect = `
	SELECT r.id, r.title, r.reading_text, r.sunday_date,
	       r.uploaded_by, u.username, r.created_at
	FROM sunday_readings r
	JOIN users u ON r.uploaded_by = u.id
`

// Create stores a reading. A second reading for the same Sunday fails with
// ErrDuplicate.
func (r *ReadingRepository) Create(ctx context.Context, reading *models.Reading) (*models.Reading, error) {
	query := `
		INSERT INTO sunday_readings (title, reading_text, sunday_date, uploaded_by)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		reading.Title,
		reading.ReadingText,
		reading.SundayDate,
		reading.UploadedByID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create reading: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return r.GetByID(ctx, id)
}

// GetByID retrieves a reading by ID
func (r *ReadingRepository) GetByID(ctx context.Context, id int64) (*models.Reading, error) {
	reading, err := scanReading(r.db.QueryRowContext(ctx, readingSelect+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reading: %w", err)
	}
	return reading, nil
}

// Current returns the latest reading dated on or before day (YYYY-MM-DD)
func (r *ReadingRepository) Current(ctx context.Context, day string) (*models.Reading, error) {
	query := readingSelect + ` WHERE r.sunday_date <= ? ORDER BY r.sunday_date DESC LIMIT 1`

	reading, err := scanReading(r.db.QueryRowContext(ctx, query, day))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current reading: %w", err)
	}
	return reading, nil
}

// List returns a page of readings, most recent Sunday first
func (r *ReadingRepository) List(ctx context.Context, limit, offset int) ([]*models.Reading, error) {
	query := readingSelect + ` ORDER BY r.sunday_date DESC, r.created_at DESC LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}
	defer rows.Close()

	readings := []*models.Reading{}
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, reading)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}

	return readings, nil
}

// Count returns the total number of readings
func (r *ReadingRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sunday_readings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count readings: %w", err)
	}
	return count, nil
}

// Update overwrites the editable fields of a reading
func (r *ReadingRepository) Update(ctx context.Context, reading *models.Reading) (*models.Reading, error) {
	query := `
		UPDATE sunday_readings
		SET title = ?, reading_text = ?, sunday_date = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		reading.Title,
		reading.ReadingText,
		reading.SundayDate,
		reading.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to update reading: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}

	return r.GetByID(ctx, reading.ID)
}

// Delete deletes a reading
func (r *ReadingRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sunday_readings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reading: %w", err)
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

func scanReading(row rowScanner) (*models.Reading, error) {
	reading := &models.Reading{}
	err := row.Scan(
		&reading.ID,
		&reading.Title,
		&reading.ReadingText,
		&reading.SundayDate,
		&reading.UploadedByID,
		&reading.UploadedBy,
		&reading.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return reading, nil
}
