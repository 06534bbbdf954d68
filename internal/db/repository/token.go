package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stbhakita/parish/internal/models"
)

// TokenRepository handles session token data access.
// Timestamps are stored as unix milliseconds.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create stores a new session token
func (r *TokenRepository) Create(ctx context.Context, token *models.SessionToken) error {
	query := `
		INSERT INTO auth_tokens (user_id, token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt.UnixMilli(),
		token.CreatedAt.UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create token: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to create token: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	token.ID = id

	return nil
}

// GetByTokenHash retrieves a token by its hash, expired or not
func (r *TokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.SessionToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM auth_tokens
		WHERE token_hash = ?
	`

	token := &models.SessionToken{}
	var expiresAt, createdAt int64

	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&expiresAt,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	token.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	token.CreatedAt = time.UnixMilli(createdAt).UTC()

	return token, nil
}

// FindUserByTokenHash resolves a non-expired token to its owner in a single read
func (r *TokenRepository) FindUserByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	query := `
		SELECT u.id, u.username, u.email, u.password_hash, u.role, u.created_at
		FROM users u
		JOIN auth_tokens t ON u.id = t.user_id
		WHERE t.token_hash = ? AND t.expires_at > ?
	`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, tokenHash, now.UnixMilli()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token: %w", err)
	}

	return user, nil
}

// DeleteByTokenHash revokes a token. Deleting an unknown token is not an error.
func (r *TokenRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) (int64, error) {
	query := `DELETE FROM auth_tokens WHERE token_hash = ?`

	result, err := r.db.ExecContext(ctx, query, tokenHash)
	if err != nil {
		return 0, fmt.Errorf("failed to delete token: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return count, nil
}

// DeleteExpired deletes all tokens whose expiry is not after now
func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM auth_tokens WHERE expires_at <= ?`

	result, err := r.db.ExecContext(ctx, query, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return count, nil
}

// CountActiveByUserID counts a user's tokens that are still valid at now
func (r *TokenRepository) CountActiveByUserID(ctx context.Context, userID int64, now time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM auth_tokens WHERE user_id = ? AND expires_at > ?`

	var count int
	if err := r.db.QueryRowContext(ctx, query, userID, now.UnixMilli()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tokens: %w", err)
	}

	return count, nil
}
