package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/stbhakita/parish/internal/models"
)

// TokenCreator persists issued tokens
type TokenCreator interface {
	Create(ctx context.Context, token *models.SessionToken) error
}

// IssuedToken is the bearer token handed to the client
type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Issuer generates session tokens and stores their digests
type Issuer struct {
	tokens TokenCreator
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates a new token issuer
func NewIssuer(tokens TokenCreator, ttl time.Duration, now func() time.Time) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Issuer{tokens: tokens, ttl: ttl, now: now}
}

// Issue creates a token for userID valid until now + ttl
func (i *Issuer) Issue(ctx context.Context, userID int64) (*IssuedToken, error) {
	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}

	now := i.now()
	record := &models.SessionToken{
		UserID:    userID,
		TokenHash: HashToken(token),
		ExpiresAt: now.Add(i.ttl),
		CreatedAt: now,
	}

	if err := i.tokens.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}

	return &IssuedToken{Token: token, ExpiresAt: record.ExpiresAt}, nil
}
