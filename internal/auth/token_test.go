package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/stbhakita/parish/internal/models"
)

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := GenerateToken()
		require.NoError(t, err)

		raw, err := base64.RawURLEncoding.DecodeString(tok)
		require.NoError(t, err)
		assert.Len(t, raw, tokenLength)

		assert.False(t, seen[tok], "duplicate token generated")
		seen[tok] = true
	}
}

func TestHashToken(t *testing.T) {
	t.Parallel()

	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.NotEqual(t, "abc", HashToken("abc"))
}

func TestHashAndVerifyPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("secret1", bcrypt.MinCost)
	require.NoError(t, err)

	again, err := HashPassword("secret1", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "digests are salted")

	ok, err := VerifyPassword("secret1", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("secret2", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifyPassword("secret1", "not-a-bcrypt-hash")
	assert.Error(t, err)
}

type recordingStore struct {
	created []*models.SessionToken
	err     error
}

func (s *recordingStore) Create(_ context.Context, token *models.SessionToken) error {
	if s.err != nil {
		return s.err
	}
	s.created = append(s.created, token)
	return nil
}

func TestIssuer_Issue(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := &recordingStore{}
	issuer := NewIssuer(store, 0, func() time.Time { return now })

	issued, err := issuer.Issue(context.Background(), 42)
	require.NoError(t, err)

	require.Len(t, store.created, 1)
	row := store.created[0]
	assert.EqualValues(t, 42, row.UserID)
	assert.Equal(t, HashToken(issued.Token), row.TokenHash)
	assert.Equal(t, now, row.CreatedAt)
	assert.Equal(t, now.Add(DefaultTokenTTL), row.ExpiresAt)
	assert.Equal(t, row.ExpiresAt, issued.ExpiresAt)
}

func TestIssuer_StorageFailure(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("disk full")
	issuer := NewIssuer(&recordingStore{err: storeErr}, time.Hour, nil)

	_, err := issuer.Issue(context.Background(), 1)
	assert.ErrorIs(t, err, storeErr)
}
