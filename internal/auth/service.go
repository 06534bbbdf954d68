package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stbhakita/parish/internal/db/repository"
	"github.com/stbhakita/parish/internal/models"
)

// DefaultTokenTTL is the validity window of a freshly issued session token
const DefaultTokenTTL = 24 * time.Hour

var (
	// ErrInvalidCredentials covers both an unknown email and a wrong password
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUserExists is returned when the email or the username is taken
	ErrUserExists = errors.New("email or username already in use")

	// ErrMissingToken is returned when no bearer token was presented
	ErrMissingToken = errors.New("token required")

	// ErrInvalidToken is returned for unknown, revoked or expired tokens
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrInvalidRole is returned when provisioning a user with an unknown role
	ErrInvalidRole = errors.New("invalid role")

	// ErrPasswordTooLong is returned for passwords bcrypt cannot hash
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
)

// maxPasswordBytes is the bcrypt input limit
const maxPasswordBytes = 72

// UserStore is the user persistence the service needs
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
}

// TokenStore is the session token persistence the service needs
type TokenStore interface {
	Create(ctx context.Context, token *models.SessionToken) error
	FindUserByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	DeleteByTokenHash(ctx context.Context, tokenHash string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTokenTTL sets the session token validity window
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

// WithBcryptCost sets the password hashing cost
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// Service implements registration, login, logout and token resolution
type Service struct {
	users  UserStore
	tokens TokenStore
	issuer *Issuer

	now  func() time.Time
	ttl  time.Duration
	cost int

	// dummyHash keeps the unknown-email path as slow as a wrong password
	dummyHash string
}

// NewService creates a new auth service
func NewService(users UserStore, tokens TokenStore, opts ...Option) (*Service, error) {
	s := &Service{
		users:  users,
		tokens: tokens,
		now:    time.Now,
		ttl:    DefaultTokenTTL,
	}
	for _, opt := range opts {
		opt(s)
	}

	dummy, err := HashPassword("parish-dummy-password", s.cost)
	if err != nil {
		return nil, err
	}
	s.dummyHash = dummy
	s.issuer = NewIssuer(tokens, s.ttl, s.now)

	return s, nil
}

// Login verifies credentials and issues a new session token
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, *IssuedToken, error) {
	if len(password) > maxPasswordBytes {
		return nil, nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		_, _ = VerifyPassword(password, s.dummyHash)
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, fmt.Errorf("login: %w", err)
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, nil, fmt.Errorf("login: %w", err)
	}
	if !ok {
		return nil, nil, ErrInvalidCredentials
	}

	issued, err := s.issuer.Issue(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("login: %w", err)
	}

	return user, issued, nil
}

// Register creates a regular user and issues a session token.
// Registration never creates an admin.
func (s *Service) Register(ctx context.Context, username, email, password string) (*models.User, *IssuedToken, error) {
	user, err := s.CreateUser(ctx, username, email, password, models.RoleUser)
	if err != nil {
		return nil, nil, err
	}

	issued, err := s.issuer.Issue(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("register: %w", err)
	}

	return user, issued, nil
}

// CreateUser provisions a user with the given role without issuing a token
func (s *Service) CreateUser(ctx context.Context, username, email, password, role string) (*models.User, error) {
	if role != models.RoleAdmin && role != models.RoleUser {
		return nil, ErrInvalidRole
	}
	if len(password) > maxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	exists, err := s.users.ExistsByEmailOrUsername(ctx, email, username)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	hash, err := HashPassword(password, s.cost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.now(),
	}

	// the unique constraints settle a race between two identical registrations
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// EnsureUser creates the user unless one with the same email already exists.
// It reports whether a user was created.
func (s *Service) EnsureUser(ctx context.Context, username, email, password, role string) (bool, error) {
	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, fmt.Errorf("ensure user: %w", err)
	}

	if _, err := s.CreateUser(ctx, username, email, password, role); err != nil {
		return false, err
	}
	return true, nil
}

// Logout revokes the token if one is given. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	if _, err := s.tokens.DeleteByTokenHash(ctx, HashToken(token)); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	return nil
}

// Resolve maps a bearer token to its owner. It never mutates state.
func (s *Service) Resolve(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	user, err := s.tokens.FindUserByTokenHash(ctx, HashToken(token), s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("resolve token: %w", err)
	}

	return user, nil
}

// PurgeExpired deletes every token whose expiry has passed
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.tokens.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("purge expired tokens: %w", err)
	}
	return n, nil
}
