// Package app wires storage, services and the HTTP server together.
//
// New initializes in dependency order: database, migrations, repositories,
// auth service, seeded admin, rate limiters, router, token sweeper.
// Close releases what New acquired.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/stbhakita/parish/internal/api"
	"github.com/stbhakita/parish/internal/auth"
	"github.com/stbhakita/parish/internal/config"
	"github.com/stbhakita/parish/internal/db"
	"github.com/stbhakita/parish/internal/db/repository"
	"github.com/stbhakita/parish/internal/logging"
	"github.com/stbhakita/parish/internal/models"
	"github.com/stbhakita/parish/internal/ratelimit"
)

// App is the application context shared by the server and its middleware
type App struct {
	Config *config.Config
	DB     *db.DB

	Users         *repository.UserRepository
	Tokens        *repository.TokenRepository
	Announcements *repository.AnnouncementRepository
	Readings      *repository.ReadingRepository
	Audit         *repository.AuditRepository

	Auth     *auth.Service
	Limiters api.Limiters
	Server   *api.Server

	sweeper *auth.Sweeper
}

type options struct {
	now func() time.Time
}

// Option configures New
type Option func(*options)

// WithClock replaces time.Now for token expiry and rate limit windows
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New builds the application from configuration
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, DB: database}
	if err := a.init(ctx, o); err != nil {
		database.Close()
		return nil, err
	}

	return a, nil
}

func (a *App) init(ctx context.Context, o options) error {
	cfg := a.Config

	if err := db.RunMigrations(a.DB); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	a.Users = repository.NewUserRepository(a.DB.DB)
	a.Tokens = repository.NewTokenRepository(a.DB.DB)
	a.Announcements = repository.NewAnnouncementRepository(a.DB.DB)
	a.Readings = repository.NewReadingRepository(a.DB.DB)
	a.Audit = repository.NewAuditRepository(a.DB.DB)

	svc, err := auth.NewService(a.Users, a.Tokens,
		auth.WithClock(o.now),
		auth.WithTokenTTL(cfg.GetTokenTTLDuration()),
		auth.WithBcryptCost(cfg.Auth.BcryptCost),
	)
	if err != nil {
		return fmt.Errorf("failed to create auth service: %w", err)
	}
	a.Auth = svc

	if err := a.seedAdmin(ctx); err != nil {
		return err
	}

	if cfg.RateLimit.Enabled {
		a.Limiters = api.Limiters{
			Auth: ratelimit.New(cfg.RateLimit.Auth.MaxRequests, cfg.RateLimit.Auth.WindowDuration(), ratelimit.WithClock(o.now)),
			API:  ratelimit.New(cfg.RateLimit.API.MaxRequests, cfg.RateLimit.API.WindowDuration(), ratelimit.WithClock(o.now)),
		}
		logging.Info().
			Int("auth_max", a.Limiters.Auth.Limit()).
			Dur("auth_window", a.Limiters.Auth.Window()).
			Int("api_max", a.Limiters.API.Limit()).
			Dur("api_window", a.Limiters.API.Window()).
			Msg("rate limiting enabled")
	}

	server, err := api.NewServer(cfg, a.Auth, a.Users, a.Announcements, a.Readings, a.Audit, a.Limiters,
		api.WithClock(o.now),
	)
	if err != nil {
		return err
	}
	a.Server = server

	a.sweeper = auth.NewSweeper(a.Auth, cfg.GetCleanupIntervalDuration())

	return nil
}

func (a *App) seedAdmin(ctx context.Context) error {
	seed := a.Config.Admin.Seed
	if !seed.Enabled() {
		return nil
	}

	created, err := a.Auth.EnsureUser(ctx, seed.Username, seed.Email, seed.Password, models.RoleAdmin)
	if err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}
	if created {
		logging.Info().Str("email", seed.Email).Msg("seeded admin user")
	}
	return nil
}

// Handler returns the HTTP handler serving every route
func (a *App) Handler() http.Handler {
	return a.Server.Router()
}

// Run serves HTTP and sweeps expired tokens until ctx is cancelled or the
// listener fails, then shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.sweeper.Run(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", a.Config.Server.ListenAddr).Msg("starting HTTP server")
		errCh <- a.Server.Run()
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	logging.Info().Msg("shutting down server")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.Config.GetShutdownTimeoutDuration())
	defer cancelShutdown()

	if err := a.Server.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to shut down server: %w", err)
	}

	cancel()
	wg.Wait()

	return runErr
}

// Close releases the database handle
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
