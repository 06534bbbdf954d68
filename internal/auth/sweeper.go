package auth

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/stbhakita/parish/internal/logging"
)

// ExpiredPurger deletes expired session tokens
type ExpiredPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Sweeper periodically removes expired session tokens so that login
// never has to clean up after itself.
type Sweeper struct {
	purger   ExpiredPurger
	interval time.Duration
	log      zerolog.Logger
}

// NewSweeper creates a sweeper running every interval
func NewSweeper(purger ExpiredPurger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{purger: purger, interval: interval, log: logging.With("token-sweeper")}
}

// Run sweeps once immediately and then on every tick until ctx is done
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs a single purge and returns the number of deleted tokens
func (s *Sweeper) Sweep(ctx context.Context) int64 {
	n, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error().Err(err).Msg("failed to purge expired tokens")
		}
		return 0
	}
	if n > 0 {
		s.log.Info().Int64("deleted", n).Msg("purged expired tokens")
	}
	return n
}
