package auth

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/loveconnect/loveconnect/internal/store"
)

// Sweeper periodically deletes expired sessions from the store. It replaces
// per-request cleanup lotteries with a single scheduled pass, so request
// latency never depends on a cleanup sweep.
type Sweeper struct {
	sessions store.SessionStore
	timeout  time.Duration
	interval time.Duration
	limiters []*RateLimiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a sweeper that runs every interval. The sweeper starts
// a background goroutine that runs until Stop() is called. Any rate
// limiters passed in have their expired windows pruned on the same cadence.
func NewSweeper(ctx context.Context, sessions store.SessionStore, timeout, interval time.Duration, limiters ...*RateLimiter) *Sweeper {
	sweeperCtx, cancel := context.WithCancel(ctx)

	s := &Sweeper{
		sessions: sessions,
		timeout:  timeout,
		interval: interval,
		limiters: limiters,
		ctx:      sweeperCtx,
		cancel:   cancel,
	}

	s.wg.Add(1)
	go s.run()

	return s
}

// Stop gracefully stops the background sweep goroutine.
func (s *Sweeper) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			log.Info().Msg("Session sweeper stopped")
			return

		case <-ticker.C:
			if err := s.sweep(s.ctx); err != nil {
				log.Error().Err(err).Msg("Session sweep failed")
			}
			for _, limiter := range s.limiters {
				limiter.Prune()
			}
		}
	}
}

// sweep deletes expired sessions, retrying transient storage failures with
// exponential backoff before giving up until the next tick.
func (s *Sweeper) sweep(ctx context.Context) error {
	operation := func() (int, error) {
		return s.sessions.DeleteExpired(ctx, s.timeout)
	}

	count, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
	if err != nil {
		return err
	}

	if count > 0 {
		log.Info().Int("count", count).Msg("Swept expired sessions")
	}

	return nil
}
