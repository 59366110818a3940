package sweeper

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"snaplink/internal/repository"
)

// Sweeper periodically bulk-deletes expired links from the durable store.
// It is cost control only: the resolver already enforces expiry lazily on
// every access, so correctness never depends on the sweep having run. The
// underlying delete is set-based and idempotent, so overlapping sweeps from
// multiple instances are harmless.
type Sweeper struct {
	repo     repository.LinkRepository
	interval time.Duration
	log      *logrus.Logger
}

func New(repo repository.LinkRepository, interval time.Duration, log *logrus.Logger) *Sweeper {
	return &Sweeper{repo: repo, interval: interval, log: log}
}

// Run sweeps on a fixed period until ctx is cancelled. Call from its own
// goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	count, err := s.repo.DeleteExpiredBefore(ctx, time.Now())
	if err != nil {
		s.log.WithError(err).Warn("expiration sweep failed")
		return
	}
	if count > 0 {
		s.log.WithField("purged", count).Info("expiration sweep completed")
	}
}
