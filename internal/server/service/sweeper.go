package service

import (
	"context"
	"time"

	"github.com/kasblog/kasblog/internal/database"
	"github.com/sirupsen/logrus"
)

// DefaultSweepInterval is the delay between two sweeps.
const DefaultSweepInterval = time.Hour

// A Sweeper periodically removes expired short URLs.
type Sweeper struct {
	db       database.Client
	interval time.Duration
	logger   logrus.FieldLogger
	now      func() time.Time
}

// NewSweeper returns a new Sweeper.
func NewSweeper(db database.Client, interval time.Duration, logger logrus.FieldLogger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		db:       db,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the time source.
func (s *Sweeper) SetClock(now func() time.Time) {
	s.now = now
}

// Sweep removes the short URLs expired now.
func (s *Sweeper) Sweep() (int, error) {
	n, err := s.db.DeleteExpiredShortURLs(s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.WithField("count", n).Info("expired short urls purged")
	}
	return n, nil
}

// Run sweeps once immediately then at every interval until ctx is done.
// Rows that expired while the service was down are purged on start.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(); err != nil {
			s.logger.WithError(err).Error("could not purge expired short urls")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
