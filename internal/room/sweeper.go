package room

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper reclaims rooms stuck in waiting beyond MaxWaiting. This is a
// background policy, not a latency guarantee: a room may linger a full
// sweep interval past its deadline.
type Sweeper struct {
	Manager    *Manager
	Interval   time.Duration
	MaxWaiting time.Duration
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweep(now.UTC())
		}
	}
}

func (s *Sweeper) sweep(now time.Time) {
	cutoff := now.Add(-s.MaxWaiting)
	for _, r := range s.Manager.reg.List() {
		if r.CurrentStatus() != StatusWaiting || !r.CreatedAt.Before(cutoff) {
			continue
		}
		if _, err := s.Manager.Finish(r.Code); err != nil {
			log.Warn().Err(err).Str("room", r.Code).Msg("sweep abandoned room")
			continue
		}
		s.Manager.reg.Delete(r.Code)
		log.Info().Str("room", r.Code).Time("createdAt", r.CreatedAt).Msg("reclaimed abandoned room")
	}
}
