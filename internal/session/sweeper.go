package session

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper reclaims finished sessions after Retention. Like the room
// sweeper this is a background policy: a done session may linger up to
// a sweep interval past its window.
type Sweeper struct {
	Coord     *Coordinator
	Interval  time.Duration
	Retention time.Duration
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
			if n := s.Coord.reap(now.UTC(), s.Retention); n > 0 {
				log.Info().Int("sessions", n).Msg("reclaimed finished sessions")
			}
		}
	}
}
