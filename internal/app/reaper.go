package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kaizenverse/liveclass/internal/metrics"
)

// Reaper periodically removes connections the disconnection path missed:
// old enough to be past the timeout and whose transport reports dead.
// Removals go through the coordinator's normal cleanup, so remaining
// members still see participant-left and the store is still updated.
type Reaper struct {
	Coordinator *Coordinator
	Interval    time.Duration
	Timeout     time.Duration
}

func NewReaper(co *Coordinator, interval, timeout time.Duration) *Reaper {
	return &Reaper{Coordinator: co, Interval: interval, Timeout: timeout}
}

// Run sweeps on the interval until the context is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep runs one pass over the registry.
func (r *Reaper) Sweep() {
	cutoff := time.Now().Add(-r.Timeout)
	for _, conn := range r.Coordinator.Reg.StaleBefore(cutoff) {
		if conn.Transport.Alive() {
			continue
		}
		log.Info().Str("module", "app.reaper").Str("session", string(conn.SessionID)).
			Str("user", string(conn.UserID)).Time("joined_at", conn.JoinedAt).
			Msg("reaping stale connection")
		metrics.ReapedConnections.Inc()
		r.Coordinator.Drop(conn, ReasonReaper)
	}
}
