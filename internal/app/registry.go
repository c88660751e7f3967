package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/kaizenverse/liveclass/internal/core"
	"github.com/kaizenverse/liveclass/internal/domain"
	"github.com/kaizenverse/liveclass/internal/metrics"
)

// Connection is the ephemeral record binding a signaling transport to a
// (session, user) pair. media and lastSeq are guarded by the owning
// Registry's lock; everything else is immutable after Bind.
type Connection struct {
	ID        string
	SessionID domain.SessionID
	UserID    domain.UserID
	Name      string
	Role      domain.Role
	JoinedAt  time.Time
	Transport core.SignalConn

	media   domain.MediaState
	lastSeq int64
}

// Registry is this process's authoritative view of who is live right now.
// Two parallel maps keyed by session id: connections and the participant
// views derived from them. Both are mutated together under one lock, so a
// participant entry exists iff a live connection does. Emptied session
// maps are removed entirely.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.SessionID]map[domain.UserID]*Connection
	parts map[domain.SessionID]map[domain.UserID]*domain.Participant
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[domain.SessionID]map[domain.UserID]*Connection),
		parts: make(map[domain.SessionID]map[domain.UserID]*domain.Participant),
	}
}

// Bind inserts the connection and its participant view. A live connection
// for the same (session, user) is displaced and returned: the newer join
// supersedes it, and the caller owns telling it so.
func (r *Registry) Bind(c *Connection, p domain.Participant) (displaced *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conns[c.SessionID] == nil {
		r.conns[c.SessionID] = make(map[domain.UserID]*Connection)
		r.parts[c.SessionID] = make(map[domain.UserID]*domain.Participant)
	}
	displaced = r.conns[c.SessionID][c.UserID]
	r.conns[c.SessionID][c.UserID] = c
	r.parts[c.SessionID][c.UserID] = &p

	r.updateGauges()
	log.Info().Str("module", "app.registry").Str("session", string(c.SessionID)).
		Str("user", string(c.UserID)).Str("conn", c.ID).Bool("superseded", displaced != nil).
		Msg("connection bound")
	return displaced
}

// Remove deletes the connection and its participant view. The entry is
// only removed when it still belongs to c, so a superseded connection's
// late cleanup cannot evict its successor. Returns the last known
// participant and how many connections remain in the session.
func (r *Registry) Remove(c *Connection) (part domain.Participant, remaining int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conns[c.SessionID][c.UserID] != c {
		return domain.Participant{}, 0, false
	}
	if p := r.parts[c.SessionID][c.UserID]; p != nil {
		part = *p
	}
	delete(r.conns[c.SessionID], c.UserID)
	delete(r.parts[c.SessionID], c.UserID)
	remaining = len(r.conns[c.SessionID])
	if remaining == 0 {
		delete(r.conns, c.SessionID)
		delete(r.parts, c.SessionID)
	}

	r.updateGauges()
	log.Info().Str("module", "app.registry").Str("session", string(c.SessionID)).
		Str("user", string(c.UserID)).Str("conn", c.ID).Int("remaining", remaining).
		Msg("connection removed")
	return part, remaining, true
}

// Conn returns the live connection for (session, user), if any.
func (r *Registry) Conn(sid domain.SessionID, uid domain.UserID) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[sid][uid]
	return c, ok
}

// Roster snapshots the session's participants, including the caller.
func (r *Registry) Roster(sid domain.SessionID) []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Map(lo.Values(r.parts[sid]), func(p *domain.Participant, _ int) domain.Participant {
		return *p
	})
}

// Peers snapshots the session's connections except the given user.
func (r *Registry) Peers(sid domain.SessionID, except domain.UserID) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	peers := make([]*Connection, 0, len(r.conns[sid]))
	for uid, c := range r.conns[sid] {
		if uid != except {
			peers = append(peers, c)
		}
	}
	return peers
}

// ApplyMedia merges the patch into both the connection and its
// participant view and returns the merged state. Patches older than the
// last applied sequence number are discarded; a zero seq means the client
// does not version its updates and last-writer-wins applies.
func (r *Registry) ApplyMedia(c *Connection, patch domain.MediaPatch, seq int64) (domain.MediaState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conns[c.SessionID][c.UserID] != c {
		return domain.MediaState{}, false
	}
	if seq != 0 {
		if seq <= c.lastSeq {
			return c.media, false
		}
		c.lastSeq = seq
	}
	c.media = patch.Apply(c.media)
	if p := r.parts[c.SessionID][c.UserID]; p != nil {
		p.Media = c.media
	}
	return c.media, true
}

// Media returns the connection's current merged media state.
func (r *Registry) Media(c *Connection) domain.MediaState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return c.media
}

// StaleBefore returns connections created before the cutoff, across all
// sessions. The caller decides liveness; the registry only tracks age.
func (r *Registry) StaleBefore(cutoff time.Time) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Connection
	for _, byUser := range r.conns {
		for _, c := range byUser {
			if c.JoinedAt.Before(cutoff) {
				out = append(out, c)
			}
		}
	}
	return out
}

// Counts returns the number of live sessions and connections.
func (r *Registry) Counts() (sessions, participants int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions = len(r.conns)
	for _, m := range r.conns {
		participants += len(m)
	}
	return sessions, participants
}

// Aggregates reports process-local totals: live sessions and the average
// participant count per session. Sessions on other coordinating processes
// are not reflected here.
func (r *Registry) Aggregates() (sessions int, avgParticipants float64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions = len(r.conns)
	if sessions == 0 {
		return 0, 0
	}
	total := lo.SumBy(lo.Values(r.conns), func(m map[domain.UserID]*Connection) int {
		return len(m)
	})
	return sessions, float64(total) / float64(sessions)
}

// updateGauges runs under the write lock.
func (r *Registry) updateGauges() {
	metrics.LiveSessions.Set(float64(len(r.conns)))
	total := 0
	for _, m := range r.conns {
		total += len(m)
	}
	metrics.LiveParticipants.Set(float64(total))
}
