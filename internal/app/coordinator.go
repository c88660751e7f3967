package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kaizenverse/liveclass/internal/core"
	"github.com/kaizenverse/liveclass/internal/domain"
	"github.com/kaizenverse/liveclass/internal/metrics"
	"github.com/kaizenverse/liveclass/internal/store"
)

// Reason classifies why a connection left the registry.
type Reason string

const (
	ReasonLeave     Reason = "leave"
	ReasonTransport Reason = "transport"
	ReasonKick      Reason = "kick"
	ReasonReaper    Reason = "reaper"
)

// Coordinator mediates every signaling flow against the registry and the
// session store: admission, relay, broadcast, disconnect, kick, stats.
// Registry mutations happen under the registry's own lock; store reads
// happen outside it, and liveness is re-checked afterwards because the
// registry may have moved on during the call.
type Coordinator struct {
	Reg    *Registry
	Store  store.Store
	Writer *store.Writer
}

func NewCoordinator(reg *Registry, st store.Store, w *store.Writer) *Coordinator {
	return &Coordinator{Reg: reg, Store: st, Writer: w}
}

// Join admits a peer into a session. The caller must be the session's
// teacher or an active participant of its durable roster. On success the
// peer is bound into the registry (superseding any prior connection for
// the same session and user), the rest of the session learns about it,
// and the joiner receives the full roster including itself.
func (co *Coordinator) Join(ctx context.Context, t core.SignalConn, req core.JoinSession) (*Connection, error) {
	sess, err := co.Store.FindSession(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, core.ErrSessionNotJoinable
		}
		return nil, fmt.Errorf("admission check: %w", err)
	}
	if !sess.Status.Joinable() {
		return nil, core.ErrSessionNotJoinable
	}

	role := req.Role
	if role == "" {
		role = domain.RoleStudent
	}
	if req.UserID == sess.TeacherID {
		role = domain.RoleTeacher
	} else {
		active, err := co.Store.IsActiveParticipant(ctx, req.SessionID, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("admission check: %w", err)
		}
		if !active {
			return nil, core.ErrNotAuthorized
		}
	}

	ident, err := co.Store.FetchIdentity(ctx, req.UserID)
	if err != nil {
		// The join still proceeds: identity is display-only.
		log.Warn().Err(err).Str("module", "app.coordinator").
			Str("user", string(req.UserID)).Msg("identity fetch failed, using fallback")
		ident = domain.Identity{ID: req.UserID, Name: string(req.UserID)}
	}

	// The store calls above are suspension points; the transport may have
	// died while we were away.
	if !t.Alive() {
		return nil, core.ErrConnectionClosed
	}

	var media domain.MediaState
	if req.Media != nil {
		media = req.Media.Apply(media)
	}

	conn := &Connection{
		ID:        uuid.NewString(),
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Name:      ident.Name,
		Role:      role,
		JoinedAt:  time.Now(),
		Transport: t,
		media:     media,
	}
	part := domain.Participant{
		ID:       req.UserID,
		Name:     ident.Name,
		Username: ident.Username,
		Role:     role,
		Media:    media,
	}

	if displaced := co.Reg.Bind(conn, part); displaced != nil {
		// The user never left, so no participant-left for the old
		// connection; it is simply told and cut off.
		co.notify(displaced.Transport, core.KindError,
			core.ErrorNotice{Message: "superseded by a newer connection"})
		displaced.Transport.Kill()
	}

	co.broadcast(req.SessionID, req.UserID, core.KindParticipantJoined, part)
	co.notify(t, core.KindParticipants, core.Participants{Participants: co.Reg.Roster(req.SessionID)})

	log.Info().Str("module", "app.coordinator").Str("session", string(req.SessionID)).
		Str("user", string(req.UserID)).Str("role", string(role)).Msg("participant joined")
	return conn, nil
}

// Relay forwards a handshake payload to a single named peer in the same
// session, stamped with the verified sender identity. Undeliverable
// payloads are dropped, never queued.
func (co *Coordinator) Relay(conn *Connection, kind core.Kind, p core.RelayPayload) error {
	if p.Session() != conn.SessionID {
		return core.ErrSessionMismatch
	}
	target, ok := co.Reg.Conn(conn.SessionID, p.Target())
	if !ok {
		metrics.RelayUnreachable.Inc()
		return core.ErrTargetUnreachable
	}

	p.Annotate(conn.UserID, conn.Name)
	frame, err := core.Encode(kind, p)
	if err != nil {
		return err
	}
	if err := target.Transport.TrySend(frame); err != nil {
		// Slow receiver: the payload is dropped, not retried.
		metrics.BroadcastDropped.Inc()
		log.Warn().Str("module", "app.coordinator").Str("kind", string(kind)).
			Str("target", string(p.Target())).Msg("relay dropped on backpressure")
		return nil
	}
	metrics.RelayForwarded.WithLabelValues(string(kind)).Inc()
	return nil
}

// UpdateMedia merges a partial media update from the peer itself, tells
// the rest of the session about the delta, and persists the merged state
// in the background. Stale patches (older seq) are discarded.
func (co *Coordinator) UpdateMedia(conn *Connection, ev *core.MediaStateChanged) error {
	if ev.SessionID != conn.SessionID || ev.UserID != conn.UserID {
		return core.ErrSessionMismatch
	}
	merged, applied := co.Reg.ApplyMedia(conn, ev.Media, ev.Seq)
	if !applied {
		log.Debug().Str("module", "app.coordinator").Str("user", string(conn.UserID)).
			Int64("seq", ev.Seq).Msg("stale media patch discarded")
		return nil
	}

	co.broadcast(conn.SessionID, conn.UserID, core.KindMediaState, core.MediaStateChanged{
		SessionID: conn.SessionID,
		UserID:    conn.UserID,
		Media:     ev.Media,
	})

	sid, uid := conn.SessionID, conn.UserID
	co.Writer.Enqueue("media_state", func(ctx context.Context) error {
		return co.Store.PersistMediaState(ctx, sid, uid, merged)
	})
	return nil
}

// Share re-broadcasts a screen-share start/stop verbatim with the sender
// identity attached. Nothing is retained.
func (co *Coordinator) Share(conn *Connection, kind core.Kind, ev *core.ScreenShare) error {
	if ev.SessionID != conn.SessionID {
		return core.ErrSessionMismatch
	}
	ev.UserID = conn.UserID
	ev.UserName = conn.Name
	co.broadcast(conn.SessionID, conn.UserID, kind, ev)
	return nil
}

// ShareDocument re-broadcasts a document notice verbatim with the sender
// identity attached.
func (co *Coordinator) ShareDocument(conn *Connection, ev *core.DocumentShared) error {
	if ev.SessionID != conn.SessionID {
		return core.ErrSessionMismatch
	}
	ev.UserID = conn.UserID
	ev.UserName = conn.Name
	co.broadcast(conn.SessionID, conn.UserID, core.KindDocument, ev)
	return nil
}

// Drop removes the connection from the registry, notifies the remaining
// members, and schedules the store bookkeeping. Idempotent: a connection
// already removed (or superseded) is a no-op. In-memory cleanup never
// waits on the store.
func (co *Coordinator) Drop(conn *Connection, reason Reason) {
	part, remaining, ok := co.Reg.Remove(conn)
	if !ok {
		return
	}
	// An explicit leave keeps the socket: the peer may join another
	// session on it. Every other reason terminates the transport.
	if reason != ReasonLeave {
		conn.Transport.Kill()
	}

	log.Info().Str("module", "app.coordinator").Str("session", string(conn.SessionID)).
		Str("user", string(conn.UserID)).Str("reason", string(reason)).Msg("participant left")

	co.broadcast(conn.SessionID, conn.UserID, core.KindParticipantLeft, part)

	sid, uid := conn.SessionID, conn.UserID
	co.Writer.Enqueue("mark_left", func(ctx context.Context) error {
		return co.Store.MarkLeft(ctx, sid, uid)
	})
	co.Writer.Enqueue("live_count", func(ctx context.Context) error {
		return co.Store.SetLiveCount(ctx, sid, remaining)
	})
}

// Kick forcibly removes a participant. Teacher-only. A target with no
// live connection is a silent no-op, not an error.
func (co *Coordinator) Kick(ctx context.Context, sid domain.SessionID, caller, target domain.UserID) error {
	sess, err := co.Store.FindSession(ctx, sid)
	if err != nil {
		return err
	}
	if sess.TeacherID != caller {
		return core.ErrNotAuthorized
	}

	conn, ok := co.Reg.Conn(sid, target)
	if !ok {
		return nil
	}
	co.notify(conn.Transport, core.KindKicked, core.Kicked{
		SessionID: sid,
		Reason:    "removed by the teacher",
	})
	// Drop here rather than waiting for the pump to notice the dead
	// transport; the pump's own Drop becomes a no-op.
	co.Drop(conn, ReasonKick)
	return nil
}

// SessionStats is the teacher-facing view of a live session plus this
// process's aggregate counters.
type SessionStats struct {
	SessionID         domain.SessionID     `json:"sessionId"`
	Participants      []domain.Participant `json:"participants"`
	TotalParticipants int                  `json:"totalParticipants"`
	ProcessSessions   int                  `json:"totalSessions"`
	AvgParticipants   float64              `json:"avgParticipantsPerSession"`
}

// Stats returns the live roster and process-local aggregates. Teacher-only.
func (co *Coordinator) Stats(ctx context.Context, sid domain.SessionID, caller domain.UserID) (SessionStats, error) {
	sess, err := co.Store.FindSession(ctx, sid)
	if err != nil {
		return SessionStats{}, err
	}
	if sess.TeacherID != caller {
		return SessionStats{}, core.ErrNotAuthorized
	}

	roster := co.Reg.Roster(sid)
	sessions, avg := co.Reg.Aggregates()
	return SessionStats{
		SessionID:         sid,
		Participants:      roster,
		TotalParticipants: len(roster),
		ProcessSessions:   sessions,
		AvgParticipants:   avg,
	}, nil
}

// broadcast fans an event out to every session member except one. Slow
// members lose the frame; nothing is queued on their behalf.
func (co *Coordinator) broadcast(sid domain.SessionID, except domain.UserID, kind core.Kind, payload any) {
	frame, err := core.Encode(kind, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.coordinator").Str("kind", string(kind)).Msg("broadcast encode failed")
		return
	}
	for _, peer := range co.Reg.Peers(sid, except) {
		if err := peer.Transport.TrySend(frame); err != nil {
			metrics.BroadcastDropped.Inc()
			log.Warn().Str("module", "app.coordinator").Str("kind", string(kind)).
				Str("peer", string(peer.UserID)).Msg("broadcast dropped on backpressure")
		}
	}
}

func (co *Coordinator) notify(t core.SignalConn, kind core.Kind, payload any) {
	frame, err := core.Encode(kind, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.coordinator").Str("kind", string(kind)).Msg("notify encode failed")
		return
	}
	_ = t.TrySend(frame)
}
