// Package store holds the session-store contract the signaling core
// consumes, plus the bundled sqlite implementation. The durable facts
// (sessions, rosters, identities) are owned elsewhere; this core reads
// them for admission and writes best-effort presence bookkeeping.
package store

import (
	"context"
	"errors"

	"github.com/kaizenverse/liveclass/internal/domain"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUserNotFound    = errors.New("user not found")
)

type Store interface {
	// FindSession returns the durable session fact.
	FindSession(ctx context.Context, id domain.SessionID) (domain.SessionInfo, error)

	// IsActiveParticipant reports whether the user is registered and
	// active in the session's durable roster.
	IsActiveParticipant(ctx context.Context, sid domain.SessionID, uid domain.UserID) (bool, error)

	// FetchIdentity returns the user's display identity.
	FetchIdentity(ctx context.Context, uid domain.UserID) (domain.Identity, error)

	// PersistMediaState records the merged media state. Best effort.
	PersistMediaState(ctx context.Context, sid domain.SessionID, uid domain.UserID, state domain.MediaState) error

	// MarkLeft flags the participant inactive with a leave timestamp.
	MarkLeft(ctx context.Context, sid domain.SessionID, uid domain.UserID) error

	// SetLiveCount persists the session's current live participant count.
	SetLiveCount(ctx context.Context, sid domain.SessionID, count int) error
}
