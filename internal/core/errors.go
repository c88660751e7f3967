package core

import "errors"

var (
	// ErrBackpressure means a peer's send buffer was full and the frame
	// was dropped. Signaling frames are never queued beyond the buffer.
	ErrBackpressure = errors.New("signal send buffer full")

	// ErrSessionNotJoinable covers a missing session and one whose
	// status no longer admits peers.
	ErrSessionNotJoinable = errors.New("session not found or not joinable")

	// ErrNotAuthorized means the caller is neither the session's teacher
	// nor a registered active participant.
	ErrNotAuthorized = errors.New("not authorized for this session")

	// ErrSessionMismatch means a message claimed a session other than the
	// one its connection is bound to.
	ErrSessionMismatch = errors.New("session does not match bound connection")

	// ErrTargetUnreachable means the relay target has no live connection
	// in the session. Surfaced to the sender only.
	ErrTargetUnreachable = errors.New("target participant not connected")

	// ErrConnectionClosed means the originating transport went away while
	// its request was in flight.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrNotJoined means a message arrived before join-session completed.
	ErrNotJoined = errors.New("not joined to any session")
)
