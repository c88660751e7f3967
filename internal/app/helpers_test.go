package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kaizenverse/liveclass/internal/core"
	"github.com/kaizenverse/liveclass/internal/domain"
	"github.com/kaizenverse/liveclass/internal/store"
)

// fakeConn records every frame sent to a peer.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	alive  bool
	full   bool
}

func newFakeConn() *fakeConn { return &fakeConn{alive: true} }

func (f *fakeConn) TrySend(frame core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return core.ErrBackpressure
	}
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeConn) Alive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func (f *fakeConn) Kill() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive = false
}

// received returns all frames of the given kind, decoded into out's type
// one at a time via the returned raw payloads.
func (f *fakeConn) received(t *testing.T, kind core.Kind) []json.RawMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []json.RawMessage
	for _, frame := range f.frames {
		var env core.Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		if env.Event == kind {
			out = append(out, env.Data)
		}
	}
	return out
}

func (f *fakeConn) countOf(t *testing.T, kind core.Kind) int {
	return len(f.received(t, kind))
}

func decodeOne[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

// fakeStore is an in-memory session store in the style of the durable
// collaborator: sessions, rosters and identities seeded by the test,
// presence writes recorded for assertions.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[domain.SessionID]domain.SessionInfo
	active   map[string]bool
	idents   map[domain.UserID]domain.Identity

	mediaStates map[string]domain.MediaState
	left        map[string]bool
	liveCounts  map[domain.SessionID]int

	failFind bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:    make(map[domain.SessionID]domain.SessionInfo),
		active:      make(map[string]bool),
		idents:      make(map[domain.UserID]domain.Identity),
		mediaStates: make(map[string]domain.MediaState),
		left:        make(map[string]bool),
		liveCounts:  make(map[domain.SessionID]int),
	}
}

func key(sid domain.SessionID, uid domain.UserID) string {
	return string(sid) + "/" + string(uid)
}

func (s *fakeStore) FindSession(_ context.Context, id domain.SessionID) (domain.SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFind {
		return domain.SessionInfo{}, fmt.Errorf("store down")
	}
	info, ok := s.sessions[id]
	if !ok {
		return domain.SessionInfo{}, store.ErrSessionNotFound
	}
	return info, nil
}

func (s *fakeStore) IsActiveParticipant(_ context.Context, sid domain.SessionID, uid domain.UserID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[key(sid, uid)], nil
}

func (s *fakeStore) FetchIdentity(_ context.Context, uid domain.UserID) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.idents[uid]
	if !ok {
		return domain.Identity{}, store.ErrUserNotFound
	}
	return ident, nil
}

func (s *fakeStore) PersistMediaState(_ context.Context, sid domain.SessionID, uid domain.UserID, state domain.MediaState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mediaStates[key(sid, uid)] = state
	return nil
}

func (s *fakeStore) MarkLeft(_ context.Context, sid domain.SessionID, uid domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.left[key(sid, uid)] = true
	return nil
}

func (s *fakeStore) SetLiveCount(_ context.Context, sid domain.SessionID, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveCounts[sid] = count
	return nil
}

func (s *fakeStore) markedLeft(sid domain.SessionID, uid domain.UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.left[key(sid, uid)]
}

func (s *fakeStore) liveCount(sid domain.SessionID) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.liveCounts[sid]
	return n, ok
}

func (s *fakeStore) mediaState(sid domain.SessionID, uid domain.UserID) (domain.MediaState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.mediaStates[key(sid, uid)]
	return st, ok
}

// seedSession registers a live session with its teacher identity.
func (s *fakeStore) seedSession(sid domain.SessionID, teacher domain.UserID, status domain.SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sid] = domain.SessionInfo{ID: sid, TeacherID: teacher, Status: status}
}

func (s *fakeStore) seedParticipant(sid domain.SessionID, uid domain.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[key(sid, uid)] = true
}

func (s *fakeStore) seedIdentity(uid domain.UserID, name, username string, role domain.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idents[uid] = domain.Identity{ID: uid, Name: name, Username: username, Role: role}
}

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeStore) {
	t.Helper()
	st := newFakeStore()
	w := store.NewWriter(64)
	t.Cleanup(w.Close)
	return NewCoordinator(NewRegistry(), st, w), st
}

func boolPtr(b bool) *bool { return &b }
