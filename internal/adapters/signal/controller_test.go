package signal

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/kaizenverse/liveclass/internal/app"
	"github.com/kaizenverse/liveclass/internal/domain"
	"github.com/kaizenverse/liveclass/internal/store"
)

const waitFor = 2 * time.Second

type stubStore struct {
	sessions map[domain.SessionID]domain.SessionInfo
}

func (s *stubStore) FindSession(_ context.Context, id domain.SessionID) (domain.SessionInfo, error) {
	info, ok := s.sessions[id]
	if !ok {
		return domain.SessionInfo{}, store.ErrSessionNotFound
	}
	return info, nil
}

func (s *stubStore) IsActiveParticipant(context.Context, domain.SessionID, domain.UserID) (bool, error) {
	return true, nil
}

func (s *stubStore) FetchIdentity(_ context.Context, uid domain.UserID) (domain.Identity, error) {
	return domain.Identity{ID: uid, Name: string(uid)}, nil
}

func (s *stubStore) PersistMediaState(context.Context, domain.SessionID, domain.UserID, domain.MediaState) error {
	return nil
}

func (s *stubStore) MarkLeft(context.Context, domain.SessionID, domain.UserID) error { return nil }

func (s *stubStore) SetLiveCount(context.Context, domain.SessionID, int) error { return nil }

func newSignalServer(t *testing.T) (*httptest.Server, *app.Coordinator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := &stubStore{sessions: map[domain.SessionID]domain.SessionInfo{
		"42": {ID: "42", TeacherID: "1", Status: domain.StatusLive},
		"43": {ID: "43", TeacherID: "9", Status: domain.StatusLive},
	}}
	w := store.NewWriter(16)
	t.Cleanup(w.Close)
	co := app.NewCoordinator(app.NewRegistry(), st, w)
	ctl := NewController(co, 32768, 32, 25*time.Second)

	r := gin.New()
	r.GET("/", func(c *gin.Context) { ctl.Handle(context.Background(), c) })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, co
}

func sendJoin(t *testing.T, conn *websocket.Conn, sid, uid string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{
		"event": "join-session",
		"data":  map[string]any{"sessionId": sid, "userId": uid},
	}))
}

func TestController_JoinBindsConnection(t *testing.T) {
	srv, co := newSignalServer(t)
	conn := dialWS(t, srv)

	sendJoin(t, conn, "42", "2")
	require.Eventually(t, func() bool {
		return len(co.Reg.Roster("42")) == 1
	}, waitFor, 10*time.Millisecond)
}

func TestController_RejoinLeavesPreviousSession(t *testing.T) {
	srv, co := newSignalServer(t)
	conn := dialWS(t, srv)

	sendJoin(t, conn, "42", "2")
	require.Eventually(t, func() bool {
		return len(co.Reg.Roster("42")) == 1
	}, waitFor, 10*time.Millisecond)

	// Joining another session on the same socket must not leave a ghost
	// behind in the first one.
	sendJoin(t, conn, "43", "2")
	require.Eventually(t, func() bool {
		return len(co.Reg.Roster("42")) == 0 && len(co.Reg.Roster("43")) == 1
	}, waitFor, 10*time.Millisecond)
}

func TestController_LeaveThenRejoinOnSameSocket(t *testing.T) {
	srv, co := newSignalServer(t)
	conn := dialWS(t, srv)

	sendJoin(t, conn, "42", "2")
	require.Eventually(t, func() bool {
		return len(co.Reg.Roster("42")) == 1
	}, waitFor, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]any{"event": "leave-session"}))
	require.Eventually(t, func() bool {
		return len(co.Reg.Roster("42")) == 0
	}, waitFor, 10*time.Millisecond)

	sendJoin(t, conn, "42", "2")
	require.Eventually(t, func() bool {
		return len(co.Reg.Roster("42")) == 1
	}, waitFor, 10*time.Millisecond)
}
