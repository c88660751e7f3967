package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kaizenverse/liveclass/internal/core"
)

func TestReaper_RemovesOldDeadConnections(t *testing.T) {
	co, st := newTestCoordinator(t)
	seedClassroom(st)

	tc, sc := newFakeConn(), newFakeConn()
	join(t, co, tc, "42", "1")
	student := join(t, co, sc, "42", "2")

	// Transport died without the disconnect path noticing.
	sc.Kill()
	student.JoinedAt = time.Now().Add(-10 * time.Minute)

	reaper := NewReaper(co, time.Minute, 5*time.Minute)
	reaper.Sweep()

	require.Len(t, co.Reg.Roster("42"), 1)
	// Reaped connections go through the normal cleanup: remaining members
	// hear about it and the store is updated.
	require.Equal(t, 1, tc.countOf(t, core.KindParticipantLeft))
	require.Eventually(t, func() bool {
		n, ok := st.liveCount("42")
		return st.markedLeft("42", "2") && ok && n == 1
	}, waitFor, 10*time.Millisecond)
}

func TestReaper_SparesLiveConnections(t *testing.T) {
	co, st := newTestCoordinator(t)
	seedClassroom(st)

	sc := newFakeConn()
	student := join(t, co, sc, "42", "2")
	student.JoinedAt = time.Now().Add(-10 * time.Minute)

	NewReaper(co, time.Minute, 5*time.Minute).Sweep()

	require.Len(t, co.Reg.Roster("42"), 1, "old but connected peers stay")
}

func TestReaper_SparesYoungConnections(t *testing.T) {
	co, st := newTestCoordinator(t)
	seedClassroom(st)

	sc := newFakeConn()
	join(t, co, sc, "42", "2")
	sc.Kill()

	NewReaper(co, time.Minute, 5*time.Minute).Sweep()

	require.Len(t, co.Reg.Roster("42"), 1, "dead transports get the timeout before reaping")
}
