package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepEvictsDisconnectedPlayers(t *testing.T) {
	e, rec := newTestEngine(t)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, e.Connect(id))
	}
	st, err := e.CreateRoom("a", "Alice", 4)
	require.NoError(t, err)
	_, err = e.JoinRoom("b", st.RoomID, "Bob")
	require.NoError(t, err)

	require.NoError(t, e.Disconnect("a"))
	require.NoError(t, e.Disconnect("c"))

	cur, err := e.Room(st.RoomID)
	require.NoError(t, err)
	assert.Len(t, cur.Players, 2, "disconnect alone keeps the seat")

	report, err := e.Sweep()
	require.NoError(t, err)
	assert.Equal(t, SweepReport{PlayersRemoved: 1, SessionsPruned: 2}, report)

	cur, err = e.Room(st.RoomID)
	require.NoError(t, err)
	require.Len(t, cur.Players, 1)
	assert.Equal(t, "b", cur.Players[0].ID)
	assert.True(t, cur.Players[0].IsHost)
	assert.False(t, rec.isMember(st.RoomID, "a"))

	states := ofType[RoomStateMessage](rec.room(st.RoomID))
	assert.Len(t, states[len(states)-1].Players, 1)

	require.NoError(t, e.Disconnect("b"))
	report, err = e.Sweep()
	require.NoError(t, err)
	assert.Equal(t, SweepReport{PlayersRemoved: 1, RoomsRemoved: 1, SessionsPruned: 1}, report)

	rooms, err := e.Rooms()
	require.NoError(t, err)
	assert.Empty(t, rooms)
	assert.ErrorIs(t, e.Heartbeat("b"), ErrNotFound)
}

func TestSweepLeavesLiveRoomsAlone(t *testing.T) {
	e, rec := newTestEngine(t)

	require.NoError(t, e.Connect("a"))
	st, err := e.CreateRoom("a", "Alice", 4)
	require.NoError(t, err)
	before := len(rec.room(st.RoomID))

	report, err := e.Sweep()
	require.NoError(t, err)
	assert.Zero(t, report)
	assert.Len(t, rec.room(st.RoomID), before)
}

func TestSweepHeartbeatTimeout(t *testing.T) {
	clk := newClock()
	opts := testOptions()
	opts.Now = clk.Now
	opts.HeartbeatTimeout = time.Minute
	e := startEngine(t, newRecorder(), opts)

	require.NoError(t, e.Connect("a"))
	require.NoError(t, e.Connect("b"))
	st, err := e.CreateRoom("a", "Alice", 4)
	require.NoError(t, err)
	_, err = e.JoinRoom("b", st.RoomID, "Bob")
	require.NoError(t, err)

	clk.Advance(45 * time.Second)
	require.NoError(t, e.Heartbeat("b"))
	clk.Advance(45 * time.Second)

	report, err := e.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, report.PlayersRemoved)

	cur, err := e.Room(st.RoomID)
	require.NoError(t, err)
	require.Len(t, cur.Players, 1)
	assert.Equal(t, "b", cur.Players[0].ID)
	assert.True(t, cur.Players[0].IsHost)
}

func TestSweepCancelsCountdown(t *testing.T) {
	opts := testOptions()
	opts.CountdownInterval = 20 * time.Millisecond
	rec := newRecorder()
	e := startEngine(t, rec, opts)

	require.NoError(t, e.Connect("a"))
	require.NoError(t, e.Connect("b"))
	st, err := e.CreateRoom("a", "Alice", 4)
	require.NoError(t, err)
	_, err = e.JoinRoom("b", st.RoomID, "Bob")
	require.NoError(t, err)
	require.NoError(t, e.ToggleReady("a"))
	require.NoError(t, e.ToggleReady("b"))
	require.NoError(t, e.StartGame("a", st.RoomID))

	require.NoError(t, e.Disconnect("a"))
	require.NoError(t, e.Disconnect("b"))
	_, err = e.Sweep()
	require.NoError(t, err)

	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, ofType[CountdownTickMessage](rec.room(st.RoomID)))
}

func TestRunSweepsOnInterval(t *testing.T) {
	opts := testOptions()
	opts.SweepInterval = 5 * time.Millisecond
	e := startEngine(t, newRecorder(), opts)

	require.NoError(t, e.Connect("a"))
	_, err := e.CreateRoom("a", "Alice", 4)
	require.NoError(t, err)
	require.NoError(t, e.Disconnect("a"))

	require.Eventually(t, func() bool {
		rooms, err := e.Rooms()
		return err == nil && len(rooms) == 0
	}, time.Second, time.Millisecond)
}
