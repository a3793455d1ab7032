package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recorder is a Broadcaster that keeps everything it is asked to deliver.
type recorder struct {
	mu         sync.Mutex
	members    map[string]map[string]bool
	broadcasts map[string][]any
	sent       map[string][]any
}

func newRecorder() *recorder {
	return &recorder{
		members:    make(map[string]map[string]bool),
		broadcasts: make(map[string][]any),
		sent:       make(map[string][]any),
	}
}

func (r *recorder) Join(roomID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.members[roomID] == nil {
		r.members[roomID] = make(map[string]bool)
	}
	r.members[roomID][connID] = true
}

func (r *recorder) Leave(roomID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.members[roomID], connID)
}

func (r *recorder) Broadcast(roomID string, msg any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.broadcasts[roomID] = append(r.broadcasts[roomID], msg)
}

func (r *recorder) Send(connID string, msg any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent[connID] = append(r.sent[connID], msg)
}

func (r *recorder) room(roomID string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]any(nil), r.broadcasts[roomID]...)
}

func (r *recorder) isMember(roomID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.members[roomID][connID]
}

func ofType[T any](msgs []any) []T {
	var out []T
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			out = append(out, v)
		}
	}

	return out
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.SweepInterval = 0
	opts.CountdownInterval = time.Millisecond
	opts.MatchDuration = 0

	return opts
}

func startEngine(t *testing.T, out Broadcaster, opts Options) *Engine {
	t.Helper()

	e := New(out, opts)
	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)
	t.Cleanup(cancel)

	return e
}

func newTestEngine(t *testing.T) (*Engine, *recorder) {
	t.Helper()

	rec := newRecorder()
	return startEngine(t, rec, testOptions()), rec
}

// waitStatus blocks until roomID reaches status.
func waitStatus(t *testing.T, e *Engine, roomID string, status Status) {
	t.Helper()

	require.Eventually(t, func() bool {
		st, err := e.Room(roomID)
		return err == nil && st.Status == status
	}, time.Second, time.Millisecond)
}

// playingRoom seats host "a" and guest "b", readies both and starts the game.
func playingRoom(t *testing.T, e *Engine) string {
	t.Helper()

	for _, id := range []string{"a", "b"} {
		require.NoError(t, e.Connect(id))
	}

	st, err := e.CreateRoom("a", "Alice", 10)
	require.NoError(t, err)
	_, err = e.JoinRoom("b", st.RoomID, "Bob")
	require.NoError(t, err)

	require.NoError(t, e.ToggleReady("a"))
	require.NoError(t, e.ToggleReady("b"))
	require.NoError(t, e.StartGame("a", st.RoomID))

	waitStatus(t, e, st.RoomID, StatusPlaying)

	return st.RoomID
}

func playerByID(t *testing.T, players []Player, id string) Player {
	t.Helper()

	for _, p := range players {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("player %q not found", id)

	return Player{}
}

func TestEngineStopped(t *testing.T) {
	e := New(newRecorder(), testOptions())
	ctx, cancel := context.WithCancel(context.Background())

	finished := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(finished)
	}()

	require.NoError(t, e.Connect("a"))
	cancel()
	<-finished

	require.ErrorIs(t, e.Connect("b"), ErrStopped)
}

func TestCodeMapsSentinels(t *testing.T) {
	_, err := New(newRecorder(), testOptions()).registry.Find("nope")
	require.Equal(t, "NotFound", Code(err))
	require.Equal(t, "Conflict", Code(ErrConflict))
	require.Equal(t, "GuardFailed", Code(ErrGuardFailed))
	require.Equal(t, "InvalidPayload", Code(ErrInvalidPayload))
	require.Equal(t, "Internal", Code(ErrStopped))
}
