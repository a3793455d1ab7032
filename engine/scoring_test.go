package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyAnswer(t *testing.T) {
	tests := []struct {
		name         string
		start        Player
		correct      bool
		score        int
		climb        int
		reachedMax   bool
		wantScore    int
		wantPosition int
	}{
		{"correct climbs", Player{}, true, 10, 100, false, 10, 100},
		{"correct caps at ceiling", Player{Position: 1950}, true, 10, 100, false, 10, MaxHeight},
		{"correct at ceiling only scores", Player{Position: MaxHeight}, true, 10, 100, false, 10, MaxHeight},
		{"reached max only scores", Player{Position: 300}, true, 10, 100, true, 10, 300},
		{"incorrect clamps score", Player{Score: 2}, false, -3, -50, false, 0, 0},
		{"incorrect falls", Player{Score: 20, Position: 500}, false, -3, -50, false, 17, 450},
		{"incorrect at max keeps position", Player{Position: MaxHeight}, false, -3, -50, true, 0, MaxHeight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.start
			applyAnswer(&p, tt.correct, tt.score, tt.climb, tt.reachedMax)
			assert.Equal(t, tt.wantScore, p.Score)
			assert.Equal(t, tt.wantPosition, p.Position)
		})
	}
}

func TestBonusForRank(t *testing.T) {
	assert.Equal(t, 100, bonusForRank(1))
	assert.Equal(t, 50, bonusForRank(2))
	assert.Equal(t, 25, bonusForRank(3))
	assert.Equal(t, 0, bonusForRank(4))
	assert.Equal(t, 0, bonusForRank(0))
}

func TestSubmitAnswerScenario(t *testing.T) {
	e, rec := newTestEngine(t)
	roomID := playingRoom(t, e)

	require.NoError(t, e.SubmitAnswer("a", true, 10, 100, false))
	require.NoError(t, e.SubmitAnswer("b", false, -3, -50, false))

	updates := ofType[PlayerUpdateMessage](rec.room(roomID))
	require.Len(t, updates, 2)

	a := playerByID(t, updates[1].Players, "a")
	assert.Equal(t, 10, a.Score)
	assert.Equal(t, 100, a.Position)

	b := playerByID(t, updates[1].Players, "b")
	assert.Equal(t, 0, b.Score)
	assert.Equal(t, 0, b.Position)
}

func TestSubmitAnswerRequiresPlaying(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.CreateRoom("a", "Alice", 4)
	require.NoError(t, err)

	assert.ErrorIs(t, e.SubmitAnswer("a", true, 10, 100, false), ErrConflict)
	assert.ErrorIs(t, e.SubmitAnswer("missing", true, 10, 100, false), ErrNotFound)
}

func TestPlayerReachedTopScenario(t *testing.T) {
	e, rec := newTestEngine(t)
	roomID := playingRoom(t, e)

	require.NoError(t, e.SubmitAnswer("a", true, 10, MaxHeight, false))

	msg, err := e.PlayerReachedTop("a", "Alice", true)
	require.NoError(t, err)
	assert.Equal(t, TopReachersUpdateMessage{
		Type:         "topReachersUpdate",
		Reachers:     []string{"a"},
		NewReacher:   "Alice",
		Rank:         1,
		BonusAwarded: true,
	}, msg)

	again, err := e.PlayerReachedTop("a", "Alice", true)
	require.NoError(t, err)
	assert.Zero(t, again)

	updates := ofType[PlayerUpdateMessage](rec.room(roomID))
	last := playerByID(t, updates[len(updates)-1].Players, "a")
	assert.Equal(t, 110, last.Score)
	assert.Len(t, ofType[TopReachersUpdateMessage](rec.room(roomID)), 1)
}

func TestPlayerReachedTopRanks(t *testing.T) {
	e, rec := newTestEngine(t)

	ids := []string{"a", "b", "c", "d"}
	st, err := e.CreateRoom("a", "a", 10)
	require.NoError(t, err)
	for _, id := range ids[1:] {
		_, err = e.JoinRoom(id, st.RoomID, id)
		require.NoError(t, err)
	}
	for _, id := range ids {
		require.NoError(t, e.ToggleReady(id))
	}
	require.NoError(t, e.StartGame("a", st.RoomID))
	waitStatus(t, e, st.RoomID, StatusPlaying)

	for _, id := range ids {
		require.NoError(t, e.SubmitAnswer(id, true, 0, MaxHeight, false))
	}

	want := []struct {
		within bool
		bonus  int
	}{{true, 100}, {false, 0}, {true, 25}, {true, 0}}

	for i, id := range ids {
		msg, err := e.PlayerReachedTop(id, "", want[i].within)
		require.NoError(t, err)
		assert.Equal(t, i+1, msg.Rank)
		assert.Equal(t, id, msg.NewReacher, "name falls back to the seated name")
		assert.Equal(t, want[i].bonus > 0, msg.BonusAwarded)
	}

	updates := ofType[PlayerUpdateMessage](rec.room(st.RoomID))
	final := updates[len(updates)-1].Players
	for i, id := range ids {
		assert.Equal(t, want[i].bonus, playerByID(t, final, id).Score, id)
	}
}

func TestPlayerReachedTopRequiresCeiling(t *testing.T) {
	e, _ := newTestEngine(t)
	playingRoom(t, e)

	_, err := e.PlayerReachedTop("a", "Alice", true)
	assert.ErrorIs(t, err, ErrGuardFailed)
}

func TestAnswerQuestion(t *testing.T) {
	opts := testOptions()
	opts.Rand = func(n int) int { return n - 1 }
	e := startEngine(t, newRecorder(), opts)
	playingRoom(t, e)

	res, err := e.AnswerQuestion("a", 0, Questions[0].Answer)
	require.NoError(t, err)
	assert.Equal(t, AnswerResult{
		Correct:    true,
		ScoreDelta: correctScore,
		ClimbDelta: correctClimb,
		Score:      10,
		Position:   100,
		Next:       Questions[1],
	}, res)

	res, err = e.AnswerQuestion("a", 9, -1)
	require.NoError(t, err)
	assert.False(t, res.Correct)
	assert.Equal(t, -maxPenalty, res.ScoreDelta)
	assert.Equal(t, -maxFall, res.ClimbDelta)
	assert.Equal(t, 5, res.Score)
	assert.Equal(t, 50, res.Position)
	assert.Equal(t, Questions[0], res.Next)

	_, err = e.AnswerQuestion("a", len(Questions), 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAnswerQuestionReachesTopWithinWindow(t *testing.T) {
	clk := newClock()
	opts := testOptions()
	opts.Now = clk.Now
	rec := newRecorder()
	e := startEngine(t, rec, opts)
	roomID := playingRoom(t, e)

	var res AnswerResult
	for i := 0; i < MaxHeight/correctClimb; i++ {
		q := Questions[i%len(Questions)]
		var err error
		res, err = e.AnswerQuestion("a", q.ID, q.Answer)
		require.NoError(t, err)
	}

	assert.Equal(t, MaxHeight, res.Position)
	assert.Equal(t, MaxHeight/correctClimb*correctScore+100, res.Score)

	reached := ofType[TopReachersUpdateMessage](rec.room(roomID))
	require.Len(t, reached, 1)
	assert.True(t, reached[0].BonusAwarded)

	clk.Advance(time.Minute)
	for i := 0; i < MaxHeight/correctClimb; i++ {
		q := Questions[i%len(Questions)]
		res, _ = e.AnswerQuestion("b", q.ID, q.Answer)
	}

	reached = ofType[TopReachersUpdateMessage](rec.room(roomID))
	require.Len(t, reached, 2)
	assert.Equal(t, 2, reached[1].Rank)
	assert.False(t, reached[1].BonusAwarded)
	assert.Equal(t, MaxHeight/correctClimb*correctScore, res.Score)
}

func TestNextQuestionWraps(t *testing.T) {
	assert.Equal(t, Questions[1], NextQuestion(0))
	assert.Equal(t, Questions[0], NextQuestion(len(Questions)-1))
	assert.Equal(t, Questions[0], NextQuestion(-1))
}

func TestMatchTimerEndsScoring(t *testing.T) {
	opts := testOptions()
	opts.MatchDuration = 30 * time.Millisecond
	rec := newRecorder()
	e := startEngine(t, rec, opts)
	roomID := playingRoom(t, e)

	require.Eventually(t, func() bool {
		return len(ofType[GameOverMessage](rec.room(roomID))) == 1
	}, time.Second, time.Millisecond)

	assert.ErrorIs(t, e.SubmitAnswer("a", true, 10, 100, false), ErrConflict)
	_, err := e.AnswerQuestion("a", 0, Questions[0].Answer)
	assert.ErrorIs(t, err, ErrConflict)

	cur, err := e.Room(roomID)
	require.NoError(t, err)
	assert.Equal(t, StatusPlaying, cur.Status)

	require.NoError(t, e.ReturnToLobby("a"))
	waitStatus(t, e, roomID, StatusLobby)
}
