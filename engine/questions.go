package engine

import "fmt"

// Question is one arithmetic prompt. Answers never leave the server.
type Question struct {
	ID     int    `json:"id"`
	Prompt string `json:"prompt"`
	Answer int    `json:"-"`
}

var Questions = []Question{
	{ID: 0, Prompt: "5 + 7", Answer: 12},
	{ID: 1, Prompt: "8 - 3", Answer: 5},
	{ID: 2, Prompt: "4 × 6", Answer: 24},
	{ID: 3, Prompt: "20 ÷ 4", Answer: 5},
	{ID: 4, Prompt: "9 + 8", Answer: 17},
	{ID: 5, Prompt: "15 - 7", Answer: 8},
	{ID: 6, Prompt: "3 × 9", Answer: 27},
	{ID: 7, Prompt: "32 ÷ 8", Answer: 4},
	{ID: 8, Prompt: "11 + 12", Answer: 23},
	{ID: 9, Prompt: "18 - 9", Answer: 9},
}

// Per-answer effects of server-scored answers.
const (
	correctScore = 10
	correctClimb = 100
	maxPenalty   = 5
	maxFall      = 50
)

// NextQuestion returns the question following id, wrapping around the bank.
func NextQuestion(id int) Question {
	n := len(Questions)
	return Questions[((id+1)%n+n)%n]
}

func questionByID(id int) (Question, error) {
	if id < 0 || id >= len(Questions) {
		return Question{}, fmt.Errorf("question %d: %w", id, ErrNotFound)
	}

	return Questions[id], nil
}

type AnswerResult struct {
	Correct    bool     `json:"correct"`
	ScoreDelta int      `json:"scoreDelta"`
	ClimbDelta int      `json:"climbDelta"`
	Score      int      `json:"score"`
	Position   int      `json:"position"`
	Next       Question `json:"next"`
}

// AnswerQuestion scores a raw answer against the question bank. Correct
// answers earn fixed points and climb; wrong ones cost a random penalty and
// fall. Reaching MaxHeight records the player as a top reacher, with the
// bonus granted when the climb took no longer than BonusWindow.
func (e *Engine) AnswerQuestion(connID string, questionID, answer int) (AnswerResult, error) {
	var (
		res AnswerResult
		err error
	)

	if derr := e.do(func() {
		var (
			g *Game
			p *Player
			q Question
		)
		if q, err = questionByID(questionID); err != nil {
			return
		}
		if g, p, err = e.scorable(connID); err != nil {
			return
		}

		res.Correct = q.Answer == answer
		if res.Correct {
			res.ScoreDelta, res.ClimbDelta = correctScore, correctClimb
		} else {
			res.ScoreDelta = -(e.opts.Rand(maxPenalty) + 1)
			res.ClimbDelta = -(e.opts.Rand(maxFall) + 1)
		}

		applyAnswer(p, res.Correct, res.ScoreDelta, res.ClimbDelta, false)
		e.out.Broadcast(g.ID, PlayerUpdateMessage{Type: "playerUpdate", Players: g.Snapshot()})

		if p.Position >= MaxHeight && !g.hasReached(p.ID) {
			within := e.now().Sub(g.StartedAt) <= e.opts.BonusWindow
			e.reachTop(g, p, p.Name, within)
		}

		res.Score, res.Position = p.Score, p.Position
		res.Next = NextQuestion(q.ID)
	}); derr != nil {
		return res, derr
	}

	return res, err
}
