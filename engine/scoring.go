package engine

import "fmt"

// Bonuses for the first players to reach MaxHeight, by arrival rank.
var topBonuses = []int{100, 50, 25}

func bonusForRank(rank int) int {
	if rank < 1 || rank > len(topBonuses) {
		return 0
	}

	return topBonuses[rank-1]
}

// scorable resolves playerID to a room that is currently accepting answers.
func (e *Engine) scorable(playerID string) (*Game, *Player, error) {
	g, p, err := e.registry.FindByPlayerID(playerID)
	if err != nil {
		return nil, nil, err
	}
	if g.Status != StatusPlaying {
		return nil, nil, fmt.Errorf("room %s is not playing: %w", g.ID, ErrConflict)
	}
	if g.finished() {
		return nil, nil, fmt.Errorf("room %s has finished: %w", g.ID, ErrConflict)
	}

	return g, p, nil
}

// applyAnswer moves the player by the given deltas. Score never drops
// below zero and position stays within [0, MaxHeight].
func applyAnswer(p *Player, isCorrect bool, scoreDelta, climbDelta int, reachedMax bool) {
	p.Score = max(0, p.Score+scoreDelta)

	if reachedMax {
		return
	}
	if isCorrect && p.Position >= MaxHeight {
		return
	}
	p.Position = clamp(p.Position+climbDelta, 0, MaxHeight)
}

// SubmitAnswer applies a caller-scored answer. Correctness and deltas are
// taken as given; AnswerQuestion is the server-scored alternative.
func (e *Engine) SubmitAnswer(playerID string, isCorrect bool, scoreDelta, climbDelta int, reachedMax bool) error {
	var err error

	if derr := e.do(func() {
		var (
			g *Game
			p *Player
		)
		g, p, err = e.scorable(playerID)
		if err != nil {
			return
		}

		applyAnswer(p, isCorrect, scoreDelta, climbDelta, reachedMax)
		e.logf("GAMES: Player %q in room %s answered correct=%t score=%d position=%d", p.Name, g.ID, isCorrect, p.Score, p.Position)

		e.out.Broadcast(g.ID, PlayerUpdateMessage{Type: "playerUpdate", Players: g.Snapshot()})
	}); derr != nil {
		return derr
	}

	return err
}

// PlayerReachedTop records playerID as a top reacher. Repeat calls for the
// same player change nothing and return a zero message.
func (e *Engine) PlayerReachedTop(playerID, name string, withinTimeLimit bool) (TopReachersUpdateMessage, error) {
	var (
		msg TopReachersUpdateMessage
		err error
	)

	if derr := e.do(func() {
		var (
			g *Game
			p *Player
		)
		g, p, err = e.scorable(playerID)
		if err != nil {
			return
		}
		if g.hasReached(p.ID) {
			return
		}
		if p.Position < MaxHeight {
			err = fmt.Errorf("player %q is at %d of %d: %w", p.Name, p.Position, MaxHeight, ErrGuardFailed)
			return
		}

		msg = e.reachTop(g, p, name, withinTimeLimit)
	}); derr != nil {
		return msg, derr
	}

	return msg, err
}

func (e *Engine) reachTop(g *Game, p *Player, name string, withinTimeLimit bool) TopReachersUpdateMessage {
	if name == "" {
		name = p.Name
	}

	g.TopReachers = append(g.TopReachers, p.ID)
	rank := len(g.TopReachers)

	bonus := 0
	if withinTimeLimit {
		bonus = bonusForRank(rank)
	}
	p.Score += bonus

	e.logf("GAMES: Player %q reached the top of room %s at rank %d (+%d)", name, g.ID, rank, bonus)

	msg := TopReachersUpdateMessage{
		Type:         "topReachersUpdate",
		Reachers:     append([]string(nil), g.TopReachers...),
		NewReacher:   name,
		Rank:         rank,
		BonusAwarded: bonus > 0,
	}

	e.out.Broadcast(g.ID, PlayerUpdateMessage{Type: "playerUpdate", Players: g.Snapshot()})
	e.out.Broadcast(g.ID, msg)

	return msg
}
