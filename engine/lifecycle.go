package engine

import (
	"fmt"
	"time"
)

const (
	defaultPrivateRoomSize = 30
	countdownFrom          = 3
)

// CheckRoom reports whether roomID exists and can be joined.
func (e *Engine) CheckRoom(roomID string) (CheckResult, error) {
	var res CheckResult

	err := e.do(func() {
		g, err := e.registry.Find(roomID)
		switch {
		case err != nil:
			res = CheckResult{Message: "Game not found"}
		case g.Status != StatusLobby:
			res = CheckResult{Exists: true, Message: "Game is already in progress"}
		case g.full():
			res = CheckResult{Exists: true, Message: fmt.Sprintf("Game is full (%d/%d)", len(g.Players), g.MaxPlayers)}
		default:
			res = CheckResult{Exists: true, Joinable: true}
		}
	})

	return res, err
}

// CreateRoom opens a private room and seats connID as its host. A zero
// maxPlayers selects the default size; other values are clamped to
// [2, MaxRoomSize].
func (e *Engine) CreateRoom(connID, name string, maxPlayers int) (RoomStateMessage, error) {
	var msg RoomStateMessage

	err := e.do(func() {
		if maxPlayers == 0 {
			maxPlayers = defaultPrivateRoomSize
		}
		maxPlayers = clamp(maxPlayers, minReady, e.opts.MaxRoomSize)

		e.vacate(connID)

		g := e.registry.CreatePrivate(maxPlayers)
		e.seat(g, connID, name, true)
		e.logf("ROOMS: Player %q (%s) created private room %s for %d players", name, connID, g.ID, maxPlayers)

		msg = g.roomState()
	})

	return msg, err
}

// JoinRoom seats connID in roomID. A connection already seated there is
// resynced with the current state instead of being added twice.
func (e *Engine) JoinRoom(connID, roomID, name string) (RoomStateMessage, error) {
	var (
		msg RoomStateMessage
		err error
	)

	if derr := e.do(func() {
		var g *Game
		g, err = e.registry.Find(roomID)
		if err != nil {
			return
		}

		if p, _ := g.player(connID); p != nil {
			msg = e.resync(g, connID)
			return
		}

		if err = joinable(g); err != nil {
			return
		}

		e.vacate(connID)
		e.seat(g, connID, name, false)
		e.logf("ROOMS: Player %q (%s) joined room %s", name, connID, g.ID)

		msg = g.roomState()
	}); derr != nil {
		return msg, derr
	}

	return msg, err
}

// JoinLobby seats connID in any open public room, creating one if needed.
// The first player in a new room becomes its host.
func (e *Engine) JoinLobby(connID, name string) (RoomStateMessage, error) {
	var msg RoomStateMessage

	err := e.do(func() {
		if g, _, err := e.registry.FindByPlayerID(connID); err == nil && !g.IsPrivate && g.Status == StatusLobby {
			msg = e.resync(g, connID)
			return
		}

		e.vacate(connID)

		g := e.registry.FindOrCreatePublic()
		e.seat(g, connID, name, len(g.Players) == 0)
		e.logf("ROOMS: Player %q (%s) joined room %s (quick play)", name, connID, g.ID)

		msg = g.roomState()
	})

	return msg, err
}

func joinable(g *Game) error {
	if g.Status != StatusLobby {
		return fmt.Errorf("room %s is already in progress: %w", g.ID, ErrConflict)
	}
	if g.full() {
		return fmt.Errorf("room %s is full (%d/%d): %w", g.ID, len(g.Players), g.MaxPlayers, ErrConflict)
	}

	return nil
}

func (e *Engine) seat(g *Game, connID, name string, host bool) {
	g.Players = append(g.Players, &Player{
		ID:     connID,
		Name:   name,
		IsHost: host,
	})
	g.ensureHost()

	e.touch(connID)
	e.sessions.SetRoom(connID, g.ID)
	e.out.Join(g.ID, connID)
	e.broadcastRoom(g)
}

func (e *Engine) resync(g *Game, connID string) RoomStateMessage {
	e.touch(connID)
	e.out.Join(g.ID, connID)

	msg := g.roomState()
	e.out.Send(connID, msg)

	return msg
}

// vacate removes connID from whatever room currently seats it.
func (e *Engine) vacate(connID string) {
	if g, _, err := e.registry.FindByPlayerID(connID); err == nil {
		e.leave(g, connID)
	}
}

// LeaveRoom removes connID from roomID. An emptied room is deleted;
// otherwise the first remaining player inherits the host flag.
func (e *Engine) LeaveRoom(connID, roomID string) error {
	var err error

	if derr := e.do(func() {
		var g *Game
		g, err = e.registry.Find(roomID)
		if err != nil {
			return
		}
		if p, _ := g.player(connID); p == nil {
			err = fmt.Errorf("player %q in room %s: %w", connID, roomID, ErrNotFound)
			return
		}

		e.leave(g, connID)
	}); derr != nil {
		return derr
	}

	return err
}

func (e *Engine) leave(g *Game, connID string) {
	p, _ := g.player(connID)
	if p == nil {
		return
	}

	g.removePlayer(connID)
	e.sessions.SetRoom(connID, "")
	e.out.Leave(g.ID, connID)
	e.logf("ROOMS: Player %q (%s) left room %s", p.Name, connID, g.ID)

	if len(g.Players) == 0 {
		e.registry.Remove(g.ID)
		e.logf("ROOMS: Removed empty room %s", g.ID)
		return
	}

	if h := g.ensureHost(); h != nil {
		e.logf("ROOMS: New host assigned in room %s: %q", g.ID, h.Name)
	}

	e.broadcastRoom(g)
}

// ToggleReady flips playerID's ready flag.
func (e *Engine) ToggleReady(playerID string) error {
	var err error

	if derr := e.do(func() {
		var (
			g *Game
			p *Player
		)
		g, p, err = e.registry.FindByPlayerID(playerID)
		if err != nil {
			return
		}

		p.IsReady = !p.IsReady
		e.logf("GAMES: Player %q (%s) in room %s ready=%t", p.Name, p.ID, g.ID, p.IsReady)

		e.broadcastRoom(g)
	}); derr != nil {
		return derr
	}

	return err
}

// StartGame begins the countdown for roomID. Only the host may start, at
// least two players must be ready, and every player must be ready.
func (e *Engine) StartGame(connID, roomID string) error {
	var err error

	if derr := e.do(func() {
		var g *Game
		g, err = e.registry.Find(roomID)
		if err != nil {
			return
		}

		switch p, _ := g.player(connID); {
		case g.Status != StatusLobby:
			err = fmt.Errorf("room %s is already in progress: %w", roomID, ErrConflict)
		case g.countdown != nil:
			err = fmt.Errorf("room %s is already counting down: %w", roomID, ErrConflict)
		case p == nil || !p.IsHost:
			err = fmt.Errorf("only the host may start room %s: %w", roomID, ErrGuardFailed)
		case !g.canStart():
			err = fmt.Errorf("room %s has %d/%d players ready: %w", roomID, g.readyCount(), len(g.Players), ErrGuardFailed)
		}
		if err != nil {
			return
		}

		e.startCountdown(g)
		e.logf("GAMES: Starting room %s with %d players", g.ID, len(g.Players))
	}); derr != nil {
		return derr
	}

	return err
}

func (e *Engine) startCountdown(g *Game) {
	id := g.ID
	cd := &countdown{value: countdownFrom}
	cd.timer = time.AfterFunc(e.opts.CountdownInterval, func() {
		e.post(func() { e.countdownTick(id, cd) })
	})
	g.countdown = cd
}

// countdownTick re-validates the room on every tick and silently drops the
// countdown when the room is gone, was reset, or is no longer startable.
func (e *Engine) countdownTick(roomID string, cd *countdown) {
	g, err := e.registry.Find(roomID)
	if err != nil || g.countdown != cd {
		return
	}
	if g.Status != StatusLobby || !g.canStart() {
		g.countdown = nil
		e.logf("GAMES: Countdown aborted in room %s", roomID)
		return
	}

	e.out.Broadcast(roomID, CountdownTickMessage{Type: "countdownTick", Value: cd.value})

	if cd.value > 0 {
		cd.value--
		cd.timer.Reset(e.opts.CountdownInterval)
		return
	}

	g.countdown = nil
	e.beginPlay(g)
}

func (e *Engine) beginPlay(g *Game) {
	g.Status = StatusPlaying
	g.StartedAt = e.now()
	g.FinishedAt = time.Time{}

	e.out.Broadcast(g.ID, GameStartedMessage{Type: "gameStarted", StartedAt: g.StartedAt})
	e.logf("GAMES: Room %s is playing", g.ID)

	if e.opts.MatchDuration <= 0 {
		return
	}

	id := g.ID
	var t *time.Timer
	t = time.AfterFunc(e.opts.MatchDuration, func() {
		e.post(func() { e.endMatch(id, t) })
	})
	g.matchTimer = t
}

// endMatch closes scoring for the room once the match timer fires. The room
// stays in play until someone returns it to the lobby.
func (e *Engine) endMatch(roomID string, t *time.Timer) {
	g, err := e.registry.Find(roomID)
	if err != nil || g.matchTimer != t {
		return
	}

	g.matchTimer = nil
	g.FinishedAt = e.now()

	e.out.Broadcast(g.ID, GameOverMessage{Type: "gameOver", Players: g.Snapshot()})
	e.logf("GAMES: Room %s finished", g.ID)
}

// ReturnToLobby resets the room seating connID back to a fresh lobby.
func (e *Engine) ReturnToLobby(connID string) error {
	var err error

	if derr := e.do(func() {
		var g *Game
		g, _, err = e.registry.FindByPlayerID(connID)
		if err != nil {
			return
		}

		g.reset()
		e.logf("GAMES: Room %s returned to lobby", g.ID)

		e.broadcastRoom(g)
	}); derr != nil {
		return derr
	}

	return err
}
