package engine

import "time"

// MaxHeight is the climb ceiling; positions are clamped to [0, MaxHeight].
const MaxHeight = 2000

type Status string

const (
	StatusLobby   Status = "lobby"
	StatusPlaying Status = "playing"
)

// minReady is the fewest ready players a room can start with.
const minReady = 2

type Player struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsHost   bool   `json:"isHost"`
	IsReady  bool   `json:"isReady"`
	Score    int    `json:"score"`
	Position int    `json:"position"`
}

// Game is one room. Players are kept in join order; host fallback
// promotes the first remaining player.
type Game struct {
	ID          string
	Players     []*Player
	Status      Status
	IsPrivate   bool
	MaxPlayers  int
	TopReachers []string
	StartedAt   time.Time
	FinishedAt  time.Time

	countdown  *countdown
	matchTimer *time.Timer
}

// countdown is the cancellable handle for a room's pre-game countdown.
// Ticks compare against the room's current handle, so a stopped or
// replaced handle never advances the room.
type countdown struct {
	timer *time.Timer
	value int
}

func newGame(id string, maxPlayers int, private bool) *Game {
	return &Game{
		ID:         id,
		Status:     StatusLobby,
		IsPrivate:  private,
		MaxPlayers: maxPlayers,
	}
}

func (g *Game) player(id string) (*Player, int) {
	for i, p := range g.Players {
		if p.ID == id {
			return p, i
		}
	}

	return nil, -1
}

func (g *Game) full() bool {
	return len(g.Players) >= g.MaxPlayers
}

func (g *Game) readyCount() int {
	n := 0
	for _, p := range g.Players {
		if p.IsReady {
			n++
		}
	}

	return n
}

// canStart holds when at least two players are ready and nobody is not.
func (g *Game) canStart() bool {
	ready := g.readyCount()
	return ready >= minReady && ready == len(g.Players)
}

func (g *Game) finished() bool {
	return !g.FinishedAt.IsZero()
}

func (g *Game) removePlayer(id string) bool {
	_, i := g.player(id)
	if i < 0 {
		return false
	}
	g.Players = append(g.Players[:i], g.Players[i+1:]...)

	return true
}

// ensureHost promotes the first player when nobody holds the host flag.
// It returns the promoted player, or nil when no change was made.
func (g *Game) ensureHost() *Player {
	if len(g.Players) == 0 {
		return nil
	}
	for _, p := range g.Players {
		if p.IsHost {
			return nil
		}
	}
	g.Players[0].IsHost = true

	return g.Players[0]
}

func (g *Game) hasReached(id string) bool {
	for _, r := range g.TopReachers {
		if r == id {
			return true
		}
	}

	return false
}

// reset returns the room to a fresh lobby, keeping the roster and host.
func (g *Game) reset() {
	g.stopTimers()
	g.Status = StatusLobby
	g.TopReachers = nil
	g.StartedAt = time.Time{}
	g.FinishedAt = time.Time{}
	for _, p := range g.Players {
		p.Score = 0
		p.Position = 0
		p.IsReady = false
	}
}

func (g *Game) stopTimers() {
	if g.countdown != nil {
		g.countdown.timer.Stop()
		g.countdown = nil
	}
	if g.matchTimer != nil {
		g.matchTimer.Stop()
		g.matchTimer = nil
	}
}

// Snapshot returns a deep copy of the roster.
func (g *Game) Snapshot() []Player {
	out := make([]Player, 0, len(g.Players))
	for _, p := range g.Players {
		out = append(out, *p)
	}

	return out
}

func (g *Game) roomState() RoomStateMessage {
	return RoomStateMessage{
		Type:       "roomState",
		RoomID:     g.ID,
		Players:    g.Snapshot(),
		MaxPlayers: g.MaxPlayers,
		Status:     g.Status,
	}
}

func (g *Game) info() RoomInfo {
	return RoomInfo{
		ID:         g.ID,
		Players:    len(g.Players),
		MaxPlayers: g.MaxPlayers,
		Status:     g.Status,
		Private:    g.IsPrivate,
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
