package engine

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Registry is the in-memory store of rooms, keyed by id. It is not safe for
// concurrent use; the engine loop serializes all access.
type Registry struct {
	games      map[string]*Game
	publicSize int
	newID      func() string
}

func NewRegistry(publicSize int) *Registry {
	return &Registry{
		games:      make(map[string]*Game),
		publicSize: publicSize,
		newID:      newRoomID,
	}
}

// newRoomID returns a short random token: the first eight characters of a
// random UUID.
func newRoomID() string {
	return uuid.NewString()[:8]
}

// uniqueID draws ids until one is not already registered.
func (r *Registry) uniqueID() string {
	for {
		id := r.newID()
		if _, exists := r.games[id]; !exists {
			return id
		}
	}
}

// FindOrCreatePublic returns any public lobby with a free seat, creating a
// new one when none exists.
func (r *Registry) FindOrCreatePublic() *Game {
	for _, g := range r.games {
		if g.Status == StatusLobby && !g.IsPrivate && len(g.Players) < r.publicSize {
			return g
		}
	}

	g := newGame(r.uniqueID(), r.publicSize, false)
	r.games[g.ID] = g

	return g
}

// CreatePrivate registers a private room with the given capacity. Callers
// clamp maxPlayers to a sane range.
func (r *Registry) CreatePrivate(maxPlayers int) *Game {
	g := newGame(r.uniqueID(), maxPlayers, true)
	r.games[g.ID] = g

	return g
}

func (r *Registry) Find(id string) (*Game, error) {
	g, ok := r.games[id]
	if !ok {
		return nil, fmt.Errorf("room %q: %w", id, ErrNotFound)
	}

	return g, nil
}

// FindByPlayerID returns the first room seating connID.
func (r *Registry) FindByPlayerID(connID string) (*Game, *Player, error) {
	for _, g := range r.games {
		if p, _ := g.player(connID); p != nil {
			return g, p, nil
		}
	}

	return nil, nil, fmt.Errorf("player %q: %w", connID, ErrNotFound)
}

// Remove deletes a room and stops its timers.
func (r *Registry) Remove(id string) {
	if g, ok := r.games[id]; ok {
		g.stopTimers()
		delete(r.games, id)
	}
}

func (r *Registry) Len() int {
	return len(r.games)
}

// Games returns every room ordered by id.
func (r *Registry) Games() []*Game {
	out := make([]*Game, 0, len(r.games))
	for _, g := range r.games {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})

	return out
}
