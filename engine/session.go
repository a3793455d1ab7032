package engine

import "time"

// Session tracks transport liveness for one connection.
type Session struct {
	ConnID          string
	Connected       bool
	LastHeartbeatAt time.Time

	// RoomID is the room this connection is seated in, if any.
	RoomID string
}

// SessionTracker is the per-connection liveness store. It is not safe for
// concurrent use; the engine loop serializes all access.
type SessionTracker struct {
	sessions map[string]*Session
}

func NewSessionTracker() *SessionTracker {
	return &SessionTracker{
		sessions: make(map[string]*Session),
	}
}

// Open records a new live connection, or revives an existing record.
func (t *SessionTracker) Open(connID string, now time.Time) *Session {
	s, ok := t.sessions[connID]
	if !ok {
		s = &Session{ConnID: connID}
		t.sessions[connID] = s
	}
	s.Connected = true
	s.LastHeartbeatAt = now

	return s
}

func (t *SessionTracker) Heartbeat(connID string, now time.Time) bool {
	s, ok := t.sessions[connID]
	if !ok {
		return false
	}
	s.LastHeartbeatAt = now

	return true
}

// Close flips the connected flag; the record stays until the sweeper prunes it.
func (t *SessionTracker) Close(connID string) bool {
	s, ok := t.sessions[connID]
	if !ok {
		return false
	}
	s.Connected = false

	return true
}

func (t *SessionTracker) Get(connID string) (*Session, bool) {
	s, ok := t.sessions[connID]
	return s, ok
}

func (t *SessionTracker) Delete(connID string) {
	delete(t.sessions, connID)
}

func (t *SessionTracker) Len() int {
	return len(t.sessions)
}

// SetRoom records the room back-reference for connID, if it has a session.
func (t *SessionTracker) SetRoom(connID, roomID string) {
	if s, ok := t.sessions[connID]; ok {
		s.RoomID = roomID
	}
}

// Live reports whether connID is connected and, when timeout is positive,
// has sent a heartbeat within timeout of now.
func (t *SessionTracker) Live(connID string, now time.Time, timeout time.Duration) bool {
	s, ok := t.sessions[connID]
	if !ok || !s.Connected {
		return false
	}
	if timeout > 0 && now.Sub(s.LastHeartbeatAt) > timeout {
		return false
	}

	return true
}

// Each calls fn for every session. fn may delete the session it is given.
func (t *SessionTracker) Each(fn func(*Session)) {
	for _, s := range t.sessions {
		fn(s)
	}
}
