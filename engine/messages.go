package engine

import "time"

// Messages broadcast to every connection in a room.

type RoomStateMessage struct {
	Type       string   `json:"type"` // "roomState"
	RoomID     string   `json:"roomId"`
	Players    []Player `json:"players"`
	MaxPlayers int      `json:"maxPlayers"`
	Status     Status   `json:"status"`
}

type CountdownTickMessage struct {
	Type  string `json:"type"` // "countdownTick"
	Value int    `json:"value"`
}

type GameStartedMessage struct {
	Type      string    `json:"type"` // "gameStarted"
	StartedAt time.Time `json:"startedAt"`
}

type PlayerUpdateMessage struct {
	Type    string   `json:"type"` // "playerUpdate"
	Players []Player `json:"players"`
}

type TopReachersUpdateMessage struct {
	Type         string   `json:"type"` // "topReachersUpdate"
	Reachers     []string `json:"reachers"`
	NewReacher   string   `json:"newReacher"`
	Rank         int      `json:"rank"`
	BonusAwarded bool     `json:"bonusAwarded"`
}

type GameOverMessage struct {
	Type    string   `json:"type"` // "gameOver"
	Players []Player `json:"players"`
}

// RoomInfo is the public listing entry for a room.
type RoomInfo struct {
	ID         string `json:"id"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"maxPlayers"`
	Status     Status `json:"status"`
	Private    bool   `json:"private"`
}

// CheckResult is the joinability verdict returned by CheckRoom.
type CheckResult struct {
	Exists   bool   `json:"exists"`
	Joinable bool   `json:"joinable"`
	Message  string `json:"message,omitempty"`
}
