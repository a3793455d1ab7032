package engine

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxChatLength caps a relayed chat line, in runes.
const MaxChatLength = 280

type ChatMessage struct {
	Type   string `json:"type"` // "message"
	RoomID string `json:"roomId"`
	FromID string `json:"fromId"`
	From   string `json:"from"`
	Text   string `json:"text"`
}

// Chat relays text from connID to every member of the room seating it.
func (e *Engine) Chat(connID, text string) (ChatMessage, error) {
	var (
		msg ChatMessage
		err error
	)

	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return msg, fmt.Errorf("empty chat message: %w", ErrInvalidPayload)
	case utf8.RuneCountInString(text) > MaxChatLength:
		return msg, fmt.Errorf("chat message longer than %d characters: %w", MaxChatLength, ErrInvalidPayload)
	}

	if derr := e.do(func() {
		var (
			g *Game
			p *Player
		)
		g, p, err = e.registry.FindByPlayerID(connID)
		if err != nil {
			return
		}

		e.touch(connID)

		msg = ChatMessage{
			Type:   "message",
			RoomID: g.ID,
			FromID: p.ID,
			From:   p.Name,
			Text:   text,
		}
		e.out.Broadcast(g.ID, msg)
	}); derr != nil {
		return msg, derr
	}

	return msg, err
}
