// Climb multiplayer gateway
//
// Players race up a vine by answering arithmetic questions. This file is the
// websocket boundary: it decodes client intents, validates their payloads,
// hands them to the engine, and delivers the engine's room broadcasts and
// per-request responses back to connections.
//
// Features:
// - One websocket per connection at $path/ws; the connection id is a random UUID
// - Rooms are broadcast channels; engine snapshots fan out to every member
// - Malformed or incomplete intents are answered with an InvalidPayload error
// - Websocket pongs and "heartbeat" intents keep the connection's session live
// - Chat lines are relayed to every member of the sender's room
// - Room listing at $path/rooms and a QR code for each room's join link
// - The join link, $path?room=<id>, serves a page describing the room

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/climb/engine"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// Messages coming from clients
type ClientMessage struct {
	Type            string `json:"type"`
	RoomID          string `json:"roomId,omitempty"`          // checkRoom, joinSpecificRoom, leaveRoom, startGame
	Name            string `json:"name,omitempty"`            // createRoom, joinSpecificRoom, joinLobby
	MaxPlayers      *int   `json:"maxPlayers,omitempty"`      // createRoom
	PlayerID        string `json:"playerId,omitempty"`        // toggleReady, submitAnswer, playerReachedTop
	PlayerName      string `json:"playerName,omitempty"`      // playerReachedTop
	IsCorrect       *bool  `json:"isCorrect,omitempty"`       // submitAnswer
	Score           *int   `json:"score,omitempty"`           // submitAnswer
	ClimbAmount     *int   `json:"climbAmount,omitempty"`     // submitAnswer
	ReachedMax      bool   `json:"reachedMax,omitempty"`      // submitAnswer
	WithinTimeLimit bool   `json:"withinTimeLimit,omitempty"` // playerReachedTop
	QuestionID      *int   `json:"questionId,omitempty"`      // answerQuestion
	Answer          *int   `json:"answer,omitempty"`          // answerQuestion
	Message         string `json:"message,omitempty"`         // message
}

// SessionMessage is sent immediately on connect so the client knows its
// connection id and the first question.
type SessionMessage struct {
	Type         string          `json:"type"` // "session"
	ConnectionID string          `json:"connectionId"`
	Question     engine.Question `json:"question"`
}

type CheckRoomResponse struct {
	Type string `json:"type"` // "checkRoomResponse"
	engine.CheckResult
}

type CreateRoomResponse struct {
	Type    string `json:"type"` // "createRoomResponse"
	Success bool   `json:"success"`
	RoomID  string `json:"roomId,omitempty"`
	Message string `json:"message,omitempty"`
}

type JoinRoomResponse struct {
	Type    string `json:"type"` // "joinRoomResponse"
	Success bool   `json:"success"`
	RoomID  string `json:"roomId,omitempty"`
	Message string `json:"message,omitempty"`
}

type AnswerResultMessage struct {
	Type string `json:"type"` // "answerResult"
	engine.AnswerResult
}

// ErrorMessage is sent only to the connection whose intent failed.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Client struct {
	conn   *websocket.Conn
	send   chan any
	connID string
}

// Hub tracks live websocket clients and which rooms they listen to. It is
// the engine's Broadcaster.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*Client
	rooms   map[string]map[string]bool
}

func newHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]bool),
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.connID] = c
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(c.connID)
}

func (h *Hub) removeLocked(connID string) {
	c, ok := h.clients[connID]
	if !ok {
		return
	}

	delete(h.clients, connID)
	close(c.send)

	for roomID, members := range h.rooms {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// deliverLocked queues msg for connID, dropping the client if its buffer is full.
func (h *Hub) deliverLocked(connID string, msg any) {
	c, ok := h.clients[connID]
	if !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		h.removeLocked(connID)
	}
}

func (h *Hub) Join(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]bool)
	}
	h.rooms[roomID][connID] = true
}

func (h *Hub) Leave(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

func (h *Hub) Broadcast(roomID string, msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for connID := range h.rooms[roomID] {
		h.deliverLocked(connID, msg)
	}
}

func (h *Hub) Send(connID string, msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.deliverLocked(connID, msg)
}

// Gateway routes client intents into the engine.
type Gateway struct {
	cfg    *Config
	engine *engine.Engine
	hub    *Hub
}

func newGateway(cfg *Config, hub *Hub, eng *engine.Engine) *Gateway {
	return &Gateway{
		cfg:    cfg,
		engine: eng,
		hub:    hub,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, engine.ErrInvalidPayload)...)
}

// self resolves the player id an intent acts for. Connections may only act
// for themselves.
func self(c *Client, playerID string) (string, error) {
	if playerID == "" || playerID == c.connID {
		return c.connID, nil
	}

	return "", fmt.Errorf("connection %s cannot act for player %s: %w", c.connID, playerID, engine.ErrGuardFailed)
}

// dispatch runs one intent. Per-request responses go to c only; room
// updates are broadcast by the engine.
func (gw *Gateway) dispatch(c *Client, msg ClientMessage) error {
	msg.RoomID = strings.TrimSpace(msg.RoomID)
	msg.Name = strings.TrimSpace(msg.Name)

	switch msg.Type {
	case "checkRoom":
		if msg.RoomID == "" {
			return invalid("checkRoom requires roomId")
		}
		res, err := gw.engine.CheckRoom(msg.RoomID)
		if err != nil {
			return err
		}
		gw.hub.Send(c.connID, CheckRoomResponse{Type: "checkRoomResponse", CheckResult: res})

	case "createRoom":
		if msg.Name == "" {
			return invalid("createRoom requires name")
		}
		maxPlayers := 0
		if msg.MaxPlayers != nil {
			maxPlayers = *msg.MaxPlayers
		}
		st, err := gw.engine.CreateRoom(c.connID, msg.Name, maxPlayers)
		if err != nil {
			gw.hub.Send(c.connID, CreateRoomResponse{Type: "createRoomResponse", Message: err.Error()})
			return err
		}
		gw.hub.Send(c.connID, CreateRoomResponse{Type: "createRoomResponse", Success: true, RoomID: st.RoomID})

	case "joinSpecificRoom":
		if msg.RoomID == "" || msg.Name == "" {
			return invalid("joinSpecificRoom requires roomId and name")
		}
		st, err := gw.engine.JoinRoom(c.connID, msg.RoomID, msg.Name)
		if err != nil {
			gw.hub.Send(c.connID, JoinRoomResponse{Type: "joinRoomResponse", RoomID: msg.RoomID, Message: err.Error()})
			return err
		}
		gw.hub.Send(c.connID, JoinRoomResponse{Type: "joinRoomResponse", Success: true, RoomID: st.RoomID})

	case "joinLobby":
		if msg.Name == "" {
			return invalid("joinLobby requires name")
		}
		_, err := gw.engine.JoinLobby(c.connID, msg.Name)
		return err

	case "leaveRoom":
		if msg.RoomID == "" {
			return invalid("leaveRoom requires roomId")
		}
		return gw.engine.LeaveRoom(c.connID, msg.RoomID)

	case "toggleReady":
		id, err := self(c, msg.PlayerID)
		if err != nil {
			return err
		}
		return gw.engine.ToggleReady(id)

	case "startGame":
		if msg.RoomID == "" {
			return invalid("startGame requires roomId")
		}
		return gw.engine.StartGame(c.connID, msg.RoomID)

	case "submitAnswer":
		if msg.IsCorrect == nil || msg.Score == nil || msg.ClimbAmount == nil {
			return invalid("submitAnswer requires isCorrect, score and climbAmount")
		}
		id, err := self(c, msg.PlayerID)
		if err != nil {
			return err
		}
		return gw.engine.SubmitAnswer(id, *msg.IsCorrect, *msg.Score, *msg.ClimbAmount, msg.ReachedMax)

	case "answerQuestion":
		if msg.QuestionID == nil || msg.Answer == nil {
			return invalid("answerQuestion requires questionId and answer")
		}
		res, err := gw.engine.AnswerQuestion(c.connID, *msg.QuestionID, *msg.Answer)
		if err != nil {
			return err
		}
		gw.hub.Send(c.connID, AnswerResultMessage{Type: "answerResult", AnswerResult: res})

	case "playerReachedTop":
		id, err := self(c, msg.PlayerID)
		if err != nil {
			return err
		}
		_, err = gw.engine.PlayerReachedTop(id, strings.TrimSpace(msg.PlayerName), msg.WithinTimeLimit)
		return err

	case "returnToLobby":
		return gw.engine.ReturnToLobby(c.connID)

	case "message":
		_, err := gw.engine.Chat(c.connID, msg.Message)
		return err

	case "heartbeat":
		// A live connection whose session was swept gets a fresh one.
		if err := gw.engine.Heartbeat(c.connID); !errors.Is(err, engine.ErrNotFound) {
			return err
		}
		return gw.engine.Connect(c.connID)

	default:
		return invalid("unknown message type %q", msg.Type)
	}

	return nil
}

func (gw *Gateway) reportError(c *Client, msgType string, err error) {
	if errors.Is(err, engine.ErrStopped) {
		return
	}

	logf(gw.cfg, "GAMES: %s from %s failed: %v", msgType, c.connID, err)

	gw.hub.Send(c.connID, ErrorMessage{
		Type:    "error",
		Code:    engine.Code(err),
		Message: err.Error(),
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWS(gw *Gateway) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:   conn,
			send:   make(chan any, sendBuffer),
			connID: uuid.NewString(),
		}

		if err := gw.engine.Connect(client.connID); err != nil {
			_ = conn.Close()
			return
		}
		gw.hub.add(client)

		logf(gw.cfg, "CONNS: %s connected from %s", client.connID, realIP(r))

		gw.hub.Send(client.connID, SessionMessage{
			Type:         "session",
			ConnectionID: client.connID,
			Question:     engine.Questions[0],
		})

		go client.writePump()
		client.readPump(gw)
	}
}

func (c *Client) readPump(gw *Gateway) {
	defer func() {
		gw.hub.remove(c)
		_ = gw.engine.Disconnect(c.connID)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = gw.engine.Heartbeat(c.connID)
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			gw.reportError(c, "message", invalid("malformed message"))
			continue
		}

		if err := gw.dispatch(c, msg); err != nil {
			gw.reportError(c, msg.Type, err)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func serveRooms(gw *Gateway, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		rooms, err := gw.engine.Rooms()
		if err != nil {
			http.Error(w, "rooms unavailable", http.StatusServiceUnavailable)
			return
		}

		data, err := json.Marshal(rooms)
		if err != nil {
			errs <- err
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(gw.cfg, w)

		written, err := w.Write(data)
		if err != nil {
			errs <- err
			return
		}

		logf(gw.cfg, "SERVE: Room list (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveRoom(gw *Gateway) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		st, err := gw.engine.Room(ps.ByName("roomid"))
		if errors.Is(err, engine.ErrNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "room unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(gw.cfg, w)

		_ = json.NewEncoder(w).Encode(st)
	}
}

// joinURL is the link a QR code for roomID points at.
func joinURL(r *http.Request, cfg *Config, path, roomID string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return scheme + "://" + r.Host + cfg.prefix + path + "?room=" + roomID
}

// serveQR renders a PNG QR code for a room's join link using go-qrcode.
func serveQR(gw *Gateway, path string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := ps.ByName("roomid")

		res, err := gw.engine.CheckRoom(roomID)
		if err != nil || !res.Exists {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		const qrSize = 320
		png, err := qrcode.Encode(joinURL(r, gw.cfg, path, roomID), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(gw.cfg, w)

		_, _ = w.Write(png)
	}
}

// registerClimbGame sets up routes so that:
//   - $path                    → join page for ?room=<id>
//   - $path/ws                 → websocket for all intents
//   - $path/rooms              → JSON list of rooms
//   - $path/rooms/:roomid      → JSON state of one room
//   - $path/rooms/:roomid/qr   → PNG QR code of the room's join link
func registerClimbGame(cfg *Config, path string, mux *httprouter.Router, gw *Gateway, errs chan<- error) {
	mux.GET(cfg.prefix+path, serveJoinPage(cfg, gw, path, errs))
	mux.GET(cfg.prefix+path+"/ws", serveWS(gw))
	mux.GET(cfg.prefix+path+"/rooms", serveRooms(gw, errs))
	mux.GET(cfg.prefix+path+"/rooms/:roomid", serveRoom(gw))
	mux.GET(cfg.prefix+path+"/rooms/:roomid/qr", serveQR(gw, path))
}
