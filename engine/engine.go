/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package engine holds the in-memory room registry, connection liveness
// tracking, lobby and game lifecycle, scoring, and the periodic sweep that
// reconciles room membership against connection liveness.
//
// Every mutation runs on a single goroutine started by Run, so each intent,
// countdown tick, match timer and sweep executes to completion without
// interleaving with any other.
package engine

import (
	"context"
	"math/rand/v2"
	"time"
)

// Broadcaster delivers engine output to connections. Rooms are channels:
// Join subscribes a connection to a room, Broadcast fans out to every
// subscriber.
type Broadcaster interface {
	Join(roomID, connID string)
	Leave(roomID, connID string)
	Broadcast(roomID string, msg any)
	Send(connID string, msg any)
}

type Options struct {
	SweepInterval     time.Duration
	HeartbeatTimeout  time.Duration
	CountdownInterval time.Duration
	MatchDuration     time.Duration
	BonusWindow       time.Duration
	PublicRoomSize    int
	MaxRoomSize       int

	Logf func(format string, args ...any)
	Now  func() time.Time
	// Rand returns a value in [0, n).
	Rand func(n int) int
}

func DefaultOptions() Options {
	return Options{
		SweepInterval:     30 * time.Second,
		CountdownInterval: time.Second,
		MatchDuration:     60 * time.Second,
		BonusWindow:       40 * time.Second,
		PublicRoomSize:    10,
		MaxRoomSize:       50,
	}
}

type Engine struct {
	opts     Options
	registry *Registry
	sessions *SessionTracker
	out      Broadcaster

	inbox chan func()
	done  chan struct{}
}

func New(out Broadcaster, opts Options) *Engine {
	if opts.Logf == nil {
		opts.Logf = func(string, ...any) {}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.IntN
	}
	if opts.PublicRoomSize < minReady {
		opts.PublicRoomSize = DefaultOptions().PublicRoomSize
	}
	if opts.MaxRoomSize < minReady {
		opts.MaxRoomSize = DefaultOptions().MaxRoomSize
	}
	if opts.CountdownInterval <= 0 {
		opts.CountdownInterval = DefaultOptions().CountdownInterval
	}

	return &Engine{
		opts:     opts,
		registry: NewRegistry(opts.PublicRoomSize),
		sessions: NewSessionTracker(),
		out:      out,
		inbox:    make(chan func(), 64),
		done:     make(chan struct{}),
	}
}

// Run drives the engine until ctx is cancelled. It must be called exactly once.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.done)

	var sweeps <-chan time.Time
	if e.opts.SweepInterval > 0 {
		ticker := time.NewTicker(e.opts.SweepInterval)
		defer ticker.Stop()
		sweeps = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			for _, g := range e.registry.Games() {
				g.stopTimers()
			}
			return
		case fn := <-e.inbox:
			fn()
		case <-sweeps:
			e.sweep()
		}
	}
}

// do runs fn on the engine loop and waits for it to finish.
func (e *Engine) do(fn func()) error {
	finished := make(chan struct{})

	select {
	case e.inbox <- func() { fn(); close(finished) }:
	case <-e.done:
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-e.done:
		return ErrStopped
	}
}

// post queues fn on the engine loop without waiting. Timer callbacks use it.
func (e *Engine) post(fn func()) {
	select {
	case e.inbox <- fn:
	case <-e.done:
	}
}

func (e *Engine) now() time.Time {
	return e.opts.Now()
}

func (e *Engine) logf(format string, args ...any) {
	e.opts.Logf(format, args...)
}

func (e *Engine) broadcastRoom(g *Game) {
	e.out.Broadcast(g.ID, g.roomState())
}

// Rooms lists every registered room.
func (e *Engine) Rooms() ([]RoomInfo, error) {
	var out []RoomInfo

	err := e.do(func() {
		games := e.registry.Games()
		out = make([]RoomInfo, 0, len(games))
		for _, g := range games {
			out = append(out, g.info())
		}
	})

	return out, err
}

// Room returns the current state of one room.
func (e *Engine) Room(roomID string) (RoomStateMessage, error) {
	var (
		msg RoomStateMessage
		err error
	)

	if derr := e.do(func() {
		var g *Game
		g, err = e.registry.Find(roomID)
		if err == nil {
			msg = g.roomState()
		}
	}); derr != nil {
		return msg, derr
	}

	return msg, err
}

func (e *Engine) Connect(connID string) error {
	return e.do(func() {
		e.sessions.Open(connID, e.now())
		e.logf("CONNS: Connection %s opened", connID)
	})
}

// Disconnect marks the connection as gone. Its seat is left for the sweeper.
func (e *Engine) Disconnect(connID string) error {
	return e.do(func() {
		if e.sessions.Close(connID) {
			e.logf("CONNS: Connection %s closed", connID)
		}
	})
}

func (e *Engine) Heartbeat(connID string) error {
	var err error

	if derr := e.do(func() {
		if !e.sessions.Heartbeat(connID, e.now()) {
			err = ErrNotFound
		}
	}); derr != nil {
		return derr
	}

	return err
}

// touch keeps a session alive for a connection that just sent an intent.
func (e *Engine) touch(connID string) {
	if _, ok := e.sessions.Get(connID); ok {
		e.sessions.Heartbeat(connID, e.now())
		return
	}
	e.sessions.Open(connID, e.now())
}
