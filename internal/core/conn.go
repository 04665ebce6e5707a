package core

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// ConnState tracks the lifecycle of a connection. Closed is terminal.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateOpen
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is a single live bidirectional channel to one client, as seen by
// the core layer. Identity is the opaque bearer claim supplied at connect
// time; the core never inspects or validates it.
type Conn struct {
	ID       string
	Identity string
	Commands chan *Command
	Events   chan *Event

	state atomic.Int32

	// quit is closed on retire so the relay's forwarding goroutine for
	// this connection can exit instead of blocking on Commands forever.
	quit chan struct{}
}

// NewConn constructs a connection with a fresh identifier and initialized
// channels. Identifiers are never reused within a process.
func NewConn(identity string) *Conn {
	return &Conn{
		ID:       uuid.NewString(),
		Identity: identity,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 32),
		quit:     make(chan struct{}),
	}
}

// State reports the current lifecycle state.
func (c *Conn) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *Conn) setState(s ConnState) {
	c.state.Store(int32(s))
}
