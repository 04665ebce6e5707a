package core

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// MessageSink receives each relayed message after fan-out has completed.
// Implemented by external collaborators such as a durable history store;
// the relay itself never persists anything and never blocks on the sink.
type MessageSink interface {
	RecordMessage(ctx context.Context, msg Message) error
}

// Option configures a Relay.
type Option func(*Relay)

// WithSink attaches a message sink notified after each accepted send.
func WithSink(sink MessageSink) Option {
	return func(r *Relay) { r.sink = sink }
}

type inbound struct {
	conn *Conn
	cmd  *Command
}

// Relay owns the Connection Registry and the Room Membership Index and
// processes every command on a single goroutine, so membership mutation
// and fan-out for a room never interleave. Commands from one connection
// are processed in submission order; commands from different connections
// may interleave arbitrarily.
type Relay struct {
	registry *Registry
	rooms    *Index

	attach chan *Conn
	detach chan *Conn
	inbox  chan inbound
	done   chan struct{}

	lastMsgID atomic.Int64
	sink      MessageSink
	log       *zerolog.Logger
}

// NewRelay constructs a relay ready to Run. A nil logger disables
// diagnostics.
func NewRelay(logger *zerolog.Logger, opts ...Option) *Relay {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	r := &Relay{
		registry: NewRegistry(),
		rooms:    NewIndex(),
		attach:   make(chan *Conn),
		detach:   make(chan *Conn),
		inbox:    make(chan inbound, 64),
		done:     make(chan struct{}),
		log:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes commands until the context is cancelled. It must be
// running before connections are attached.
func (r *Relay) Run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case c := <-r.attach:
			r.registry.Admit(c)
			r.log.Debug().Str("conn_id", c.ID).Msg("connection admitted")
			go r.forward(ctx, c)
		case c := <-r.detach:
			r.retire(c)
		case in := <-r.inbox:
			r.handle(in.conn, in.cmd)
		case <-ctx.Done():
			return
		}
	}
}

// Attach admits a connection and starts forwarding its commands. No-op
// after the relay has stopped.
func (r *Relay) Attach(c *Conn) {
	select {
	case r.attach <- c:
	case <-r.done:
	}
}

// Detach removes the connection from every room it belongs to and retires
// it. Idempotent: detaching an unknown or already-retired connection is a
// no-op.
func (r *Relay) Detach(c *Conn) {
	select {
	case r.detach <- c:
	case <-r.done:
	}
}

// forward pumps one connection's commands into the relay inbox, preserving
// their submission order. It exits when the connection is retired or the
// relay stops.
func (r *Relay) forward(ctx context.Context, c *Conn) {
	for {
		select {
		case cmd, ok := <-c.Commands:
			if !ok {
				return
			}
			select {
			case r.inbox <- inbound{conn: c, cmd: cmd}:
			case <-c.quit:
				return
			case <-ctx.Done():
				return
			}
		case <-c.quit:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Relay) retire(c *Conn) {
	if r.registry.Retire(c.ID) == nil {
		return
	}
	left := r.rooms.LeaveAll(c.ID)
	r.log.Debug().Str("conn_id", c.ID).Strs("rooms", left).Msg("connection retired")
	close(c.quit)
	close(c.Events)
}

func (r *Relay) handle(c *Conn, cmd *Command) {
	// A command can arrive after its connection was retired; stale
	// commands are dropped.
	if !r.registry.IsOpen(c.ID) {
		return
	}

	switch cmd.Kind {
	case CommandJoin:
		if cmd.Conversation == "" {
			r.log.Debug().Str("conn_id", c.ID).Msg("dropping join without conversation")
			return
		}
		r.rooms.Join(cmd.Conversation, c.ID)
	case CommandLeave:
		if cmd.Conversation == "" {
			r.log.Debug().Str("conn_id", c.ID).Msg("dropping leave without conversation")
			return
		}
		r.rooms.Leave(cmd.Conversation, c.ID)
	case CommandSend:
		r.handleSend(c, cmd)
	case CommandTyping:
		r.handleTyping(c, cmd)
	default:
		r.log.Debug().Str("conn_id", c.ID).Int("kind", int(cmd.Kind)).Msg("dropping unknown command")
	}
}

func (r *Relay) handleSend(c *Conn, cmd *Command) {
	if cmd.Conversation == "" {
		r.log.Debug().Str("conn_id", c.ID).Msg("dropping send without conversation")
		return
	}
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		r.log.Debug().Str("conn_id", c.ID).Str("conversation", cmd.Conversation).Msg("dropping empty message")
		return
	}

	msg := Message{
		ID:           r.lastMsgID.Add(1),
		Conversation: cmd.Conversation,
		Sender:       SenderCounterpart,
		Text:         text,
		Time:         time.Now().Format(time.Kitchen),
	}

	// Membership snapshot taken here, inside the actor step: a concurrent
	// join or disconnect cannot mutate the set mid-fan-out.
	for _, id := range r.rooms.MembersExcluding(cmd.Conversation, c.ID) {
		r.deliver(id, &Event{Kind: EventMessage, Conversation: cmd.Conversation, Message: msg})
	}

	echo := msg
	echo.Sender = SenderOriginator
	r.deliverTo(c, &Event{Kind: EventMessage, Conversation: cmd.Conversation, Message: echo})

	if r.sink != nil {
		go func(m Message) {
			if err := r.sink.RecordMessage(context.Background(), m); err != nil {
				r.log.Warn().Err(err).Int64("msg_id", m.ID).Msg("message sink failed")
			}
		}(msg)
	}
}

func (r *Relay) handleTyping(c *Conn, cmd *Command) {
	if cmd.Conversation == "" {
		r.log.Debug().Str("conn_id", c.ID).Msg("dropping typing without conversation")
		return
	}
	ev := &Event{Kind: EventTyping, Conversation: cmd.Conversation, Typing: cmd.Typing}
	for _, id := range r.rooms.MembersExcluding(cmd.Conversation, c.ID) {
		r.deliver(id, ev)
	}
}

func (r *Relay) deliver(connID string, ev *Event) {
	c := r.registry.Get(connID)
	if c == nil {
		// Closed mid-fan-out; skip without affecting the others.
		return
	}
	r.deliverTo(c, ev)
}

func (r *Relay) deliverTo(c *Conn, ev *Event) {
	select {
	case c.Events <- ev:
	default:
		r.log.Warn().Str("conn_id", c.ID).Msg("dropping event for slow consumer")
	}
}
