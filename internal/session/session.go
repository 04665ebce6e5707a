// Package session is the consumer-facing facade used by application code:
// one Session per logical chat participant, wrapping one underlying
// websocket connection and multiplexing inbound events to locally
// registered listeners.
package session

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/prtysh-bhb/estatechat/internal/core"
	"github.com/prtysh-bhb/estatechat/internal/proto"
)

// Message is a delivered message copy as seen by facade listeners.
type Message struct {
	ID           int64
	Conversation string
	Sender       core.SenderTag
	Text         string
	Time         string
}

// TypingSignal is a typing-presence notification from another member.
type TypingSignal struct {
	Conversation string
	Typing       bool
}

// MessageHandler is invoked for every inbound message copy.
type MessageHandler func(Message)

// TypingHandler is invoked for every inbound typing signal.
type TypingHandler func(TypingSignal)

// Dialer opens sessions and keeps at most one live session per endpoint,
// so repeated UI mounts reuse the existing connection instead of leaking
// a new one.
type Dialer struct {
	log *zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewDialer constructs a dialer. A nil logger disables diagnostics.
func NewDialer(logger *zerolog.Logger) *Dialer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Dialer{log: logger, sessions: make(map[string]*Session)}
}

// Connect returns the open session for endpoint if one exists, otherwise
// dials a new connection with the optional bearer token attached.
func (d *Dialer) Connect(ctx context.Context, endpoint, token string) (*Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s, ok := d.sessions[endpoint]; ok && s.Open() {
		return s, nil
	}

	target := endpoint
	if token != "" {
		target += "?token=" + url.QueryEscape(token)
	}

	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		return nil, err
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		endpoint:    endpoint,
		conn:        conn,
		log:         d.log,
		ctx:         pumpCtx,
		cancel:      cancel,
		open:        true,
		msgHandlers: make(map[int]MessageHandler),
		typHandlers: make(map[int]TypingHandler),
	}
	s.remove = func() { d.forget(endpoint, s) }
	d.sessions[endpoint] = s

	go s.readPump()
	return s, nil
}

func (d *Dialer) forget(endpoint string, s *Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sessions[endpoint] == s {
		delete(d.sessions, endpoint)
	}
}

// Session is one live participant connection. Listener callbacks run on
// the session's single read goroutine, never concurrently.
type Session struct {
	endpoint string
	conn     *websocket.Conn
	log      *zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	remove   func()

	mu          sync.Mutex
	open        bool
	nextHandler int
	msgHandlers map[int]MessageHandler
	typHandlers map[int]TypingHandler
}

// Open reports whether the session's connection is currently usable.
func (s *Session) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// JoinConversation subscribes this session to a conversation.
func (s *Session) JoinConversation(conversation string) {
	s.emit(proto.TypeJoin, proto.JoinData{Conversation: proto.ConversationID(conversation)})
}

// LeaveConversation unsubscribes this session from a conversation.
func (s *Session) LeaveConversation(conversation string) {
	s.emit(proto.TypeLeave, proto.JoinData{Conversation: proto.ConversationID(conversation)})
}

// SendMessage sends a chat message. Fire-and-forget: delivery feedback
// arrives as the originator-tagged echo on the message listeners.
func (s *Session) SendMessage(conversation, text string) {
	s.emit(proto.TypeSend, proto.SendData{Conversation: proto.ConversationID(conversation), Text: text})
}

// SetTyping signals typing presence to other conversation members.
func (s *Session) SetTyping(conversation string, typing bool) {
	s.emit(proto.TypeTyping, proto.TypingData{Conversation: proto.ConversationID(conversation), Typing: typing})
}

// OnMessage registers a listener for inbound message copies and returns
// its unsubscribe function. Unsubscribing never affects other listeners.
func (s *Session) OnMessage(h MessageHandler) func() {
	s.mu.Lock()
	id := s.nextHandler
	s.nextHandler++
	s.msgHandlers[id] = h
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.msgHandlers, id)
		s.mu.Unlock()
	}
}

// OnTyping registers a listener for inbound typing signals and returns
// its unsubscribe function.
func (s *Session) OnTyping(h TypingHandler) func() {
	s.mu.Lock()
	id := s.nextHandler
	s.nextHandler++
	s.typHandlers[id] = h
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.typHandlers, id)
		s.mu.Unlock()
	}
}

// Disconnect tears down the connection and clears all listeners.
// Idempotent.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return
	}
	s.open = false
	s.msgHandlers = make(map[int]MessageHandler)
	s.typHandlers = make(map[int]TypingHandler)
	s.mu.Unlock()

	s.cancel()
	s.conn.Close(websocket.StatusNormalClosure, "bye")
	s.remove()
}

// emit writes one fire-and-forget event. On a non-open session it is a
// no-op with a warning; callers react to the connection state separately.
func (s *Session) emit(eventType string, payload any) {
	if !s.Open() {
		s.log.Warn().Str("event", eventType).Str("endpoint", s.endpoint).Msg("session not open, dropping emit")
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("marshal emit payload")
		return
	}
	if err := wsjson.Write(s.ctx, s.conn, proto.Inbound{Type: eventType, Data: data}); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("write emit")
	}
}

func (s *Session) readPump() {
	defer s.markClosed()

	for {
		var outbound struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := wsjson.Read(s.ctx, s.conn, &outbound); err != nil {
			if s.Open() {
				s.log.Warn().Err(err).Str("endpoint", s.endpoint).Msg("session read failed")
			}
			return
		}

		switch outbound.Type {
		case proto.TypeMessage:
			var msg proto.MessageData
			if err := json.Unmarshal(outbound.Data, &msg); err != nil {
				s.log.Warn().Err(err).Msg("unmarshal message event")
				continue
			}
			s.dispatchMessage(Message{
				ID:           msg.ID,
				Conversation: string(msg.Conversation),
				Sender:       senderFromString(msg.Sender),
				Text:         msg.Text,
				Time:         msg.Time,
			})
		case proto.TypeTyping:
			var typing proto.TypingData
			if err := json.Unmarshal(outbound.Data, &typing); err != nil {
				s.log.Warn().Err(err).Msg("unmarshal typing event")
				continue
			}
			s.dispatchTyping(TypingSignal{
				Conversation: string(typing.Conversation),
				Typing:       typing.Typing,
			})
		default:
			s.log.Debug().Str("type", outbound.Type).Msg("ignoring unknown event type")
		}
	}
}

// dispatchMessage invokes a snapshot of the registered listeners, so a
// listener unsubscribing itself (or others) mid-dispatch cannot skip or
// double-invoke the rest.
func (s *Session) dispatchMessage(msg Message) {
	s.mu.Lock()
	handlers := make([]MessageHandler, 0, len(s.msgHandlers))
	for _, h := range s.msgHandlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
}

func (s *Session) dispatchTyping(sig TypingSignal) {
	s.mu.Lock()
	handlers := make([]TypingHandler, 0, len(s.typHandlers))
	for _, h := range s.typHandlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(sig)
	}
}

func (s *Session) markClosed() {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
}

func senderFromString(tag string) core.SenderTag {
	switch tag {
	case "originator":
		return core.SenderOriginator
	case "counterpart":
		return core.SenderCounterpart
	default:
		return core.SenderSystem
	}
}
