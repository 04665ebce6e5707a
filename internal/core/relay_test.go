package core

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"
)

func startRelay(t *testing.T, opts ...Option) *Relay {
	t.Helper()

	relay := NewRelay(nil, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go relay.Run(ctx)
	return relay
}

func TestRelayTwoPartyExchange(t *testing.T) {
	relay := startRelay(t)

	agent := NewConn("agent-token")
	customer := NewConn("customer-token")
	relay.Attach(agent)
	relay.Attach(customer)

	agent.Commands <- &Command{Kind: CommandJoin, Conversation: "7"}
	customer.Commands <- &Command{Kind: CommandJoin, Conversation: "7"}
	settle()

	agent.Commands <- &Command{Kind: CommandSend, Conversation: "7", Text: "hello"}

	echo := mustEvent(t, agent.Events, EventMessage)
	if echo.Message.Sender != SenderOriginator || echo.Message.Text != "hello" || echo.Message.Conversation != "7" {
		t.Fatalf("unexpected echo copy: %+v", echo.Message)
	}

	broadcast := mustEvent(t, customer.Events, EventMessage)
	if broadcast.Message.Sender != SenderCounterpart || broadcast.Message.Text != "hello" || broadcast.Message.Conversation != "7" {
		t.Fatalf("unexpected broadcast copy: %+v", broadcast.Message)
	}
	if broadcast.Message.ID != echo.Message.ID {
		t.Fatalf("echo id %d != broadcast id %d", echo.Message.ID, broadcast.Message.ID)
	}

	customer.Commands <- &Command{Kind: CommandSend, Conversation: "7", Text: "hi back"}

	reply := mustEvent(t, customer.Events, EventMessage)
	if reply.Message.Sender != SenderOriginator || reply.Message.Text != "hi back" {
		t.Fatalf("unexpected reply echo: %+v", reply.Message)
	}
	relayed := mustEvent(t, agent.Events, EventMessage)
	if relayed.Message.Sender != SenderCounterpart || relayed.Message.Text != "hi back" {
		t.Fatalf("unexpected relayed copy: %+v", relayed.Message)
	}
	if relayed.Message.ID <= echo.Message.ID {
		t.Fatalf("message ids not monotonic: %d then %d", echo.Message.ID, relayed.Message.ID)
	}
}

func TestRelayDropsEmptyText(t *testing.T) {
	relay := startRelay(t)

	a := NewConn("")
	b := NewConn("")
	relay.Attach(a)
	relay.Attach(b)

	a.Commands <- &Command{Kind: CommandJoin, Conversation: "7"}
	b.Commands <- &Command{Kind: CommandJoin, Conversation: "7"}
	settle()

	a.Commands <- &Command{Kind: CommandSend, Conversation: "7", Text: "   "}
	settle()

	mustNoEvent(t, a.Events)
	mustNoEvent(t, b.Events)
}

func TestRelayTypingExcludesSender(t *testing.T) {
	relay := startRelay(t)

	a := NewConn("")
	b := NewConn("")
	c := NewConn("")
	for _, conn := range []*Conn{a, b, c} {
		relay.Attach(conn)
		conn.Commands <- &Command{Kind: CommandJoin, Conversation: "9"}
	}
	settle()

	b.Commands <- &Command{Kind: CommandTyping, Conversation: "9", Typing: true}

	for _, conn := range []*Conn{a, c} {
		ev := mustEvent(t, conn.Events, EventTyping)
		if ev.Conversation != "9" || !ev.Typing {
			t.Fatalf("unexpected typing event: %+v", ev)
		}
		mustNoEvent(t, conn.Events)
	}
	mustNoEvent(t, b.Events)
}

func TestRelayTypingAloneDeliversNothing(t *testing.T) {
	relay := startRelay(t)

	a := NewConn("")
	relay.Attach(a)
	a.Commands <- &Command{Kind: CommandJoin, Conversation: "9"}
	settle()

	a.Commands <- &Command{Kind: CommandTyping, Conversation: "9", Typing: true}
	settle()

	mustNoEvent(t, a.Events)
}

func TestRelayDisconnectCleansMembership(t *testing.T) {
	relay := startRelay(t)

	a := NewConn("")
	b := NewConn("")
	relay.Attach(a)
	relay.Attach(b)
	a.Commands <- &Command{Kind: CommandJoin, Conversation: "7"}
	b.Commands <- &Command{Kind: CommandJoin, Conversation: "7"}
	settle()

	relay.Detach(b)
	relay.Detach(b) // double-reported close must be harmless
	settle()

	a.Commands <- &Command{Kind: CommandSend, Conversation: "7", Text: "anyone there"}

	echo := mustEvent(t, a.Events, EventMessage)
	if echo.Message.Sender != SenderOriginator {
		t.Fatalf("unexpected echo: %+v", echo.Message)
	}

	// The retired connection's event channel is closed and received
	// nothing after cleanup.
	for ev := range b.Events {
		if ev.Kind == EventMessage && ev.Message.Text == "anyone there" {
			t.Fatalf("retired connection received message: %+v", ev.Message)
		}
	}
}

func TestRelayLateJoinerMissesEarlierMessage(t *testing.T) {
	relay := startRelay(t)

	a := NewConn("")
	late := NewConn("")
	relay.Attach(a)
	relay.Attach(late)

	a.Commands <- &Command{Kind: CommandJoin, Conversation: "7"}
	settle()
	a.Commands <- &Command{Kind: CommandSend, Conversation: "7", Text: "early"}
	mustEvent(t, a.Events, EventMessage)

	late.Commands <- &Command{Kind: CommandJoin, Conversation: "7"}
	settle()

	mustNoEvent(t, late.Events)
}

func TestRelayEchoWithoutOtherMembers(t *testing.T) {
	relay := startRelay(t)

	a := NewConn("")
	relay.Attach(a)
	a.Commands <- &Command{Kind: CommandJoin, Conversation: "42"}
	settle()

	a.Commands <- &Command{Kind: CommandSend, Conversation: "42", Text: "just me"}

	echo := mustEvent(t, a.Events, EventMessage)
	if echo.Message.Sender != SenderOriginator || echo.Message.Text != "just me" {
		t.Fatalf("unexpected echo: %+v", echo.Message)
	}
	mustNoEvent(t, a.Events)
}

func TestRelayDetachStopsForwarding(t *testing.T) {
	relay := startRelay(t)
	settle()

	before := runtime.NumGoroutine()

	for i := 0; i < 200; i++ {
		c := NewConn("")
		relay.Attach(c)
		c.Commands <- &Command{Kind: CommandJoin, Conversation: "7"}
		relay.Detach(c)
	}

	// Every per-connection forwarding goroutine must exit once its
	// connection is retired, not linger until process shutdown.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= before+5 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("goroutines before=%d after=%d; forwarders leaked past detach", before, runtime.NumGoroutine())
}

type captureSink struct {
	mu   sync.Mutex
	msgs []Message
}

func (s *captureSink) RecordMessage(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *captureSink) snapshot() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.msgs...)
}

func TestRelayNotifiesSink(t *testing.T) {
	sink := &captureSink{}
	relay := startRelay(t, WithSink(sink))

	a := NewConn("")
	relay.Attach(a)
	a.Commands <- &Command{Kind: CommandJoin, Conversation: "7"}
	settle()
	a.Commands <- &Command{Kind: CommandSend, Conversation: "7", Text: "for the record"}
	mustEvent(t, a.Events, EventMessage)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		msgs := sink.snapshot()
		if len(msgs) == 1 {
			if msgs[0].Conversation != "7" || msgs[0].Text != "for the record" {
				t.Fatalf("unexpected recorded message: %+v", msgs[0])
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("sink never received the message")
}
