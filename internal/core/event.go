package core

// EventKind is a notification the relay emits to connections.
type EventKind int

const (
	// EventMessage delivers a chat message copy (echo or broadcast).
	EventMessage EventKind = iota
	// EventTyping delivers a typing-presence signal from another member.
	EventTyping
)

// Event is sent to connections to describe what happened in a
// conversation they belong to.
type Event struct {
	Kind         EventKind
	Conversation string
	Typing       bool
	Message      Message
}
