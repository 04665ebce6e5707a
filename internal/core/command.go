package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoin subscribes the connection to a conversation.
	CommandJoin CommandKind = iota
	// CommandLeave unsubscribes the connection from a conversation.
	CommandLeave
	// CommandSend delivers a chat message to conversation members.
	CommandSend
	// CommandTyping relays a typing-presence signal to other members.
	CommandTyping
)

func (k CommandKind) String() string {
	switch k {
	case CommandJoin:
		return "join"
	case CommandLeave:
		return "leave"
	case CommandSend:
		return "send"
	case CommandTyping:
		return "typing"
	default:
		return "unknown"
	}
}

// Command represents an action requested by a connection.
type Command struct {
	Kind         CommandKind
	Conversation string
	Text         string
	Typing       bool
}
