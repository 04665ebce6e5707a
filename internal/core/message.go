package core

// SenderTag marks whether a delivered message copy is the sender's own
// echo or another member's broadcast copy.
type SenderTag int

const (
	// SenderOriginator tags the echo copy returned to the connection that
	// sent the message.
	SenderOriginator SenderTag = iota
	// SenderCounterpart tags the broadcast copy delivered to every other
	// room member.
	SenderCounterpart
	// SenderSystem tags relay-generated notices.
	SenderSystem
)

func (t SenderTag) String() string {
	switch t {
	case SenderOriginator:
		return "originator"
	case SenderCounterpart:
		return "counterpart"
	case SenderSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Message is one delivered copy of a chat payload. ID is unique within the
// process lifetime and monotonic for display ordering. Time is a formatted
// display timestamp, never used for logic.
type Message struct {
	ID           int64
	Conversation string
	Sender       SenderTag
	Text         string
	Time         string
}
