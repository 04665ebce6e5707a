package proto

import (
	"encoding/json"
	"strconv"
)

// Inbound is the envelope for events coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Event names. Join/leave/send are client→server; message is
// server→client; typing travels both ways with the same payload shape.
const (
	TypeJoin    = "chat:join"
	TypeLeave   = "chat:leave"
	TypeSend    = "chat:send"
	TypeTyping  = "chat:typing"
	TypeMessage = "chat:message"
)

// ConversationID is a caller-supplied conversation token. The wire form
// may be a JSON number or a string; it is carried as its canonical string
// form and re-encoded as a number when it is one.
type ConversationID string

func (c *ConversationID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = ConversationID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*c = ConversationID(n.String())
	return nil
}

func (c ConversationID) MarshalJSON() ([]byte, error) {
	// Only canonical integer forms go back out as numbers; "007" stays a
	// string to keep the output valid JSON.
	if n, err := strconv.ParseInt(string(c), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(c) {
		return []byte(c), nil
	}
	return json.Marshal(string(c))
}

// JoinData requests to join or leave a specific conversation.
type JoinData struct {
	Conversation ConversationID `json:"conversation_id"`
}

// SendData is a chat message from the client.
type SendData struct {
	Conversation ConversationID `json:"conversation_id"`
	Text         string         `json:"text"`
}

// TypingData is a typing-presence signal, inbound and outbound.
type TypingData struct {
	Conversation ConversationID `json:"conversation_id"`
	Typing       bool           `json:"typing"`
}

// Outbound is the envelope for events sent to the client.
type Outbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// MessageData is a delivered message copy. Sender is "originator" on the
// copy echoed to the sending connection and "counterpart" on every
// broadcast copy.
type MessageData struct {
	ID           int64          `json:"id"`
	Conversation ConversationID `json:"conversation_id"`
	Sender       string         `json:"sender"`
	Text         string         `json:"text"`
	Time         string         `json:"time"`
}
