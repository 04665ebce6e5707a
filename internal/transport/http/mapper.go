package http

import (
	"encoding/json"

	"github.com/prtysh-bhb/estatechat/internal/core"
	"github.com/prtysh-bhb/estatechat/internal/proto"
)

// inboundToCommand maps a wire event to a relay command. A non-empty
// reason with a nil command means the event is malformed and must be
// dropped; no error event goes back to the client.
func inboundToCommand(inbound proto.Inbound) (*core.Command, string) {
	switch inbound.Type {
	case proto.TypeJoin:
		var join proto.JoinData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return nil, "malformed join payload"
		}
		if join.Conversation == "" {
			return nil, "join without conversation_id"
		}
		return &core.Command{
			Kind:         core.CommandJoin,
			Conversation: string(join.Conversation),
		}, ""
	case proto.TypeLeave:
		var leave proto.JoinData
		if err := json.Unmarshal(inbound.Data, &leave); err != nil {
			return nil, "malformed leave payload"
		}
		if leave.Conversation == "" {
			return nil, "leave without conversation_id"
		}
		return &core.Command{
			Kind:         core.CommandLeave,
			Conversation: string(leave.Conversation),
		}, ""
	case proto.TypeSend:
		var send proto.SendData
		if err := json.Unmarshal(inbound.Data, &send); err != nil {
			return nil, "malformed send payload"
		}
		if send.Conversation == "" {
			return nil, "send without conversation_id"
		}
		return &core.Command{
			Kind:         core.CommandSend,
			Conversation: string(send.Conversation),
			Text:         send.Text,
		}, ""
	case proto.TypeTyping:
		var typing proto.TypingData
		if err := json.Unmarshal(inbound.Data, &typing); err != nil {
			return nil, "malformed typing payload"
		}
		if typing.Conversation == "" {
			return nil, "typing without conversation_id"
		}
		return &core.Command{
			Kind:         core.CommandTyping,
			Conversation: string(typing.Conversation),
			Typing:       typing.Typing,
		}, ""
	default:
		return nil, "unknown event type"
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventMessage:
		return proto.Outbound{
			Type: proto.TypeMessage,
			Data: proto.MessageData{
				ID:           event.Message.ID,
				Conversation: proto.ConversationID(event.Message.Conversation),
				Sender:       event.Message.Sender.String(),
				Text:         event.Message.Text,
				Time:         event.Message.Time,
			},
		}
	case core.EventTyping:
		return proto.Outbound{
			Type: proto.TypeTyping,
			Data: proto.TypingData{
				Conversation: proto.ConversationID(event.Conversation),
				Typing:       event.Typing,
			},
		}
	default:
		return proto.Outbound{Type: proto.TypeMessage}
	}
}
