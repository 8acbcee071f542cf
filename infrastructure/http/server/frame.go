package server

import (
	"chat-relay/domain"
	"time"
)

// Inbound frame types.
const (
	FrameChooseRecipient = "choose_recipient"
	FrameChatMessage     = "chat_message"
)

// Frame is what a client writes on the socket. htmx clients add a HEADERS
// field, which is ignored.
type Frame struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// OutboundFrame is what the relay writes on a JSON socket.
type OutboundFrame struct {
	Type  domain.PayloadKind `json:"type"`
	Value any                `json:"value"`
}

type RoomKilledValue struct {
	Reason         string   `json:"reason"`
	ConnectedUsers []string `json:"connected_users"`
}

type ChatMessageValue struct {
	ID     string    `json:"id"`
	Sender string    `json:"sender"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
	Lang   string    `json:"lang,omitempty"`
}

func toChatMessageValue(message domain.ChatMessage) ChatMessageValue {
	return ChatMessageValue{
		ID:     message.ID.String(),
		Sender: message.Sender.String(),
		Text:   message.Text,
		At:     message.At,
		Lang:   message.Lang,
	}
}

func toOutboundFrame(payload domain.Payload) OutboundFrame {
	frame := OutboundFrame{Type: payload.Kind()}
	switch p := payload.(type) {
	case domain.ConnectedUsers:
		frame.Value = p.Count
	case domain.RecipientChosen:
		frame.Value = p.Counterpart.String()
	case domain.RoomKilled:
		users := make([]string, 0, len(p.ConnectedUsers))
		for _, u := range p.ConnectedUsers {
			users = append(users, u.String())
		}
		frame.Value = RoomKilledValue{Reason: p.Reason, ConnectedUsers: users}
	case domain.ChatMessage:
		frame.Value = toChatMessageValue(p)
	case domain.OwnMessage:
		frame.Value = toChatMessageValue(p.ChatMessage)
	case domain.NoRecipient:
		frame.Value = p.Text
	case domain.Failure:
		frame.Value = p.Message
	}
	return frame
}
