// Package domain contains core concepts of the chat relay.
// This file defines chat messages and the payloads pushed to participants.
// Payloads are immutable once enqueued.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type PayloadKind string

const (
	KindConnectedUsers  PayloadKind = "connected_users"
	KindRecipientChosen PayloadKind = "recipient_chosen"
	KindRoomKilled      PayloadKind = "room_killed"
	KindChatMessage     PayloadKind = "chat_message"
	KindOwnMessage      PayloadKind = "own_message"
	KindNoRecipient     PayloadKind = "no_recipient"
	KindError           PayloadKind = "error"
)

// ReasonOtherUserLeft is carried by RoomKilled when the counterpart went away.
const ReasonOtherUserLeft = "The other user left"

// Payload is the content of an outbound envelope. Rendering it into bytes is
// the transport's job.
type Payload interface {
	Kind() PayloadKind
}

// ConnectedUsers carries the number of currently connected identities.
type ConnectedUsers struct {
	Count int
}

// RecipientChosen tells a participant who they are now paired with.
type RecipientChosen struct {
	Counterpart Identity
}

// RoomKilled tells a participant their pairing is gone.
type RoomKilled struct {
	Reason         string
	ConnectedUsers []Identity
}

// ChatMessage is a message forwarded to the recipient.
type ChatMessage struct {
	ID     uuid.UUID
	Sender Identity
	Text   string
	At     time.Time
	// Lang is the ISO 639-1 code of Text, empty when unknown.
	Lang string
}

// OwnMessage confirms to the sender that their message was relayed.
type OwnMessage struct {
	ChatMessage
}

// NoRecipient is returned to a sender who is not paired, in strict mode.
type NoRecipient struct {
	Text string
}

// Failure reports a rejected request back to the participant who made it.
type Failure struct {
	Message string
}

func (ConnectedUsers) Kind() PayloadKind  { return KindConnectedUsers }
func (RecipientChosen) Kind() PayloadKind { return KindRecipientChosen }
func (RoomKilled) Kind() PayloadKind      { return KindRoomKilled }
func (ChatMessage) Kind() PayloadKind     { return KindChatMessage }
func (OwnMessage) Kind() PayloadKind      { return KindOwnMessage }
func (NoRecipient) Kind() PayloadKind     { return KindNoRecipient }
func (Failure) Kind() PayloadKind         { return KindError }

// NewChatMessage stamps a message with a fresh id and the current UTC time.
func NewChatMessage(sender Identity, text string) ChatMessage {
	return ChatMessage{
		ID:     uuid.New(),
		Sender: sender,
		Text:   text,
		At:     time.Now().UTC(),
	}
}

// Envelope is a queued (recipient, payload) unit awaiting transmission.
type Envelope struct {
	Recipient Identity
	Payload   Payload
}
