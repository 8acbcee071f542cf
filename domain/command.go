package domain

import "time"

// Command is an inbound request from a connected participant.
type Command interface {
	From() Identity
}

type ChooseRecipientCommand struct {
	Sender    Identity
	Recipient string
}

func (c ChooseRecipientCommand) From() Identity { return c.Sender }

type PostMessageCommand struct {
	Sender    Identity
	Content   string
	CreatedAt time.Time
}

func (c PostMessageCommand) From() Identity { return c.Sender }
