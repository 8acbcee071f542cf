package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/observability"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

type IChatService interface {
	Connect(name string, channel contract.Channel) (domain.Identity, error)
	Disconnect(identity domain.Identity)
	ChooseRecipient(cmd domain.ChooseRecipientCommand) error
	PostMessage(cmd domain.PostMessageCommand) error
	Report(identity domain.Identity, err error)
	Stats() observability.Stats
}

// Censor masks forbidden words. Implemented by moderation.Moderator.
type Censor interface {
	Censor(text string) (string, []string)
}

type ChatService struct {
	log              *slog.Logger
	broker           contract.IBroker
	censor           Censor
	maxNameLength    int
	maxMessageLength int
}

func NewChatService(log *slog.Logger, broker contract.IBroker, censor Censor,
	maxNameLength, maxMessageLength int) *ChatService {
	return &ChatService{
		log:              log,
		broker:           broker,
		censor:           censor,
		maxNameLength:    maxNameLength,
		maxMessageLength: maxMessageLength,
	}
}

func (s *ChatService) Connect(name string, channel contract.Channel) (domain.Identity, error) {
	identity, err := domain.ValidateIdentity(name, s.maxNameLength)
	if err != nil {
		return "", err
	}
	if err := s.broker.Connect(identity, channel); err != nil {
		return "", err
	}
	s.log.Info("Participant connected", "identity", identity)
	return identity, nil
}

func (s *ChatService) Disconnect(identity domain.Identity) {
	s.broker.Disconnect(identity)
	s.log.Info("Participant disconnected", "identity", identity)
}

func (s *ChatService) ChooseRecipient(cmd domain.ChooseRecipientCommand) error {
	counterpart, err := domain.ValidateIdentity(cmd.Recipient, s.maxNameLength)
	if err != nil {
		return err
	}
	return s.broker.RequestPairing(cmd.Sender, counterpart)
}

// PostMessage censors the content and relays it to the sender's counterpart.
func (s *ChatService) PostMessage(cmd domain.PostMessageCommand) error {
	content := strings.TrimSpace(cmd.Content)
	if content == "" {
		return errors.ErrEmptyMessage
	}
	if s.maxMessageLength > 0 && utf8.RuneCountInString(content) > s.maxMessageLength {
		return fmt.Errorf("%w: limit is %d characters", errors.ErrMessageTooLong, s.maxMessageLength)
	}
	if s.censor != nil {
		var words []string
		content, words = s.censor.Censor(content)
		if len(words) > 0 {
			s.log.Debug("Censored message", "identity", cmd.Sender, "count", len(words))
		}
	}
	return s.broker.SendChatMessage(cmd.Sender, content)
}

// Report queues an error payload behind whatever is already pending for identity.
func (s *ChatService) Report(identity domain.Identity, err error) {
	s.broker.Notify(identity, domain.Failure{Message: err.Error()})
}

func (s *ChatService) Stats() observability.Stats {
	return s.broker.Stats()
}
