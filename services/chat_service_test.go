package services

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/observability"
	"log/slog"
	"strings"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type stubCensor struct{}

func (stubCensor) Censor(text string) (string, []string) {
	if strings.Contains(text, "damn") {
		return strings.ReplaceAll(text, "damn", "****"), []string{"damn"}
	}
	return text, nil
}

func newService(t *testing.T) (*ChatService, *mocks.MockIBroker, *mocks.MockChannel) {
	ctrl := gomock.NewController(t)
	broker := mocks.NewMockIBroker(ctrl)
	channel := mocks.NewMockChannel(ctrl)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return NewChatService(log, broker, stubCensor{}, 8, 10), broker, channel
}

func TestChatService_Connect(t *testing.T) {
	t.Run("should register a valid name", func(t *testing.T) {
		req := require.New(t)
		svc, broker, channel := newService(t)
		broker.EXPECT().Connect(domain.Identity("alice"), channel).Return(nil).Times(1)

		identity, err := svc.Connect("alice", channel)

		req.NoError(err)
		req.Equal(domain.Identity("alice"), identity)
	})

	t.Run("should reject an invalid name without reaching the broker", func(t *testing.T) {
		req := require.New(t)
		svc, broker, channel := newService(t)
		broker.EXPECT().Connect(gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Connect("far-too-long-name", channel)
		req.ErrorIs(err, errors.ErrInvalidIdentity)

		_, err = svc.Connect("", channel)
		req.ErrorIs(err, errors.ErrInvalidIdentity)
	})

	t.Run("should propagate a taken name", func(t *testing.T) {
		req := require.New(t)
		svc, broker, channel := newService(t)
		broker.EXPECT().Connect(domain.Identity("alice"), channel).Return(errors.ErrNameTaken)

		_, err := svc.Connect("alice", channel)

		req.ErrorIs(err, errors.ErrNameTaken)
	})
}

func TestChatService_ChooseRecipient(t *testing.T) {
	req := require.New(t)
	svc, broker, _ := newService(t)
	broker.EXPECT().RequestPairing(domain.Identity("alice"), domain.Identity("bob")).Return(nil)

	req.NoError(svc.ChooseRecipient(domain.ChooseRecipientCommand{Sender: "alice", Recipient: "bob"}))
	req.ErrorIs(svc.ChooseRecipient(domain.ChooseRecipientCommand{Sender: "alice", Recipient: " bob"}),
		errors.ErrInvalidIdentity)
}

func TestChatService_PostMessage(t *testing.T) {
	t.Run("should censor then relay", func(t *testing.T) {
		req := require.New(t)
		svc, broker, _ := newService(t)
		// Given a message containing a forbidden word
		broker.EXPECT().SendChatMessage(domain.Identity("alice"), "oh ****").Return(nil).Times(1)

		// When it is posted
		err := svc.PostMessage(domain.PostMessageCommand{Sender: "alice", Content: "  oh damn "})

		// Then the broker only sees the censored text
		req.NoError(err)
	})

	t.Run("should reject empty and oversized messages", func(t *testing.T) {
		req := require.New(t)
		svc, broker, _ := newService(t)
		broker.EXPECT().SendChatMessage(gomock.Any(), gomock.Any()).Times(0)

		req.ErrorIs(svc.PostMessage(domain.PostMessageCommand{Sender: "alice", Content: "   "}), errors.ErrEmptyMessage)
		req.ErrorIs(svc.PostMessage(domain.PostMessageCommand{Sender: "alice", Content: "hello world!"}), errors.ErrMessageTooLong)
	})

	t.Run("should count runes, not bytes", func(t *testing.T) {
		req := require.New(t)
		svc, broker, _ := newService(t)
		broker.EXPECT().SendChatMessage(domain.Identity("alice"), "éééééééééé").Return(nil)

		req.NoError(svc.PostMessage(domain.PostMessageCommand{Sender: "alice", Content: "éééééééééé"}))
	})

	t.Run("should surface an unpaired sender", func(t *testing.T) {
		req := require.New(t)
		svc, broker, _ := newService(t)
		broker.EXPECT().SendChatMessage(domain.Identity("alice"), "hi").Return(errors.ErrNoCounterpart)

		req.ErrorIs(svc.PostMessage(domain.PostMessageCommand{Sender: "alice", Content: "hi"}), errors.ErrNoCounterpart)
	})
}

func TestChatService_Stats(t *testing.T) {
	req := require.New(t)
	svc, broker, _ := newService(t)
	broker.EXPECT().Stats().Return(observability.Stats{ConnectedUsers: 3})

	req.Equal(3, svc.Stats().ConnectedUsers)
}

func TestChatService_Report(t *testing.T) {
	svc, broker, _ := newService(t)
	broker.EXPECT().Notify(domain.Identity("alice"), domain.Failure{Message: errors.ErrRateLimited.Error()}).Times(1)

	svc.Report("alice", errors.ErrRateLimited)
}

func TestChatService_Disconnect(t *testing.T) {
	svc, broker, _ := newService(t)
	broker.EXPECT().Disconnect(domain.Identity("alice")).Times(1)

	svc.Disconnect("alice")
}
