package runtime

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/observability"
	"chat-relay/runtime/workers"
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

func newTestBroker(t *testing.T, options Options) *Broker {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	broker := NewBroker(log, workers.NewSupervisor(log, 10*time.Millisecond),
		NewRegistry(log), NewDeliveryQueue(), observability.NewMonitoring(log), options)
	t.Cleanup(broker.Stop)
	return broker
}

func connect(t *testing.T, broker *Broker, identity domain.Identity) *recordingChannel {
	t.Helper()
	channel := &recordingChannel{}
	require.NoError(t, broker.Connect(identity, channel))
	return channel
}

func TestBroker_End_To_End_Scenario(t *testing.T) {
	req := require.New(t)
	broker := newTestBroker(t, Options{})
	broker.Start(context.Background())

	// Given alice and bob connect
	alice := connect(t, broker, "alice")
	bob := connect(t, broker, "bob")

	// Then both are told two users are connected
	req.Eventually(func() bool { return len(bob.Received()) == 1 }, waitFor, tick)
	req.Eventually(func() bool { return len(alice.Received()) == 2 }, waitFor, tick)
	req.Equal(domain.ConnectedUsers{Count: 1}, alice.Received()[0])
	req.Equal(domain.ConnectedUsers{Count: 2}, alice.Received()[1])
	req.Equal(domain.ConnectedUsers{Count: 2}, bob.Received()[0])

	// When alice chooses bob
	req.NoError(broker.RequestPairing("alice", "bob"))

	// Then each one learns the other's name
	req.Eventually(func() bool { return len(bob.Received()) == 2 }, waitFor, tick)
	req.Eventually(func() bool { return len(alice.Received()) == 3 }, waitFor, tick)
	req.Equal(domain.RecipientChosen{Counterpart: "bob"}, alice.last())
	req.Equal(domain.RecipientChosen{Counterpart: "alice"}, bob.last())

	// When alice says hi
	req.NoError(broker.SendChatMessage("alice", "hi"))

	// Then alice gets the echo and bob the message
	req.Eventually(func() bool { return len(bob.Received()) == 3 }, waitFor, tick)
	req.Eventually(func() bool { return len(alice.Received()) == 4 }, waitFor, tick)
	echo, ok := alice.last().(domain.OwnMessage)
	req.True(ok)
	req.Equal("hi", echo.Text)
	forward, ok := bob.last().(domain.ChatMessage)
	req.True(ok)
	req.Equal("hi", forward.Text)
	req.Equal(domain.Identity("alice"), forward.Sender)
	req.Equal(echo.ID, forward.ID)

	// When bob disconnects
	broker.Disconnect("bob")

	// Then alice's room is killed and only one user is left
	req.Eventually(func() bool { return len(alice.Received()) == 6 }, waitFor, tick)
	killed, ok := alice.Received()[4].(domain.RoomKilled)
	req.True(ok)
	req.Equal(domain.ReasonOtherUserLeft, killed.Reason)
	req.Equal([]domain.Identity{"alice"}, killed.ConnectedUsers)
	req.Equal(domain.ConnectedUsers{Count: 1}, alice.Received()[5])

	// And bob got nothing more, his channel is closed
	req.False(bob.IsOpen())
	req.Len(bob.Received(), 3)
	req.Equal(1, broker.Count())
	_, paired := broker.CounterpartOf("alice")
	req.False(paired)
}

func TestBroker_Connect_Duplicate_Name(t *testing.T) {
	req := require.New(t)
	broker := newTestBroker(t, Options{})
	connect(t, broker, "alice")
	pending := broker.Pending()

	err := broker.Connect("alice", &recordingChannel{})

	// Then the second connection is refused without side effects
	req.ErrorIs(err, errors.ErrNameTaken)
	req.Equal(1, broker.Count())
	req.Equal(pending, broker.Pending())
}

func TestBroker_Repairing_Kills_Stale_Rooms(t *testing.T) {
	req := require.New(t)
	broker := newTestBroker(t, Options{})
	broker.Start(context.Background())

	// Given rooms (a,b) and (c,d)
	a := connect(t, broker, "a")
	b := connect(t, broker, "b")
	c := connect(t, broker, "c")
	d := connect(t, broker, "d")
	req.NoError(broker.RequestPairing("a", "b"))
	req.NoError(broker.RequestPairing("c", "d"))

	// When a chooses c
	req.NoError(broker.RequestPairing("a", "c"))

	// Then a and c are paired together
	req.Eventually(func() bool {
		return len(a.ofKind(domain.KindRecipientChosen)) == 2 && len(c.ofKind(domain.KindRecipientChosen)) == 2
	}, waitFor, tick)
	req.Equal(domain.RecipientChosen{Counterpart: "c"}, a.last())
	req.Equal(domain.RecipientChosen{Counterpart: "a"}, c.last())
	req.Equal(1, broker.Rooms())

	// And b and d each got exactly one room killed notice
	req.Eventually(func() bool {
		return len(b.ofKind(domain.KindRoomKilled)) == 1 && len(d.ofKind(domain.KindRoomKilled)) == 1
	}, waitFor, tick)
	_, ok := broker.CounterpartOf("b")
	req.False(ok)
	_, ok = broker.CounterpartOf("d")
	req.False(ok)

	// And the re-pairing parties were not told their old room died
	req.Empty(a.ofKind(domain.KindRoomKilled))
	req.Empty(c.ofKind(domain.KindRoomKilled))
}

func TestBroker_RequestPairing_Errors(t *testing.T) {
	req := require.New(t)
	broker := newTestBroker(t, Options{})
	connect(t, broker, "alice")

	err := broker.RequestPairing("alice", "ghost")
	req.ErrorIs(err, errors.ErrNotConnected)
	req.Contains(err.Error(), "ghost")

	err = broker.RequestPairing("ghost", "alice")
	req.ErrorIs(err, errors.ErrNotConnected)
	req.Contains(err.Error(), "ghost")

	// When neither side is connected the recipient is the one reported
	err = broker.RequestPairing("ghost", "phantom")
	req.ErrorIs(err, errors.ErrNotConnected)
	req.Contains(err.Error(), "phantom")
	req.NotContains(err.Error(), "ghost")

	req.ErrorIs(broker.RequestPairing("alice", "alice"), errors.ErrSelfPairing)
	req.Equal(0, broker.Rooms())
}

func TestBroker_Disconnect_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	broker := newTestBroker(t, Options{})
	alice := connect(t, broker, "alice")
	bob := connect(t, broker, "bob")
	req.NoError(broker.RequestPairing("alice", "bob"))

	broker.Disconnect("alice")
	pending := broker.Pending()
	broker.Disconnect("alice")

	// Then the second call changes nothing and alice was closed once
	req.Equal(1, alice.closes)
	req.Equal(pending, broker.Pending())
	req.Equal(1, broker.Count())
	req.Equal(0, broker.Rooms())
	req.True(bob.IsOpen())

	// And the name is free again
	connect(t, broker, "alice")
	req.Equal(2, broker.Count())
}

func TestBroker_Drops_Envelopes_For_Departed_Recipient(t *testing.T) {
	req := require.New(t)
	broker := newTestBroker(t, Options{})

	// Given envelopes for bob are queued while the worker is not running
	alice := connect(t, broker, "alice")
	bob := connect(t, broker, "bob")
	req.NoError(broker.RequestPairing("alice", "bob"))
	req.NoError(broker.SendChatMessage("alice", "are you there?"))

	// When bob leaves before delivery
	broker.Disconnect("bob")
	broker.Start(context.Background())

	// Then alice gets all her envelopes and bob none
	req.Eventually(func() bool { return broker.Pending() == 0 && len(alice.ofKind(domain.KindConnectedUsers)) == 3 }, waitFor, tick)
	req.Empty(bob.Received())
	req.Eventually(func() bool { return broker.Stats().Dropped == 3 }, waitFor, tick)
}

func TestBroker_SendChatMessage_Unpaired(t *testing.T) {
	t.Run("silent drop by default", func(t *testing.T) {
		req := require.New(t)
		broker := newTestBroker(t, Options{})
		connect(t, broker, "alice")
		pending := broker.Pending()

		req.ErrorIs(broker.SendChatMessage("alice", "hello?"), errors.ErrNoCounterpart)
		req.Equal(pending, broker.Pending())
	})

	t.Run("strict mode tells the sender", func(t *testing.T) {
		req := require.New(t)
		broker := newTestBroker(t, Options{StrictRecipient: true})
		broker.Start(context.Background())
		alice := connect(t, broker, "alice")

		req.ErrorIs(broker.SendChatMessage("alice", "hello?"), errors.ErrNoCounterpart)

		req.Eventually(func() bool { return len(alice.ofKind(domain.KindNoRecipient)) == 1 }, waitFor, tick)
		req.Equal(domain.NoRecipient{Text: "hello?"}, alice.last())
	})
}

func TestBroker_Concurrent_Pairings_Keep_Rooms_Exclusive(t *testing.T) {
	req := require.New(t)
	broker := newTestBroker(t, Options{})
	broker.Start(context.Background())

	identities := make([]domain.Identity, 12)
	for i := range identities {
		identities[i] = domain.Identity(fmt.Sprintf("user-%d", i))
		connect(t, broker, identities[i])
	}

	// When many goroutines pair overlapping identities at the same time
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(seed))
			for i := 0; i < 100; i++ {
				a := identities[rnd.Intn(len(identities))]
				b := identities[rnd.Intn(len(identities))]
				_ = broker.RequestPairing(a, b)
			}
		}(int64(g))
	}
	wg.Wait()

	// Then every identity is in at most one room and pairings are symmetric
	broker.mu.Lock()
	defer broker.mu.Unlock()
	seen := make(map[domain.Identity]int)
	for _, room := range broker.pairing.Rooms() {
		members := room.Members()
		req.NotEqual(members[0], members[1])
		seen[members[0]]++
		seen[members[1]]++
	}
	for identity, n := range seen {
		req.Equal(1, n, "%s is in %d rooms", identity, n)
		other, ok := broker.pairing.CounterpartOf(identity)
		req.True(ok)
		back, ok := broker.pairing.CounterpartOf(other)
		req.True(ok)
		req.Equal(identity, back)
	}
}

func TestBroker_Stop_Refuses_New_Connections(t *testing.T) {
	req := require.New(t)
	broker := newTestBroker(t, Options{})
	broker.Start(context.Background())
	connect(t, broker, "alice")

	broker.Stop()

	req.ErrorIs(broker.Connect("bob", &recordingChannel{}), errors.ErrBrokerStopped)
	req.Equal(0, broker.Pending())
	select {
	case <-broker.Done():
	default:
		req.Fail("delivery worker should have stopped")
	}
}

func TestBroker_Start_Then_Stop_Straight_Away(t *testing.T) {
	req := require.New(t)

	for i := 0; i < 20; i++ {
		broker := newTestBroker(t, Options{ReportInterval: time.Hour})

		// When the broker is stopped before its worker had a chance to run
		broker.Start(context.Background())
		stopped := make(chan struct{})
		go func() {
			broker.Stop()
			close(stopped)
		}()

		// Then Stop still returns and the worker is gone
		select {
		case <-stopped:
		case <-time.After(waitFor):
			req.Failf("Stop did not return", "iteration %d", i)
		}
		select {
		case <-broker.Done():
		default:
			req.Failf("delivery worker still running", "iteration %d", i)
		}
	}
}

func TestBroker_Disconnect_Closes_Channel_Outside_Lock(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	broker := newTestBroker(t, Options{})

	// Given alice's socket hangs on close and then fails
	closing := make(chan struct{})
	release := make(chan struct{})
	channel := mocks.NewMockChannel(ctrl)
	channel.EXPECT().Close().DoAndReturn(func() error {
		close(closing)
		<-release
		return errors.ErrChannelClosed
	}).Times(1)
	req.NoError(broker.Connect("alice", channel))

	disconnected := make(chan struct{})
	go func() {
		broker.Disconnect("alice")
		close(disconnected)
	}()
	select {
	case <-closing:
	case <-time.After(waitFor):
		req.FailNow("alice's channel was never closed")
	}

	// When bob connects while alice's close is still pending
	connected := make(chan error, 1)
	go func() { connected <- broker.Connect("bob", &recordingChannel{}) }()

	// Then bob is not held up by it
	select {
	case err := <-connected:
		req.NoError(err)
	case <-time.After(waitFor):
		req.FailNow("Connect blocked behind a pending close")
	}
	req.Equal(1, broker.Count())

	// And the close failure is swallowed
	close(release)
	select {
	case <-disconnected:
	case <-time.After(waitFor):
		req.FailNow("Disconnect did not return")
	}
	_, ok := broker.CounterpartOf("alice")
	req.False(ok)
}

func TestBroker_Concurrent_Senders_Keep_Per_Sender_Order(t *testing.T) {
	req := require.New(t)
	broker := newTestBroker(t, Options{})
	broker.Start(context.Background())

	const (
		rooms    = 4
		messages = 50
	)

	// Given several rooms where both members write at the same time,
	// so every participant receives from two producers: itself and its counterpart
	channels := make(map[domain.Identity]*recordingChannel)
	var senders []domain.Identity
	for i := 0; i < rooms; i++ {
		first := domain.Identity(fmt.Sprintf("first-%d", i))
		second := domain.Identity(fmt.Sprintf("second-%d", i))
		channels[first] = connect(t, broker, first)
		channels[second] = connect(t, broker, second)
		req.NoError(broker.RequestPairing(first, second))
		senders = append(senders, first, second)
	}

	// When every sender pushes its tagged messages concurrently
	var wg sync.WaitGroup
	errs := make(chan error, len(senders)*messages)
	for _, sender := range senders {
		wg.Add(1)
		go func(sender domain.Identity) {
			defer wg.Done()
			for k := 0; k < messages; k++ {
				if err := broker.SendChatMessage(sender, fmt.Sprintf("%s-%d", sender, k)); err != nil {
					errs <- err
				}
			}
		}(sender)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	// Then each participant got everything
	req.Eventually(func() bool {
		for _, channel := range channels {
			if len(channel.ofKind(domain.KindChatMessage)) != messages || len(channel.ofKind(domain.KindOwnMessage)) != messages {
				return false
			}
		}
		return true
	}, 5*waitFor, tick)

	// And each producer's messages arrived in the order they were sent
	for identity, channel := range channels {
		bySender := make(map[domain.Identity][]string)
		for _, payload := range channel.Received() {
			switch m := payload.(type) {
			case domain.ChatMessage:
				bySender[m.Sender] = append(bySender[m.Sender], m.Text)
			case domain.OwnMessage:
				bySender[m.Sender] = append(bySender[m.Sender], m.Text)
			}
		}
		req.Len(bySender, 2, "%s", identity)
		for sender, texts := range bySender {
			for k, text := range texts {
				req.Equal(fmt.Sprintf("%s-%d", sender, k), text, "%s received from %s", identity, sender)
			}
		}
	}
}

func TestBroker_SendChatMessage_Detects_Language_Once(t *testing.T) {
	req := require.New(t)
	var calls atomic.Int32
	broker := newTestBroker(t, Options{Language: func(text string) string {
		calls.Add(1)
		return "fr"
	}})
	broker.Start(context.Background())
	alice := connect(t, broker, "alice")
	bob := connect(t, broker, "bob")
	req.NoError(broker.RequestPairing("alice", "bob"))

	// When alice sends one message
	req.NoError(broker.SendChatMessage("alice", "bonjour"))

	// Then both copies carry the same tag from a single detection
	req.Eventually(func() bool {
		return len(alice.ofKind(domain.KindOwnMessage)) == 1 && len(bob.ofKind(domain.KindChatMessage)) == 1
	}, waitFor, tick)
	echo := alice.ofKind(domain.KindOwnMessage)[0].(domain.OwnMessage)
	forward := bob.ofKind(domain.KindChatMessage)[0].(domain.ChatMessage)
	req.Equal("fr", echo.Lang)
	req.Equal("fr", forward.Lang)
	req.Equal(int32(1), calls.Load())
}
