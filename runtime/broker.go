// Package runtime owns the relay state: who is connected, who is paired with
// whom, and the queue of envelopes waiting to be delivered.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/runtime/workers"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
)

type Options struct {
	// StrictRecipient sends a NoRecipient payload back to an unpaired sender
	// instead of dropping the message silently.
	StrictRecipient bool
	SendTimeout     time.Duration
	// ReportInterval logs a stats snapshot periodically. Zero disables it.
	ReportInterval time.Duration
	// Language tags chat messages with their detected language. Nil leaves
	// messages untagged.
	Language func(text string) string
}

// Broker is the single writer of the Registry and the PairingTable.
// Every mutating call runs under one mutex, so a pairing's teardown-then-create
// is atomic with respect to concurrent calls, and envelopes are enqueued in
// the same order as the mutations that produced them.
type Broker struct {
	mu         sync.Mutex
	log        *slog.Logger
	registry   *Registry
	pairing    *PairingTable
	queue      *DeliveryQueue
	supervisor *workers.Supervisor
	monitoring *observability.Monitoring
	options    Options
	done       chan struct{}
	cancel     context.CancelFunc
	stopped    bool
}

func NewBroker(log *slog.Logger, supervisor *workers.Supervisor, registry *Registry,
	queue *DeliveryQueue, monitoring *observability.Monitoring, options Options) *Broker {
	supervisor.OnRestart(func(string) { monitoring.IncrRestarts() })
	return &Broker{
		log:        log,
		registry:   registry,
		pairing:    NewPairingTable(),
		queue:      queue,
		supervisor: supervisor,
		monitoring: monitoring,
		options:    options,
	}
}

// Start launches the supervised delivery worker and returns immediately.
func (b *Broker) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done != nil {
		return
	}
	b.done = make(chan struct{})
	ctx, b.cancel = context.WithCancel(ctx)

	b.supervisor.Add(workers.NewDeliveryWorker(b.log, b.queue, b.registry, b.monitoring, b.options.SendTimeout))
	if b.options.ReportInterval > 0 {
		b.supervisor.Add(workers.NewReporterWorker(b.log, b, b.options.ReportInterval))
	}
	done := b.done
	go func() {
		defer close(done)
		b.supervisor.Run(ctx)
	}()
	b.log.Info("Broker started", "strict_recipient", b.options.StrictRecipient)
}

// Done is closed once the delivery worker stopped for good.
func (b *Broker) Done() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

// Stop cancels the delivery worker and discards pending envelopes.
func (b *Broker) Stop() {
	b.mu.Lock()
	b.stopped = true
	done, cancel := b.done, b.cancel
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	b.supervisor.Stop()
	if done != nil {
		<-done
	}
	if n := b.queue.Discard(); n > 0 {
		b.log.Info("Pending envelopes discarded", "count", n)
	}
	b.log.Info("Broker stopped")
}

// Connect registers identity. On ErrNameTaken the caller must reject the
// incoming connection itself.
func (b *Broker) Connect(identity domain.Identity, channel contract.Channel) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return errors.ErrBrokerStopped
	}
	if err := b.registry.Connect(identity, channel); err != nil {
		return err
	}
	b.log.Info("User connected", "identity", identity)
	b.broadcastCount()
	return nil
}

// Disconnect forgets identity, tears down its room and notifies the abandoned
// counterpart. The channel is closed once the broker lock is released, so a
// slow peer never holds up other participants. Unknown identities are ignored.
func (b *Broker) Disconnect(identity domain.Identity) {
	channel, ok := b.unregister(identity)
	if !ok {
		return
	}
	if err := channel.Close(); err != nil {
		b.log.Debug("Closing channel failed", "identity", identity, "error", err)
	}
}

func (b *Broker) unregister(identity domain.Identity) (contract.Channel, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	channel, ok := b.registry.Disconnect(identity)
	if !ok {
		return nil, false
	}
	b.log.Info("User disconnected", "identity", identity)

	if room, ok := b.pairing.FindRoomFor(identity); ok {
		b.pairing.Teardown(room)
		b.notifyRoomKilled(room, identity)
	}
	b.broadcastCount()
	return channel, true
}

// RequestPairing pairs identity with counterpart, tearing down any room either
// of them was in. Both receive a RecipientChosen payload.
func (b *Broker) RequestPairing(identity, counterpart domain.Identity) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if identity == counterpart {
		return errors.ErrSelfPairing
	}
	if _, ok := b.registry.Lookup(counterpart); !ok {
		return errors.NotConnected(counterpart.String())
	}
	if _, ok := b.registry.Lookup(identity); !ok {
		return errors.NotConnected(identity.String())
	}

	for _, room := range b.pairing.Establish(identity, counterpart) {
		b.notifyRoomKilled(room, identity, counterpart)
	}
	b.log.Info("Room created", "first", identity, "second", counterpart)

	b.enqueue(
		domain.Envelope{Recipient: identity, Payload: domain.RecipientChosen{Counterpart: counterpart}},
		domain.Envelope{Recipient: counterpart, Payload: domain.RecipientChosen{Counterpart: identity}},
	)
	return nil
}

// SendChatMessage echoes text to the sender and forwards it to the sender's
// counterpart. Without a counterpart it returns ErrNoCounterpart; in strict
// mode the sender is also told there is no recipient.
func (b *Broker) SendChatMessage(sender domain.Identity, text string) error {
	var lang string
	if b.options.Language != nil {
		lang = b.options.Language(text)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	recipient, ok := b.pairing.CounterpartOf(sender)
	if !ok {
		if b.options.StrictRecipient {
			b.enqueue(domain.Envelope{Recipient: sender, Payload: domain.NoRecipient{Text: text}})
		}
		return errors.ErrNoCounterpart
	}

	message := domain.NewChatMessage(sender, text)
	message.Lang = lang
	b.enqueue(
		domain.Envelope{Recipient: sender, Payload: domain.OwnMessage{ChatMessage: message}},
		domain.Envelope{Recipient: recipient, Payload: message},
	)
	return nil
}

// Notify enqueues an arbitrary payload for identity, such as an error reply.
func (b *Broker) Notify(identity domain.Identity, payload domain.Payload) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enqueue(domain.Envelope{Recipient: identity, Payload: payload})
}

func (b *Broker) CounterpartOf(identity domain.Identity) (domain.Identity, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pairing.CounterpartOf(identity)
}

func (b *Broker) Count() int {
	return b.registry.Count()
}

func (b *Broker) ConnectedUsers() []domain.Identity {
	return b.registry.Identities()
}

func (b *Broker) Rooms() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pairing.Len()
}

func (b *Broker) Pending() int {
	return b.queue.Len()
}

func (b *Broker) Stats() observability.Stats {
	return b.monitoring.Snapshot(observability.Stats{
		ConnectedUsers: b.Count(),
		ActiveRooms:    b.Rooms(),
		QueueDepth:     b.Pending(),
	})
}

// notifyRoomKilled tells every member of a torn down room that is still
// connected, except the ones that caused the teardown.
func (b *Broker) notifyRoomKilled(room domain.Room, causes ...domain.Identity) {
	for _, member := range room.Members() {
		if lo.Contains(causes, member) {
			continue
		}
		if _, ok := b.registry.Lookup(member); !ok {
			continue
		}
		b.log.Debug("Room killed", "identity", member)
		b.enqueue(domain.Envelope{Recipient: member, Payload: domain.RoomKilled{
			Reason:         domain.ReasonOtherUserLeft,
			ConnectedUsers: b.registry.Identities(),
		}})
	}
}

func (b *Broker) broadcastCount() {
	identities := b.registry.Identities()
	envelopes := make([]domain.Envelope, 0, len(identities))
	for _, identity := range identities {
		envelopes = append(envelopes, domain.Envelope{
			Recipient: identity,
			Payload:   domain.ConnectedUsers{Count: len(identities)},
		})
	}
	b.enqueue(envelopes...)
}

func (b *Broker) enqueue(envelopes ...domain.Envelope) {
	b.queue.Push(envelopes...)
	b.monitoring.IncrEnqueued(len(envelopes))
}
