//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/observability"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging during supervision.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Channel is the outbound handle of one connected participant.
// Send pushes one payload; the transport decides how to render it.
type Channel interface {
	Send(ctx context.Context, payload domain.Payload) error
	Close() error
	IsOpen() bool
}

type IRegistry interface {
	Connect(identity domain.Identity, channel Channel) error
	Disconnect(identity domain.Identity) (Channel, bool)
	Lookup(identity domain.Identity) (Channel, bool)
	Count() int
	Identities() []domain.Identity
}

type IDeliveryQueue interface {
	Push(envelopes ...domain.Envelope)
	Pop(ctx context.Context) (domain.Envelope, error)
	Len() int
	Discard() int
}

type IBroker interface {
	Connect(identity domain.Identity, channel Channel) error
	Disconnect(identity domain.Identity)
	RequestPairing(identity, counterpart domain.Identity) error
	SendChatMessage(sender domain.Identity, text string) error
	Notify(identity domain.Identity, payload domain.Payload)
	CounterpartOf(identity domain.Identity) (domain.Identity, bool)
	ConnectedUsers() []domain.Identity
	Stats() observability.Stats
}
