package runtime

import (
	"chat-relay/domain"
	"context"
	"sync"
)

// DeliveryQueue is an unbounded FIFO of envelopes.
// Any goroutine may Push; a single consumer is expected to Pop.
type DeliveryQueue struct {
	mu      sync.Mutex
	items   []domain.Envelope
	pending chan struct{}
}

func NewDeliveryQueue() *DeliveryQueue {
	return &DeliveryQueue{pending: make(chan struct{}, 1)}
}

// Push appends envelopes in order. It never blocks.
func (q *DeliveryQueue) Push(envelopes ...domain.Envelope) {
	if len(envelopes) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, envelopes...)
	q.mu.Unlock()

	select {
	case q.pending <- struct{}{}:
	default:
	}
}

// Pop removes the oldest envelope, waiting until one exists or ctx is done.
func (q *DeliveryQueue) Pop(ctx context.Context) (domain.Envelope, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			envelope := q.items[0]
			q.items[0] = domain.Envelope{}
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				// Keep the signal armed for the next Pop
				select {
				case q.pending <- struct{}{}:
				default:
				}
			}
			return envelope, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return domain.Envelope{}, ctx.Err()
		case <-q.pending:
		}
	}
}

func (q *DeliveryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Discard drops every pending envelope and returns how many were dropped.
func (q *DeliveryQueue) Discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}
