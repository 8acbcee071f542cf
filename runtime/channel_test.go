package runtime

import (
	"chat-relay/domain"
	"context"
	"sync"
)

// recordingChannel keeps every payload it is asked to send.
type recordingChannel struct {
	mu       sync.Mutex
	payloads []domain.Payload
	closed   bool
	closes   int
}

func (c *recordingChannel) Send(_ context.Context, payload domain.Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *recordingChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closes++
	return nil
}

func (c *recordingChannel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *recordingChannel) Received() []domain.Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Payload(nil), c.payloads...)
}

// ofKind filters the received payloads on kind.
func (c *recordingChannel) ofKind(kind domain.PayloadKind) []domain.Payload {
	var res []domain.Payload
	for _, p := range c.Received() {
		if p.Kind() == kind {
			res = append(res, p)
		}
	}
	return res
}

func (c *recordingChannel) last() domain.Payload {
	received := c.Received()
	if len(received) == 0 {
		return nil
	}
	return received[len(received)-1]
}
