package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Registry maps each live identity to its outbound channel.
// Reads come from the delivery worker, writes only from the Broker.
type Registry struct {
	mu       sync.RWMutex
	log      *slog.Logger
	sessions map[domain.Identity]contract.Channel
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:      log,
		sessions: make(map[domain.Identity]contract.Channel),
	}
}

// Connect registers the channel under identity.
// A live duplicate is rejected, never overwritten.
func (r *Registry) Connect(identity domain.Identity, channel contract.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[identity]; ok {
		return errors.ErrNameTaken
	}
	r.sessions[identity] = channel
	return nil
}

// Disconnect forgets identity and hands its channel back to the caller, who
// closes it. The second call for the same identity returns false.
func (r *Registry) Disconnect(identity domain.Identity) (contract.Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	channel, ok := r.sessions[identity]
	if ok {
		delete(r.sessions, identity)
		r.log.Debug("Session removed", "identity", identity)
	}
	return channel, ok
}

func (r *Registry) Lookup(identity domain.Identity) (contract.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	channel, ok := r.sessions[identity]
	return channel, ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Identities returns the live identities sorted by name.
func (r *Registry) Identities() []domain.Identity {
	r.mu.RLock()
	identities := lo.Keys(r.sessions)
	r.mu.RUnlock()

	sort.Slice(identities, func(i, j int) bool { return identities[i] < identities[j] })
	return identities
}
