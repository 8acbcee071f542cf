package runtime

import (
	"chat-relay/domain"

	"github.com/samber/lo"
)

// PairingTable holds the active 1:1 rooms.
// It is not safe for concurrent use: the Broker owns it and serializes access.
type PairingTable struct {
	rooms []domain.Room
}

func NewPairingTable() *PairingTable {
	return &PairingTable{}
}

// FindRoomFor scans the rooms for identity. Room count is at most half the
// connection count, so no index is kept.
func (p *PairingTable) FindRoomFor(identity domain.Identity) (domain.Room, bool) {
	return lo.Find(p.rooms, func(room domain.Room) bool {
		return room.Has(identity)
	})
}

func (p *PairingTable) CounterpartOf(identity domain.Identity) (domain.Identity, bool) {
	room, ok := p.FindRoomFor(identity)
	if !ok {
		return "", false
	}
	return room.Other(identity)
}

// Establish pairs a with b. Any room a belongs to is torn down first, then any
// room b belongs to, and only then is (a,b) created. The torn down rooms are
// returned in that order so the caller can notify the abandoned members.
func (p *PairingTable) Establish(a, b domain.Identity) []domain.Room {
	var torn []domain.Room
	for _, identity := range []domain.Identity{a, b} {
		if room, ok := p.FindRoomFor(identity); ok {
			p.Teardown(room)
			torn = append(torn, room)
		}
	}
	p.rooms = append(p.rooms, domain.NewRoom(a, b))
	return torn
}

// Teardown removes room. It reports whether the room was present.
func (p *PairingTable) Teardown(room domain.Room) bool {
	before := len(p.rooms)
	p.rooms = lo.Reject(p.rooms, func(r domain.Room, _ int) bool {
		return r.Equal(room)
	})
	return len(p.rooms) != before
}

func (p *PairingTable) Len() int {
	return len(p.rooms)
}

// Rooms returns a copy of the active rooms.
func (p *PairingTable) Rooms() []domain.Room {
	return append([]domain.Room(nil), p.rooms...)
}
