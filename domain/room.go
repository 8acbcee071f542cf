package domain

// Room is an exclusive 1:1 pairing. Members are unordered and always distinct.
type Room struct {
	members [2]Identity
}

func NewRoom(a, b Identity) Room {
	return Room{members: [2]Identity{a, b}}
}

func (r Room) Members() [2]Identity {
	return r.members
}

func (r Room) Has(identity Identity) bool {
	return r.members[0] == identity || r.members[1] == identity
}

// Other returns the member that is not identity.
// The boolean is false when identity does not belong to the room.
func (r Room) Other(identity Identity) (Identity, bool) {
	switch identity {
	case r.members[0]:
		return r.members[1], true
	case r.members[1]:
		return r.members[0], true
	default:
		return "", false
	}
}

// Equal compares rooms regardless of member order.
func (r Room) Equal(other Room) bool {
	return (r.members[0] == other.members[0] && r.members[1] == other.members[1]) ||
		(r.members[0] == other.members[1] && r.members[1] == other.members[0])
}
