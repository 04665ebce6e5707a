package core

// Index maps conversation identifiers to the set of subscribed connection
// identifiers, with set semantics: join and leave are idempotent. Rooms are
// created lazily on first join and dropped when the last member leaves.
// The index holds identifiers only, never connection state; the relay actor
// is its only caller.
type Index struct {
	rooms  map[string]map[string]struct{}
	byConn map[string]map[string]struct{}
}

// NewIndex constructs an empty membership index.
func NewIndex() *Index {
	return &Index{
		rooms:  make(map[string]map[string]struct{}),
		byConn: make(map[string]map[string]struct{}),
	}
}

// Join adds the connection to the room's member set. Returns true if newly
// added, false if it was already a member.
func (x *Index) Join(room, connID string) bool {
	members, ok := x.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		x.rooms[room] = members
	}
	if _, exists := members[connID]; exists {
		return false
	}
	members[connID] = struct{}{}

	joined, ok := x.byConn[connID]
	if !ok {
		joined = make(map[string]struct{})
		x.byConn[connID] = joined
	}
	joined[room] = struct{}{}
	return true
}

// Leave removes the connection from the room. Leaving a room one is not a
// member of, or an unknown room, is a no-op. Returns true if removed.
func (x *Index) Leave(room, connID string) bool {
	members, ok := x.rooms[room]
	if !ok {
		return false
	}
	if _, exists := members[connID]; !exists {
		return false
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(x.rooms, room)
	}
	if joined, ok := x.byConn[connID]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(x.byConn, connID)
		}
	}
	return true
}

// LeaveAll removes the connection from every room it belongs to and
// returns the rooms it left. Invoked on disconnect.
func (x *Index) LeaveAll(connID string) []string {
	joined, ok := x.byConn[connID]
	if !ok {
		return nil
	}
	left := make([]string, 0, len(joined))
	for room := range joined {
		left = append(left, room)
		if members, ok := x.rooms[room]; ok {
			delete(members, connID)
			if len(members) == 0 {
				delete(x.rooms, room)
			}
		}
	}
	delete(x.byConn, connID)
	return left
}

// MembersExcluding returns a snapshot of the room's members without the
// given connection. Unknown rooms yield an empty slice, never an error.
func (x *Index) MembersExcluding(room, connID string) []string {
	members := x.rooms[room]
	out := make([]string, 0, len(members))
	for id := range members {
		if id == connID {
			continue
		}
		out = append(out, id)
	}
	return out
}

// MembersIncluding returns a snapshot of the full member set of the room.
func (x *Index) MembersIncluding(room string) []string {
	members := x.rooms[room]
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// Rooms returns the number of non-empty rooms.
func (x *Index) Rooms() int {
	return len(x.rooms)
}
