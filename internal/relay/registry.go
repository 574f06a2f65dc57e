package relay

import "sync"

// Room name prefixes. A room is just a string key; the prefix gives it a
// type without a second data structure.
const (
	userRoomPrefix    = "user:"
	projectRoomPrefix = "project:"
	callRoomPrefix    = "call:"
)

func UserRoom(userId string) string       { return userRoomPrefix + userId }
func ProjectRoom(projectId string) string { return projectRoomPrefix + projectId }
func CallRoom(roomId string) string       { return callRoomPrefix + roomId }

// Registry tracks which clients are in which rooms. Both directions are
// indexed so that LeaveAll on disconnect is a straight lookup rather than
// a scan of every room.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Client]struct{}
	byClient map[*Client]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:    make(map[string]map[*Client]struct{}),
		byClient: make(map[*Client]map[string]struct{}),
	}
}

// Join adds c to room. Joining a room the client is already in is a
// no-op. Returns true when the room did not exist before this call.
func (r *Registry) Join(room string, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := false
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		r.rooms[room] = members
		created = true
	}
	members[c] = struct{}{}

	joined, ok := r.byClient[c]
	if !ok {
		joined = make(map[string]struct{})
		r.byClient[c] = joined
	}
	joined[room] = struct{}{}

	return created
}

// Leave removes c from room. Returns true when the room became empty and
// was dropped.
func (r *Registry) Leave(room string, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(room, c)
}

func (r *Registry) leaveLocked(room string, c *Client) bool {
	members, ok := r.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[c]; !ok {
		return false
	}

	delete(members, c)
	if joined, ok := r.byClient[c]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(r.byClient, c)
		}
	}

	if len(members) == 0 {
		delete(r.rooms, room)
		return true
	}
	return false
}

// LeaveAll removes c from every room it joined and returns the rooms that
// became empty as a result.
func (r *Registry) LeaveAll(c *Client) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var emptied []string
	for room := range r.byClient[c] {
		if r.leaveLocked(room, c) {
			emptied = append(emptied, room)
		}
	}
	return emptied
}

// MembersOf returns a snapshot of the clients in room.
func (r *Registry) MembersOf(room string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]*Client, 0, len(r.rooms[room]))
	for c := range r.rooms[room] {
		members = append(members, c)
	}
	return members
}

// Broadcast queues ev to every member of room except skip. A nil skip
// sends to everyone.
func (r *Registry) Broadcast(room string, ev *ServerEvent, skip *Client) {
	for _, c := range r.MembersOf(room) {
		if c == skip {
			continue
		}
		c.queueEvent(ev)
	}
}
