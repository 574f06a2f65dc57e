package relay

import (
	"strings"
	"sync"
)

// Presence tracks who is online and who is typing where. Online status is
// announced to every connected client; typing indicators stay scoped to
// the room or conversation they belong to.
type Presence struct {
	g *Gateway

	mu sync.Mutex
	// typing[userId][room] = display name, used to clear stale
	// indicators when a user's last connection drops.
	typing map[string]map[string]string
}

func newPresence(g *Gateway) *Presence {
	return &Presence{
		g:      g,
		typing: make(map[string]map[string]string),
	}
}

func (p *Presence) MarkOnline(userId string, skip *Client) {
	p.g.broadcastAll(newServerEvent(EvUserOnline, PresenceEvent{UserId: userId}), skip)
}

func (p *Presence) MarkOffline(userId string) {
	p.g.broadcastAll(newServerEvent(EvUserOffline, PresenceEvent{UserId: userId}), nil)
}

// SetTyping broadcasts the indicator to room and records it when typing
// is on, so ClearTyping can retract it later.
func (p *Presence) SetTyping(room string, skip *Client, ind TypingIndicator) {
	p.mu.Lock()
	if ind.Typing {
		rooms, ok := p.typing[ind.UserId]
		if !ok {
			rooms = make(map[string]string)
			p.typing[ind.UserId] = rooms
		}
		rooms[room] = ind.UserName
	} else {
		p.forgetLocked(ind.UserId, room)
	}
	p.mu.Unlock()

	p.g.registry.Broadcast(room, newServerEvent(EvTypingIndicator, ind), skip)
}

func (p *Presence) forgetLocked(userId, room string) {
	if rooms, ok := p.typing[userId]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(p.typing, userId)
		}
	}
}

// ClearTyping retracts every active typing indicator for userId. Called
// when the user's last connection goes away.
func (p *Presence) ClearTyping(userId string) {
	p.mu.Lock()
	rooms := p.typing[userId]
	delete(p.typing, userId)
	p.mu.Unlock()

	for room, name := range rooms {
		ind := TypingIndicator{
			RoomId:   typingScopeId(room),
			UserId:   userId,
			UserName: name,
			Typing:   false,
		}
		p.g.registry.Broadcast(room, newServerEvent(EvTypingIndicator, ind), nil)
	}
}

// typingScopeId maps an internal room key back to the id clients use in
// typing payloads. Direct conversations carry no room id; the recipient
// keys the indicator off the typist's user id.
func typingScopeId(room string) string {
	if strings.HasPrefix(room, userRoomPrefix) {
		return ""
	}
	return strings.TrimPrefix(room, projectRoomPrefix)
}
