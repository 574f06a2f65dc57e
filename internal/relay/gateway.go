package relay

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mentorhive/relay/internal/stats"
	"github.com/mentorhive/relay/internal/store"
)

const (
	statActiveConnections = "ActiveConnections"
	statActiveRooms       = "ActiveRooms"
	statActiveCalls       = "ActiveCalls"
	statMessagesRelayed   = "MessagesRelayed"

	callSweepInterval = 15 * time.Second
)

type clientEvent struct {
	client  *Client
	payload inboundPayload
}

// Gateway is the relay's event loop. All client events are funneled
// through a single goroutine, so events from one connection are processed
// in arrival order and handlers run without racing each other.
type Gateway struct {
	log       *log.Logger
	store     store.MessageStore
	directory store.ProfileDirectory
	stats     stats.StatsProvider

	registry *Registry
	presence *Presence
	relay    *MessageRelay
	calls    *CallTable

	clients     map[*Client]struct{}
	clientsLock sync.RWMutex

	RegisterChan   chan *Client
	deRegisterChan chan *Client
	eventChan      chan clientEvent
	stop           chan struct{}
	stopOnce       sync.Once
	done           chan struct{}
}

func NewGateway(logger *log.Logger, st store.MessageStore, dir store.ProfileDirectory, su stats.StatsProvider, ringTimeout time.Duration) (*Gateway, error) {
	g := &Gateway{
		log:            logger,
		store:          st,
		directory:      dir,
		stats:          su,
		registry:       NewRegistry(),
		clients:        make(map[*Client]struct{}),
		RegisterChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		eventChan:      make(chan clientEvent, 256),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
	g.presence = newPresence(g)
	g.relay = newMessageRelay(g)
	g.calls = newCallTable(g, ringTimeout)

	su.RegisterMetric(statActiveConnections)
	su.RegisterMetric(statActiveRooms)
	su.RegisterMetric(statActiveCalls)
	su.RegisterMetric(statMessagesRelayed)

	return g, nil
}

func (g *Gateway) Run() {
	g.log.Println("gateway started")
	sweep := time.NewTicker(callSweepInterval)
	defer sweep.Stop()

	for {
		select {
		case c := <-g.RegisterChan:
			g.addClient(c)
		case c := <-g.deRegisterChan:
			g.removeClient(c)
		case ev := <-g.eventChan:
			g.dispatch(ev.client, ev.payload)
		case now := <-sweep.C:
			g.calls.ExpirePending(now)
		case <-g.stop:
			g.log.Println("gateway stopping")
			g.clientsLock.Lock()
			for c := range g.clients {
				c.stopClient()
			}
			g.clientsLock.Unlock()
			close(g.done)
			return
		}
	}
}

// forwardEvent hands a decoded frame to the event loop. When the loop is
// saturated the frame is dropped and the sender told, rather than
// blocking the connection's read pump.
func (g *Gateway) forwardEvent(c *Client, payload inboundPayload) {
	select {
	case g.eventChan <- clientEvent{client: c, payload: payload}:
	default:
		g.log.Printf("event queue full, dropping %s from client %s", payload.inboundEvent(), c.id)
		c.queueEvent(errEvent("service unavailable"))
	}
}

func (g *Gateway) addClient(c *Client) {
	g.clientsLock.Lock()
	g.clients[c] = struct{}{}
	g.clientsLock.Unlock()

	g.stats.Incr(statActiveConnections)
	g.log.Printf("client %s connected (user %s)", c.id, c.user.Id)
}

// removeClient is idempotent: the read pump and a shutdown can both try
// to deregister the same client.
func (g *Gateway) removeClient(c *Client) {
	g.clientsLock.Lock()
	if _, ok := g.clients[c]; !ok {
		g.clientsLock.Unlock()
		return
	}
	delete(g.clients, c)
	g.clientsLock.Unlock()

	emptied := g.registry.LeaveAll(c)
	for range emptied {
		g.stats.Decr(statActiveRooms)
	}

	// last-handle semantics: a user with another tab still open stays
	// online and keeps their calls.
	userId := c.user.Id
	if userId != "" && len(g.registry.MembersOf(UserRoom(userId))) == 0 {
		g.presence.ClearTyping(userId)
		g.calls.DropUser(userId)
		g.presence.MarkOffline(userId)
	}

	g.stats.Decr(statActiveConnections)
	c.stopClient()
	g.log.Printf("client %s disconnected", c.id)
}

func (g *Gateway) dispatch(c *Client, payload inboundPayload) {
	switch p := payload.(type) {
	case *JoinUser:
		g.handleJoinUser(c, p)
	case *JoinProject:
		g.joinRoom(c, ProjectRoom(p.ProjectId))
	case *LeaveProject:
		g.leaveRoom(c, ProjectRoom(p.ProjectId))
	case *SendProjectMessage:
		g.relay.SendProject(c, p)
	case *SendPrivateMessage:
		g.relay.SendPrivate(c, p)
	case *CallUser:
		g.calls.Invite(c, p)
	case *AcceptCall:
		g.calls.Accept(c, p)
	case *RejectCall:
		g.calls.Reject(c, p)
	case *IceCandidate:
		g.calls.RelayCandidate(c, p)
	case *EndCall:
		g.calls.End(c, p)
	case *StartScreenShare:
		g.calls.ScreenShare(c, p.RoomId, p.To, true)
	case *StopScreenShare:
		g.calls.ScreenShare(c, p.RoomId, p.To, false)
	case *SendCallMessage:
		g.calls.RelayChat(c, p)
	case *UserActive:
		g.presence.MarkOnline(p.UserId, c)
	case *UserTyping:
		g.handleTyping(c, p.RoomId, p.ReceiverId, p.UserId, p.UserName, true)
	case *UserStopTyping:
		g.handleTyping(c, p.RoomId, p.ReceiverId, p.UserId, p.UserName, false)
	case *JoinCallRoom:
		g.handleJoinCallRoom(c, p)
	case *LeaveCallRoom:
		g.handleLeaveCallRoom(c, p)
	default:
		g.log.Printf("unhandled event %s from client %s", payload.inboundEvent(), c.id)
	}
}

// handleJoinUser binds the connection to its personal inbox room and
// announces the user online. The id must match the authenticated
// identity of the connection.
func (g *Gateway) handleJoinUser(c *Client, p *JoinUser) {
	if p.UserId != c.user.Id {
		g.log.Printf("client %s tried to join inbox of %s", c.id, p.UserId)
		c.queueEvent(errEvent("user id does not match this connection"))
		return
	}

	g.joinRoom(c, UserRoom(p.UserId))
	g.presence.MarkOnline(p.UserId, c)
}

func (g *Gateway) joinRoom(c *Client, room string) {
	if g.registry.Join(room, c) {
		g.stats.Incr(statActiveRooms)
	}
}

func (g *Gateway) leaveRoom(c *Client, room string) {
	if g.registry.Leave(room, c) {
		g.stats.Decr(statActiveRooms)
	}
}

func (g *Gateway) handleJoinCallRoom(c *Client, p *JoinCallRoom) {
	g.joinRoom(c, CallRoom(p.RoomId))
	g.registry.Broadcast(CallRoom(p.RoomId), newServerEvent(EvUserJoined, RoomPresenceEvent{
		RoomId:   p.RoomId,
		UserId:   c.user.Id,
		UserName: c.user.Username,
	}), c)
}

func (g *Gateway) handleLeaveCallRoom(c *Client, p *LeaveCallRoom) {
	g.leaveRoom(c, CallRoom(p.RoomId))
	g.registry.Broadcast(CallRoom(p.RoomId), newServerEvent(EvUserLeft, RoomPresenceEvent{
		RoomId:   p.RoomId,
		UserId:   c.user.Id,
		UserName: c.user.Username,
	}), nil)
}

// handleTyping resolves the indicator's scope: a room id means squad
// chat, otherwise it goes to the recipient's inbox.
func (g *Gateway) handleTyping(c *Client, roomId, receiverId, userId, userName string, typing bool) {
	var room string
	switch {
	case roomId != "":
		room = ProjectRoom(roomId)
	case receiverId != "":
		room = UserRoom(receiverId)
	default:
		g.log.Printf("typing event from client %s without a scope", c.id)
		return
	}

	g.presence.SetTyping(room, c, TypingIndicator{
		RoomId:   roomId,
		UserId:   userId,
		UserName: userName,
		Typing:   typing,
	})
}

// broadcastAll queues ev to every connected client except skip.
func (g *Gateway) broadcastAll(ev *ServerEvent, skip *Client) {
	g.clientsLock.RLock()
	defer g.clientsLock.RUnlock()
	for c := range g.clients {
		if c == skip {
			continue
		}
		c.queueEvent(ev)
	}
}

// Shutdown stops the event loop and closes every client connection. Safe
// to call more than once.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.stopOnce.Do(func() {
		close(g.stop)
	})
	select {
	case <-g.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
