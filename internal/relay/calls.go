package relay

import (
	"sync"
	"time"

	"github.com/teris-io/shortid"
)

type CallState int

const (
	CallPending CallState = iota
	CallAccepted
	CallRejected
	CallEnded
)

func (s CallState) String() string {
	switch s {
	case CallPending:
		return "pending"
	case CallAccepted:
		return "accepted"
	case CallRejected:
		return "rejected"
	case CallEnded:
		return "ended"
	}
	return "unknown"
}

// CallSession is one call between two users. State moves pending →
// accepted|rejected, accepted → ended; anything else is an illegal
// transition and the triggering event is dropped.
type CallSession struct {
	Id        string
	Initiator string
	Receiver  string
	RoomId    string
	State     CallState
	Deadline  time.Time
}

func (s *CallSession) participant(userId string) bool {
	return s.Initiator == userId || s.Receiver == userId
}

func (s *CallSession) peerOf(userId string) string {
	if s.Initiator == userId {
		return s.Receiver
	}
	return s.Initiator
}

// CallTable owns every live call session, keyed by the unordered pair of
// participants so a second invite between the same two users cannot
// shadow the first.
type CallTable struct {
	g           *Gateway
	ringTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*CallSession
}

func newCallTable(g *Gateway, ringTimeout time.Duration) *CallTable {
	return &CallTable{
		g:           g,
		ringTimeout: ringTimeout,
		sessions:    make(map[string]*CallSession),
	}
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func (ct *CallTable) Invite(c *Client, p *CallUser) {
	if p.CallerId != c.user.Id {
		ct.g.log.Printf("dropping call-user from client %s: caller id %s is not %s", c.id, p.CallerId, c.user.Id)
		return
	}

	ct.mu.Lock()
	key := pairKey(p.CallerId, p.To)
	if existing, ok := ct.sessions[key]; ok {
		ct.mu.Unlock()
		ct.g.log.Printf("dropping call-user from %s to %s: session %s already %s",
			p.CallerId, p.To, existing.Id, existing.State)
		return
	}

	session := &CallSession{
		Id:        shortid.MustGenerate(),
		Initiator: p.CallerId,
		Receiver:  p.To,
		RoomId:    p.RoomId,
		State:     CallPending,
		Deadline:  Now().Add(ct.ringTimeout),
	}
	ct.sessions[key] = session
	ct.mu.Unlock()

	ct.g.stats.Incr(statActiveCalls)
	ct.g.registry.Broadcast(UserRoom(p.To), newServerEvent(EvIncomingCall, IncomingCall{
		From:       p.CallerId,
		CallerName: p.CallerName,
		Offer:      p.Offer,
		RoomId:     p.RoomId,
		CallId:     session.Id,
	}), nil)
}

func (ct *CallTable) Accept(c *Client, p *AcceptCall) {
	sender := c.user.Id

	ct.mu.Lock()
	session, ok := ct.sessions[pairKey(sender, p.To)]
	if !ok || session.State != CallPending || session.Receiver != sender {
		ct.mu.Unlock()
		ct.g.log.Printf("dropping call-accepted from %s: no pending call with %s", sender, p.To)
		return
	}
	session.State = CallAccepted
	session.Deadline = time.Time{}
	ct.mu.Unlock()

	ct.g.registry.Broadcast(UserRoom(p.To), newServerEvent(EvCallAccepted, CallAnswer{
		From:   sender,
		Answer: p.Answer,
	}), nil)
}

func (ct *CallTable) Reject(c *Client, p *RejectCall) {
	sender := c.user.Id

	ct.mu.Lock()
	key := pairKey(sender, p.To)
	session, ok := ct.sessions[key]
	if !ok || session.State != CallPending || session.Receiver != sender {
		ct.mu.Unlock()
		ct.g.log.Printf("dropping call-rejected from %s: no pending call with %s", sender, p.To)
		return
	}
	delete(ct.sessions, key)
	ct.mu.Unlock()

	ct.g.stats.Decr(statActiveCalls)
	ct.g.registry.Broadcast(UserRoom(p.To), newServerEvent(EvCallRejected, CallTerminated{
		From: sender,
	}), nil)
}

func (ct *CallTable) End(c *Client, p *EndCall) {
	sender := c.user.Id

	ct.mu.Lock()
	key := pairKey(sender, p.To)
	session, ok := ct.sessions[key]
	if !ok || session.State != CallAccepted || !session.participant(sender) {
		ct.mu.Unlock()
		ct.g.log.Printf("dropping end-call from %s: no active call with %s", sender, p.To)
		return
	}
	roomId := session.RoomId
	delete(ct.sessions, key)
	ct.mu.Unlock()

	ct.g.stats.Decr(statActiveCalls)
	ct.g.registry.Broadcast(UserRoom(p.To), newServerEvent(EvCallEnded, CallTerminated{
		From:   sender,
		RoomId: roomId,
	}), nil)
}

// session returns the live session between the two users, if any.
func (ct *CallTable) session(a, b string) (*CallSession, bool) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	s, ok := ct.sessions[pairKey(a, b)]
	return s, ok
}

// RelayCandidate forwards an ICE candidate between call participants.
// Candidates without a live session are stray and dropped.
func (ct *CallTable) RelayCandidate(c *Client, p *IceCandidate) {
	sender := c.user.Id
	session, ok := ct.session(sender, p.To)
	if !ok || !session.participant(sender) {
		ct.g.log.Printf("dropping ice-candidate from %s: no call with %s", sender, p.To)
		return
	}

	ct.g.registry.Broadcast(UserRoom(p.To), newServerEvent(EvIceCandidate, CandidateEvent{
		From:      sender,
		Candidate: p.Candidate,
	}), nil)
}

// ScreenShare relays a share start/stop to the call room. Like ICE
// candidates, it flows as long as a session between the two users is
// live, ringing included.
func (ct *CallTable) ScreenShare(c *Client, roomId, to string, start bool) {
	sender := c.user.Id
	if _, ok := ct.session(sender, to); !ok {
		ct.g.log.Printf("dropping screen-share from %s: no call with %s", sender, to)
		return
	}

	event := EvScreenShareStarted
	if !start {
		event = EvScreenShareStopped
	}
	ct.g.registry.Broadcast(CallRoom(roomId), newServerEvent(event, ScreenShareEvent{
		From:   sender,
		RoomId: roomId,
	}), c)
}

// RelayChat forwards an in-call chat line. Call chat is ephemeral and
// never persisted, and flows whenever a session is live.
func (ct *CallTable) RelayChat(c *Client, p *SendCallMessage) {
	sender := c.user.Id
	if _, ok := ct.session(sender, p.To); !ok {
		ct.g.log.Printf("dropping call-message from %s: no call with %s", sender, p.To)
		return
	}

	ct.g.registry.Broadcast(UserRoom(p.To), newServerEvent(EvCallMessage, CallChatEvent{
		From:       sender,
		SenderName: p.SenderName,
		Content:    p.Content,
	}), nil)
}

// DropUser tears down every session userId participates in, notifying
// the peers. Called when the user's last connection goes away.
func (ct *CallTable) DropUser(userId string) {
	ct.mu.Lock()
	var dropped []*CallSession
	for key, session := range ct.sessions {
		if session.participant(userId) {
			delete(ct.sessions, key)
			dropped = append(dropped, session)
		}
	}
	ct.mu.Unlock()

	for _, session := range dropped {
		ct.g.stats.Decr(statActiveCalls)
		peer := session.peerOf(userId)
		ct.g.registry.Broadcast(UserRoom(peer), newServerEvent(EvCallEnded, CallTerminated{
			From:   userId,
			RoomId: session.RoomId,
			Reason: "peer-disconnected",
		}), nil)
	}
}

// ExpirePending removes pending calls that rang past their deadline and
// tells both parties.
func (ct *CallTable) ExpirePending(now time.Time) {
	ct.mu.Lock()
	var expired []*CallSession
	for key, session := range ct.sessions {
		if session.State == CallPending && now.After(session.Deadline) {
			delete(ct.sessions, key)
			expired = append(expired, session)
		}
	}
	ct.mu.Unlock()

	for _, session := range expired {
		ct.g.stats.Decr(statActiveCalls)
		ct.g.log.Printf("call %s from %s to %s timed out", session.Id, session.Initiator, session.Receiver)
		ev := newServerEvent(EvCallEnded, CallTerminated{
			From:   session.Initiator,
			RoomId: session.RoomId,
			Reason: "ring-timeout",
		})
		ct.g.registry.Broadcast(UserRoom(session.Initiator), ev, nil)
		ct.g.registry.Broadcast(UserRoom(session.Receiver), ev, nil)
	}
}
