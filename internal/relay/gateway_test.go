package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mentorhive/relay/internal/types"
)

func TestGatewayRegisterAndDeregister(t *testing.T) {
	g, _, _ := newTestGateway(t)
	go g.Run()
	defer g.Shutdown(context.Background())

	c := NewClient(nil, g, g.log, types.User{Id: "u1"})
	g.RegisterChan <- c
	g.forwardEvent(c, &JoinUser{UserId: "u1"})

	assert.Eventually(t, func() bool {
		return len(g.registry.MembersOf(UserRoom("u1"))) == 1
	}, time.Second, 10*time.Millisecond, "expected client to land in its inbox room")

	g.deRegisterChan <- c

	assert.Eventually(t, func() bool {
		return len(g.registry.MembersOf(UserRoom("u1"))) == 0
	}, time.Second, 10*time.Millisecond, "expected disconnect to leave all rooms")

	select {
	case <-c.stop:
	case <-time.After(time.Second):
		t.Fatal("expected client to be stopped after deregistration")
	}
}

func TestJoinUserIdentityMismatch(t *testing.T) {
	g, _, _ := newTestGateway(t)
	c := newTestClient(g, types.User{Id: "u1"})

	g.handleJoinUser(c, &JoinUser{UserId: "u2"})

	ev := recvEvent(t, c)
	assert.Equal(t, EvError, ev.Event)
	assert.Equal(t, "user id does not match this connection", ev.Data.(ErrorEvent).Message)
	assert.Empty(t, g.registry.MembersOf(UserRoom("u2")))
}

func TestJoinUserAnnouncesOnline(t *testing.T) {
	g, _, _ := newTestGateway(t)
	c := newTestClient(g, types.User{Id: "u1"})
	other := newTestClient(g, types.User{Id: "u2"})

	g.handleJoinUser(c, &JoinUser{UserId: "u1"})

	assert.Len(t, g.registry.MembersOf(UserRoom("u1")), 1)
	ev := recvEvent(t, other)
	assert.Equal(t, EvUserOnline, ev.Event)
	assertNoEvent(t, c)
}

func TestLastHandleGoesOffline(t *testing.T) {
	g, _, _ := newTestGateway(t)
	tab1 := newTestClient(g, types.User{Id: "u1"})
	tab2 := newTestClient(g, types.User{Id: "u1"})
	observer := newTestClient(g, types.User{Id: "u2"})

	g.handleJoinUser(tab1, &JoinUser{UserId: "u1"})
	recvEvent(t, observer)
	g.handleJoinUser(tab2, &JoinUser{UserId: "u1"})
	recvEvent(t, observer)

	// first tab closing: the user is still here
	g.removeClient(tab1)
	assertNoEvent(t, observer)

	g.removeClient(tab2)
	ev := recvEvent(t, observer)
	assert.Equal(t, EvUserOffline, ev.Event)
	assert.Equal(t, PresenceEvent{UserId: "u1"}, ev.Data)
}

func TestDisconnectMidCallNotifiesPeer(t *testing.T) {
	g, _, _ := newTestGateway(t)
	caller := newTestClient(g, types.User{Id: "u1"})
	callee := newTestClient(g, types.User{Id: "u2"})

	g.handleJoinUser(caller, &JoinUser{UserId: "u1"})
	recvEvent(t, callee)
	g.handleJoinUser(callee, &JoinUser{UserId: "u2"})
	recvEvent(t, caller)

	g.calls.Invite(caller, &CallUser{To: "u2", CallerId: "u1", RoomId: "r1"})
	recvEvent(t, callee)
	g.calls.Accept(callee, &AcceptCall{To: "u1"})
	recvEvent(t, caller)

	g.removeClient(caller)

	ev := recvEvent(t, callee)
	assert.Equal(t, EvCallEnded, ev.Event)
	term := ev.Data.(CallTerminated)
	assert.Equal(t, "u1", term.From)
	assert.Equal(t, "peer-disconnected", term.Reason)

	ev = recvEvent(t, callee)
	assert.Equal(t, EvUserOffline, ev.Event)
}

func TestCallRoomPresence(t *testing.T) {
	g, _, _ := newTestGateway(t)
	first := newTestClient(g, types.User{Id: "u1", Username: "ada"})
	second := newTestClient(g, types.User{Id: "u2", Username: "bob"})

	g.handleJoinCallRoom(first, &JoinCallRoom{RoomId: "r1"})
	assertNoEvent(t, first)

	g.handleJoinCallRoom(second, &JoinCallRoom{RoomId: "r1"})
	ev := recvEvent(t, first)
	assert.Equal(t, EvUserJoined, ev.Event)
	assert.Equal(t, RoomPresenceEvent{RoomId: "r1", UserId: "u2", UserName: "bob"}, ev.Data)
	assertNoEvent(t, second)

	g.handleLeaveCallRoom(second, &LeaveCallRoom{RoomId: "r1"})
	ev = recvEvent(t, first)
	assert.Equal(t, EvUserLeft, ev.Event)
	assert.Len(t, g.registry.MembersOf(CallRoom("r1")), 1)
}

func TestGatewayShutdown(t *testing.T) {
	g, _, _ := newTestGateway(t)
	c := newTestClient(g, types.User{Id: "u1"})
	go g.Run()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, g.Shutdown(ctx))

	select {
	case <-c.stop:
	case <-time.After(time.Second):
		t.Fatal("expected shutdown to stop connected clients")
	}

	// shutdown is idempotent
	assert.NoError(t, g.Shutdown(ctx))
}
