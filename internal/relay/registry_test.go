package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mentorhive/relay/internal/types"
)

func TestRegistryJoinIsIdempotent(t *testing.T) {
	g, _, _ := newTestGateway(t)
	r := NewRegistry()
	c := newTestClient(g, types.User{Id: "u1"})

	assert.True(t, r.Join(ProjectRoom("p1"), c), "first join should create the room")
	assert.False(t, r.Join(ProjectRoom("p1"), c), "repeat join should not create the room again")
	assert.Len(t, r.MembersOf(ProjectRoom("p1")), 1)
}

func TestRegistryLeave(t *testing.T) {
	g, _, _ := newTestGateway(t)
	r := NewRegistry()
	c1 := newTestClient(g, types.User{Id: "u1"})
	c2 := newTestClient(g, types.User{Id: "u2"})

	r.Join(ProjectRoom("p1"), c1)
	r.Join(ProjectRoom("p1"), c2)

	assert.False(t, r.Leave(ProjectRoom("p1"), c1), "room still has a member")
	assert.True(t, r.Leave(ProjectRoom("p1"), c2), "room should be dropped when last member leaves")
	assert.False(t, r.Leave(ProjectRoom("p1"), c2), "leaving a room twice is a no-op")
	assert.Empty(t, r.MembersOf(ProjectRoom("p1")))
}

func TestRegistryLeaveAll(t *testing.T) {
	g, _, _ := newTestGateway(t)
	r := NewRegistry()
	c1 := newTestClient(g, types.User{Id: "u1"})
	c2 := newTestClient(g, types.User{Id: "u2"})

	r.Join(UserRoom("u1"), c1)
	r.Join(ProjectRoom("p1"), c1)
	r.Join(ProjectRoom("p1"), c2)

	emptied := r.LeaveAll(c1)
	assert.ElementsMatch(t, []string{UserRoom("u1")}, emptied,
		"only the inbox room should be emptied, p1 still has c2")
	assert.Len(t, r.MembersOf(ProjectRoom("p1")), 1)
	assert.Empty(t, r.LeaveAll(c1), "second LeaveAll finds nothing")
}

func TestRegistryBroadcastSkipsSender(t *testing.T) {
	g, _, _ := newTestGateway(t)
	r := NewRegistry()
	sender := newTestClient(g, types.User{Id: "u1"})
	other := newTestClient(g, types.User{Id: "u2"})

	r.Join(ProjectRoom("p1"), sender)
	r.Join(ProjectRoom("p1"), other)

	r.Broadcast(ProjectRoom("p1"), newServerEvent(EvNewProjectMessage, nil), sender)

	ev := recvEvent(t, other)
	assert.Equal(t, EvNewProjectMessage, ev.Event)
	assertNoEvent(t, sender)
}
