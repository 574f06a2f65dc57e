package relay

import (
	"context"
	"strings"

	"github.com/mentorhive/relay/internal/store"
)

// MessageRelay validates, persists and fans out chat messages. Fan-out
// never precedes a successful save; a message the store rejected reaches
// no one but the sender, as an error.
type MessageRelay struct {
	g *Gateway
}

func newMessageRelay(g *Gateway) *MessageRelay {
	return &MessageRelay{g: g}
}

func (mr *MessageRelay) SendProject(c *Client, p *SendProjectMessage) {
	if strings.TrimSpace(p.Content) == "" {
		c.queueEvent(errEvent("message content is empty"))
		return
	}

	msg, ok := mr.persist(c, store.Message{
		Kind:        store.KindProject,
		ProjectId:   p.ProjectId,
		SenderId:    p.SenderId,
		Content:     p.Content,
		MessageType: p.MessageType,
	})
	if !ok {
		return
	}

	mr.g.registry.Broadcast(ProjectRoom(p.ProjectId), newServerEvent(EvNewProjectMessage, msg), c)
	mr.g.stats.Incr(statMessagesRelayed)
}

func (mr *MessageRelay) SendPrivate(c *Client, p *SendPrivateMessage) {
	if strings.TrimSpace(p.Content) == "" {
		c.queueEvent(errEvent("message content is empty"))
		return
	}

	msg, ok := mr.persist(c, store.Message{
		Kind:        store.KindPrivate,
		SenderId:    p.SenderId,
		ReceiverId:  p.ReceiverId,
		Content:     p.Content,
		MessageType: p.MessageType,
	})
	if !ok {
		return
	}

	ev := newServerEvent(EvNewPrivateMessage, msg)
	mr.g.registry.Broadcast(UserRoom(p.ReceiverId), ev, c)
	if p.SenderId != p.ReceiverId {
		// the sender's other tabs see the message too
		mr.g.registry.Broadcast(UserRoom(p.SenderId), ev, c)
	}
	mr.g.stats.Incr(statMessagesRelayed)
}

// persist enriches msg with the sender's profile and saves it. Profile
// lookup failures degrade to an unenriched message; save failures abort
// the send.
func (mr *MessageRelay) persist(c *Client, msg store.Message) (store.Message, bool) {
	ctx := context.Background()

	profile, err := mr.g.directory.Profile(ctx, msg.SenderId)
	if err != nil {
		mr.g.log.Printf("profile lookup for %s failed: %v", msg.SenderId, err)
	} else {
		msg.SenderName = profile.Name
		msg.SenderAvatar = profile.AvatarUrl
	}

	saved, err := mr.g.store.SaveMessage(ctx, msg)
	if err != nil {
		mr.g.log.Printf("save message from %s failed: %v", msg.SenderId, err)
		c.queueEvent(errEvent("failed to save message"))
		return store.Message{}, false
	}
	return saved, true
}
