package store

import (
	"context"
	"time"
)

// MessageKind distinguishes squad chat from direct messages.
type MessageKind string

const (
	KindProject MessageKind = "project"
	KindPrivate MessageKind = "private"
)

// Message is the stored representation of a chat message. Id and CreatedAt
// are assigned by the store on save; callers leave them zero.
type Message struct {
	Id           string      `json:"id"`
	Kind         MessageKind `json:"kind"`
	ProjectId    string      `json:"project_id,omitempty"`
	SenderId     string      `json:"sender_id"`
	SenderName   string      `json:"sender_name,omitempty"`
	SenderAvatar string      `json:"sender_avatar,omitempty"`
	ReceiverId   string      `json:"receiver_id,omitempty"`
	Content      string      `json:"content"`
	MessageType  string      `json:"message_type,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Profile is the display info resolved for fan-out enrichment.
type Profile struct {
	Id        string `json:"id"`
	Name      string `json:"name"`
	AvatarUrl string `json:"avatar_url,omitempty"`
}

// MessageStore persists chat history for the platform. The relay treats it
// as a synchronous collaborator: fan-out never happens before SaveMessage
// returns.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg Message) (Message, error)
	ProjectMessages(ctx context.Context, projectId string, limit int64) ([]Message, error)
	Conversation(ctx context.Context, userA, userB string, limit int64) ([]Message, error)
	Ping(ctx context.Context) error
}

// ProfileDirectory resolves a user id to display name and photo.
type ProfileDirectory interface {
	Profile(ctx context.Context, userId string) (Profile, error)
}
