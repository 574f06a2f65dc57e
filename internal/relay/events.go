package relay

import (
	"encoding/json"
	"fmt"
	"time"
)

// Inbound event names. Every frame a client sends carries one of these.
const (
	evJoinUser           = "join-user"
	evJoinProject        = "join-project"
	evLeaveProject       = "leave-project"
	evSendProjectMessage = "send-project-message"
	evSendPrivateMessage = "send-private-message"
	evCallUser           = "call-user"
	evAcceptCall         = "call-accepted"
	evRejectCall         = "call-rejected"
	evIceCandidate       = "ice-candidate"
	evEndCall            = "end-call"
	evStartScreenShare   = "start-screen-share"
	evStopScreenShare    = "stop-screen-share"
	evSendCallMessage    = "send-call-message"
	evUserActive         = "user-active"
	evUserTyping         = "user-typing"
	evUserStopTyping     = "user-stop-typing"
	evJoinCallRoom       = "join-call-room"
	evLeaveCallRoom      = "leave-call-room"
)

// Outbound event names.
const (
	EvNewProjectMessage  = "new-project-message"
	EvNewPrivateMessage  = "new-private-message"
	EvIncomingCall       = "incoming-call"
	EvCallAccepted       = "call-accepted"
	EvCallRejected       = "call-rejected"
	EvIceCandidate       = "ice-candidate"
	EvCallEnded          = "call-ended"
	EvScreenShareStarted = "screen-share-started"
	EvScreenShareStopped = "screen-share-stopped"
	EvCallMessage        = "call-message"
	EvUserOnline         = "user-online"
	EvUserOffline        = "user-offline"
	EvTypingIndicator    = "user-typing-indicator"
	EvUserJoined         = "user-joined"
	EvUserLeft           = "user-left"
	EvError              = "error"
)

// Envelope is the raw wire frame. Data stays undecoded until the event
// name selects a payload type.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServerEvent is the frame written to clients.
type ServerEvent struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

func newServerEvent(event string, data any) *ServerEvent {
	return &ServerEvent{
		Event:     event,
		Timestamp: Now(),
		Data:      data,
	}
}

func errEvent(msg string) *ServerEvent {
	return newServerEvent(EvError, ErrorEvent{Message: msg})
}

// Now returns the current UTC time rounded to the nearest millisecond.
func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}

// inboundPayload is implemented by every decoded client event. The
// interface is sealed: decodeEvent is the only constructor, so the
// gateway's dispatch switch is exhaustive.
type inboundPayload interface {
	inboundEvent() string
}

type JoinUser struct {
	UserId string `json:"userId"`
}

type JoinProject struct {
	ProjectId string `json:"projectId"`
}

type LeaveProject struct {
	ProjectId string `json:"projectId"`
}

type SendProjectMessage struct {
	ProjectId   string `json:"projectId"`
	SenderId    string `json:"senderId"`
	Content     string `json:"content"`
	MessageType string `json:"messageType"`
}

type SendPrivateMessage struct {
	ReceiverId  string `json:"receiverId"`
	SenderId    string `json:"senderId"`
	Content     string `json:"content"`
	MessageType string `json:"messageType"`
}

type CallUser struct {
	To         string          `json:"to"`
	Offer      json.RawMessage `json:"offer"`
	CallerId   string          `json:"callerId"`
	CallerName string          `json:"callerName"`
	RoomId     string          `json:"roomId"`
}

type AcceptCall struct {
	To     string          `json:"to"`
	Answer json.RawMessage `json:"answer"`
}

type RejectCall struct {
	To string `json:"to"`
}

type IceCandidate struct {
	To        string          `json:"to"`
	Candidate json.RawMessage `json:"candidate"`
}

type EndCall struct {
	To string `json:"to"`
}

type StartScreenShare struct {
	RoomId string `json:"roomId"`
	To     string `json:"to"`
}

type StopScreenShare struct {
	RoomId string `json:"roomId"`
	To     string `json:"to"`
}

type SendCallMessage struct {
	To         string `json:"to"`
	Sender     string `json:"sender"`
	SenderName string `json:"senderName"`
	Content    string `json:"content"`
}

type UserActive struct {
	UserId string `json:"userId"`
}

type UserTyping struct {
	RoomId     string `json:"roomId"`
	ReceiverId string `json:"receiverId"`
	UserId     string `json:"userId"`
	UserName   string `json:"userName"`
}

type UserStopTyping struct {
	RoomId     string `json:"roomId"`
	ReceiverId string `json:"receiverId"`
	UserId     string `json:"userId"`
	UserName   string `json:"userName"`
}

type JoinCallRoom struct {
	RoomId string `json:"roomId"`
}

type LeaveCallRoom struct {
	RoomId string `json:"roomId"`
}

func (JoinUser) inboundEvent() string           { return evJoinUser }
func (JoinProject) inboundEvent() string        { return evJoinProject }
func (LeaveProject) inboundEvent() string       { return evLeaveProject }
func (SendProjectMessage) inboundEvent() string { return evSendProjectMessage }
func (SendPrivateMessage) inboundEvent() string { return evSendPrivateMessage }
func (CallUser) inboundEvent() string           { return evCallUser }
func (AcceptCall) inboundEvent() string         { return evAcceptCall }
func (RejectCall) inboundEvent() string         { return evRejectCall }
func (IceCandidate) inboundEvent() string       { return evIceCandidate }
func (EndCall) inboundEvent() string            { return evEndCall }
func (StartScreenShare) inboundEvent() string   { return evStartScreenShare }
func (StopScreenShare) inboundEvent() string    { return evStopScreenShare }
func (SendCallMessage) inboundEvent() string    { return evSendCallMessage }
func (UserActive) inboundEvent() string         { return evUserActive }
func (UserTyping) inboundEvent() string         { return evUserTyping }
func (UserStopTyping) inboundEvent() string     { return evUserStopTyping }
func (JoinCallRoom) inboundEvent() string       { return evJoinCallRoom }
func (LeaveCallRoom) inboundEvent() string      { return evLeaveCallRoom }

// decodeEvent parses a raw frame into its typed payload. Unknown event
// names and malformed payloads are errors; the connection survives, the
// frame does not.
func decodeEvent(raw []byte) (inboundPayload, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var payload inboundPayload
	switch env.Event {
	case evJoinUser:
		payload = &JoinUser{}
	case evJoinProject:
		payload = &JoinProject{}
	case evLeaveProject:
		payload = &LeaveProject{}
	case evSendProjectMessage:
		payload = &SendProjectMessage{}
	case evSendPrivateMessage:
		payload = &SendPrivateMessage{}
	case evCallUser:
		payload = &CallUser{}
	case evAcceptCall:
		payload = &AcceptCall{}
	case evRejectCall:
		payload = &RejectCall{}
	case evIceCandidate:
		payload = &IceCandidate{}
	case evEndCall:
		payload = &EndCall{}
	case evStartScreenShare:
		payload = &StartScreenShare{}
	case evStopScreenShare:
		payload = &StopScreenShare{}
	case evSendCallMessage:
		payload = &SendCallMessage{}
	case evUserActive:
		payload = &UserActive{}
	case evUserTyping:
		payload = &UserTyping{}
	case evUserStopTyping:
		payload = &UserStopTyping{}
	case evJoinCallRoom:
		payload = &JoinCallRoom{}
	case evLeaveCallRoom:
		payload = &LeaveCallRoom{}
	default:
		return nil, fmt.Errorf("unknown event %q", env.Event)
	}

	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, payload); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Event, err)
		}
	}

	return payload, nil
}

// Outbound payloads.

type IncomingCall struct {
	From       string          `json:"from"`
	CallerName string          `json:"callerName"`
	Offer      json.RawMessage `json:"offer"`
	RoomId     string          `json:"roomId"`
	CallId     string          `json:"callId"`
}

type CallAnswer struct {
	From   string          `json:"from"`
	Answer json.RawMessage `json:"answer"`
}

type CallTerminated struct {
	From   string `json:"from"`
	RoomId string `json:"roomId,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type CandidateEvent struct {
	From      string          `json:"from"`
	Candidate json.RawMessage `json:"candidate"`
}

type ScreenShareEvent struct {
	From   string `json:"from"`
	RoomId string `json:"roomId"`
}

type CallChatEvent struct {
	From       string `json:"from"`
	SenderName string `json:"senderName"`
	Content    string `json:"content"`
}

type PresenceEvent struct {
	UserId string `json:"userId"`
}

type TypingIndicator struct {
	RoomId   string `json:"roomId"`
	UserId   string `json:"userId"`
	UserName string `json:"userName"`
	Typing   bool   `json:"typing"`
}

type RoomPresenceEvent struct {
	RoomId   string `json:"roomId"`
	UserId   string `json:"userId"`
	UserName string `json:"userName"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}
