package models

import (
	"encoding/json"
	"time"
)

// Client-invocable event names.
const (
	EventMessageSend       = "message:send"
	EventMessageRead       = "message:read"
	EventJoinConversation  = "join:conversation"
	EventLeaveConversation = "leave:conversation"
)

// Server-emitted event names.
const (
	EventMessageNew         = "message:new"
	EventConversationJoined = "conversation:joined"
	EventError              = "error"
)

// ClientCommand is one inbound websocket frame.
type ClientCommand struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServerEvent is one outbound websocket frame.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// SendMessagePayload is the data of a message:send command.
type SendMessagePayload struct {
	ConversationID int             `json:"conversation_id"`
	Content        string          `json:"content"`
	Attachment     json.RawMessage `json:"attachment,omitempty"`
}

// MarkReadPayload is the data of a message:read command.
type MarkReadPayload struct {
	MessageID int `json:"message_id"`
}

// ConversationPayload is the data of join:conversation and leave:conversation
// commands, and of the conversation:joined acknowledgment.
type ConversationPayload struct {
	ConversationID int `json:"conversation_id"`
}

// NewMessageEvent is the data of a message:new broadcast.
type NewMessageEvent struct {
	Message
	Sender UserProfile `json:"sender"`
}

// ReadEvent is the data of a message:read notification sent to the sender's
// user room.
type ReadEvent struct {
	MessageID int       `json:"message_id"`
	UserID    int       `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorEvent is the data of an error frame. Code is stable so clients can
// tell retryable infrastructure failures from non-retryable denials.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
