package models

import "time"

// Conversation kinds.
const (
	ConversationPrivate = "PRIVATE"
	ConversationGroup   = "GROUP"
)

// Member roles.
const (
	RoleMember = "MEMBER"
	RoleAdmin  = "ADMIN"
)

// Conversation is a durable chat thread. The messaging core never creates or
// mutates conversations; it only reads them as the join key for rooms.
type Conversation struct {
	ID        int       `db:"id" json:"id"`
	Kind      string    `db:"kind" json:"kind"`
	Title     *string   `db:"title" json:"title,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ConversationMember links a user to a conversation. A row existing for
// (conversation_id, user_id) is the authorization source of truth.
type ConversationMember struct {
	ConversationID int       `db:"conversation_id" json:"conversation_id"`
	UserID         int       `db:"user_id" json:"user_id"`
	Role           string    `db:"role" json:"role"`
	JoinedAt       time.Time `db:"joined_at" json:"joined_at"`
}

// UserProfile is the public slice of a user row attached to outbound events.
type UserProfile struct {
	ID        int    `db:"id" json:"id"`
	Username  string `db:"username" json:"username"`
	AvatarURL string `db:"avatar_url" json:"avatar_url,omitempty"`
}
