package models

import (
	"encoding/json"
	"time"
)

// Receipt statuses. Transitions are monotonic: DELIVERED may become READ,
// never the reverse.
const (
	ReceiptDelivered = "DELIVERED"
	ReceiptRead      = "READ"
)

// Message is an immutable chat message. The attachment, when present, is an
// opaque JSON blob passed through unmodified.
type Message struct {
	ID             int             `db:"id" json:"id"`
	ConversationID int             `db:"conversation_id" json:"conversation_id"`
	SenderID       int             `db:"sender_id" json:"sender_id"`
	Content        string          `db:"content" json:"content"`
	Attachment     json.RawMessage `db:"attachment" json:"attachment,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// MessageReceipt tracks delivery/read state for one (message, recipient) pair.
type MessageReceipt struct {
	MessageID int       `db:"message_id" json:"message_id"`
	UserID    int       `db:"user_id" json:"user_id"`
	Status    string    `db:"status" json:"status"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
