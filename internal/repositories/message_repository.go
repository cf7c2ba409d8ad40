package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"messaging-core/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository persists messages and their per-recipient receipts.
type MessageRepository interface {
	// CreateWithReceipts inserts the message and one receipt per current
	// conversation member in a single transaction. The sender's receipt is
	// created READ, all others DELIVERED.
	CreateWithReceipts(ctx context.Context, conversationID int, senderID int, content string, attachment json.RawMessage) (models.Message, error)

	// FindForMember loads a message only if userID is a member of its
	// conversation. A missing row and a row the user may not see are both
	// ErrMessageNotFound.
	FindForMember(ctx context.Context, messageID int, userID int) (models.Message, error)

	// MarkReceiptRead transitions the (message, user) receipt to READ and
	// reports whether a transition actually happened. Re-marking an
	// already-READ receipt returns (false, nil).
	MarkReceiptRead(ctx context.Context, messageID int, userID int) (bool, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateWithReceipts stores the message and its receipts atomically. The
// member set is read inside the transaction so the receipt set matches the
// membership at creation time exactly.
func (r *MessageRepo) CreateWithReceipts(ctx context.Context, conversationID int, senderID int, content string, attachment json.RawMessage) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var attachmentArg any
	if len(attachment) > 0 {
		attachmentArg = []byte(attachment)
	}

	var msg models.Message
	if err := tx.QueryRowxContext(ctx,
		`INSERT INTO messages (conversation_id, sender_id, content, attachment)
         VALUES ($1, $2, $3, $4)
         RETURNING id, conversation_id, sender_id, content, created_at`,
		conversationID, senderID, content, attachmentArg).
		Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.CreatedAt); err != nil {
		return models.Message{}, fmt.Errorf("insert message: %w", err)
	}
	msg.Attachment = attachment

	var memberIDs []int
	if err := tx.SelectContext(ctx, &memberIDs,
		`SELECT user_id FROM conversation_members WHERE conversation_id=$1`, conversationID); err != nil {
		return models.Message{}, fmt.Errorf("load members: %w", err)
	}

	for _, userID := range memberIDs {
		status := models.ReceiptDelivered
		if userID == senderID {
			status = models.ReceiptRead
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO message_receipts (message_id, user_id, status) VALUES ($1, $2, $3)`,
			msg.ID, userID, status); err != nil {
			return models.Message{}, fmt.Errorf("insert receipt: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, fmt.Errorf("commit: %w", err)
	}
	return msg, nil
}

// FindForMember joins the membership table into the lookup so an unauthorized
// caller cannot distinguish a hidden message from a missing one.
func (r *MessageRepo) FindForMember(ctx context.Context, messageID int, userID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT m.id, m.conversation_id, m.sender_id, m.content, m.attachment, m.created_at
         FROM messages m
         JOIN conversation_members cm ON cm.conversation_id = m.conversation_id AND cm.user_id = $2
         WHERE m.id = $1`,
		messageID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkReceiptRead is idempotent and monotonic: the guard on status means an
// already-READ receipt is left untouched and reported as no transition.
func (r *MessageRepo) MarkReceiptRead(ctx context.Context, messageID int, userID int) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE message_receipts SET status=$3, updated_at=NOW()
         WHERE message_id=$1 AND user_id=$2 AND status <> $3`,
		messageID, userID, models.ReceiptRead)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
