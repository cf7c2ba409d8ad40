package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// ConversationRepository answers membership questions against the durable
// store. IsMember is the authorization source of truth and is re-queried on
// every operation; results are never cached.
type ConversationRepository interface {
	IsMember(ctx context.Context, userID int, conversationID int) (bool, error)
	FindUserConversations(ctx context.Context, userID int) ([]int, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// IsMember checks whether a membership row exists for the pair.
func (r *ConversationRepo) IsMember(ctx context.Context, userID int, conversationID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM conversation_members WHERE conversation_id=$1 AND user_id=$2)`,
		conversationID, userID)
	return exists, err
}

// FindUserConversations returns the ids of every conversation the user
// belongs to. Used for the bulk room join at connect.
func (r *ConversationRepo) FindUserConversations(ctx context.Context, userID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids,
		`SELECT conversation_id FROM conversation_members WHERE user_id=$1 ORDER BY conversation_id`,
		userID)
	return ids, err
}
