package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"splitshare-service/internal/models"
)

// MessageRepository defines interactions for group messages. Messages are
// append-only; there is no update or delete.
type MessageRepository interface {
	CreateMessage(ctx context.Context, groupID, senderID int, content string) (models.Message, error)
	ListGroupMessages(ctx context.Context, groupID int) ([]models.MessageWithSender, error)
}

// MessageRepo is a sqlx-backed implementation.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage persists a group message.
func (r *MessageRepo) CreateMessage(ctx context.Context, groupID, senderID int, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`INSERT INTO messages (group_id, sender_id, content) VALUES ($1, $2, $3)
         RETURNING id, group_id, sender_id, content, created_at`,
		groupID, senderID, content)
	return msg, err
}

// ListGroupMessages returns messages with sender usernames, oldest first.
func (r *MessageRepo) ListGroupMessages(ctx context.Context, groupID int) ([]models.MessageWithSender, error) {
	msgs := []models.MessageWithSender{}
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT m.id, m.group_id, m.sender_id, m.content, m.created_at, u.username AS sender_username
         FROM messages m
         INNER JOIN users u ON u.id = m.sender_id
         WHERE m.group_id=$1
         ORDER BY m.created_at ASC, m.id ASC`,
		groupID)
	return msgs, err
}
