package models

import "time"

// Message is an immutable group-scoped message.
type Message struct {
	ID        int       `db:"id" json:"id"`
	GroupID   int       `db:"group_id" json:"group_id"`
	SenderID  int       `db:"sender_id" json:"sender_id"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// MessageWithSender projects the sender's username alongside the message.
type MessageWithSender struct {
	Message
	SenderUsername string `db:"sender_username" json:"sender_username"`
}
