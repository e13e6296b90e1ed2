package models

import "time"

// Conversation is a direct thread between two users.
type Conversation struct {
	ID            string     `db:"id" json:"id"`
	UserA         string     `db:"user_a" json:"user_a"`
	UserB         string     `db:"user_b" json:"user_b"`
	LastMessageAt *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// Message is one entry in a conversation.
type Message struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	SenderID       string    `db:"sender_id" json:"sender_id"`
	Body           string    `db:"body" json:"body"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
