package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuskit/campus-api/internal/models"
)

// MessageRepository provides persistence for conversations and messages.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository creates the repository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// ListConversations returns a user's conversations, most recent first.
func (r *MessageRepository) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	const query = `SELECT id, user_a, user_b, last_message_at, created_at FROM conversations
WHERE user_a = $1 OR user_b = $1
ORDER BY last_message_at DESC NULLS LAST, created_at DESC`
	var conversations []models.Conversation
	if err := r.db.SelectContext(ctx, &conversations, query, userID); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return conversations, nil
}

// FindConversation returns the conversation between two users regardless of
// participant order.
func (r *MessageRepository) FindConversation(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	const query = `SELECT id, user_a, user_b, last_message_at, created_at FROM conversations
WHERE (user_a = $1 AND user_b = $2) OR (user_a = $2 AND user_b = $1) LIMIT 1`
	var conversation models.Conversation
	if err := r.db.GetContext(ctx, &conversation, query, userA, userB); err != nil {
		return nil, err
	}
	return &conversation, nil
}

// GetConversation returns a conversation by identifier.
func (r *MessageRepository) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	const query = `SELECT id, user_a, user_b, last_message_at, created_at FROM conversations WHERE id = $1`
	var conversation models.Conversation
	if err := r.db.GetContext(ctx, &conversation, query, id); err != nil {
		return nil, err
	}
	return &conversation, nil
}

// CreateConversation inserts a new conversation.
func (r *MessageRepository) CreateConversation(ctx context.Context, conversation *models.Conversation) error {
	if conversation.ID == "" {
		conversation.ID = uuid.NewString()
	}
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO conversations (id, user_a, user_b, last_message_at, created_at)
VALUES (:id, :user_a, :user_b, :last_message_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, conversation); err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

// ListMessages returns a conversation's messages in order.
func (r *MessageRepository) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	const query = `SELECT id, conversation_id, sender_id, body, created_at FROM messages
WHERE conversation_id = $1 ORDER BY created_at ASC`
	var messages []models.Message
	if err := r.db.SelectContext(ctx, &messages, query, conversationID); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// CreateMessage appends a message and bumps the conversation timestamp.
func (r *MessageRepository) CreateMessage(ctx context.Context, message *models.Message) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO messages (id, conversation_id, sender_id, body, created_at)
VALUES (:id, :conversation_id, :sender_id, :body, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, message); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, "UPDATE conversations SET last_message_at = $1 WHERE id = $2", message.CreatedAt, message.ConversationID); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}
