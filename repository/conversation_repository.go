package repository

import (
	"context"
	"errors"
	"fmt"

	"pathwaymed-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrConversationNotFound is returned when a conversation does not exist or
// belongs to another user
var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository handles database operations for conversations and
// their messages
type ConversationRepository struct {
	db *pgxpool.Pool
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create creates a new conversation
func (r *ConversationRepository) Create(ctx context.Context, userID uuid.UUID, title string) (*models.Conversation, error) {
	conv := &models.Conversation{
		UserID: userID,
		Title:  title,
	}

	query := `
		INSERT INTO conversations (user_id, title)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query, userID, title).Scan(
		&conv.ID,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return conv, nil
}

// GetByID retrieves a conversation owned by the given user
func (r *ConversationRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Conversation, error) {
	conv := &models.Conversation{}
	query := `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE id = $1 AND user_id = $2`

	err := r.db.QueryRow(ctx, query, id, userID).Scan(
		&conv.ID,
		&conv.UserID,
		&conv.Title,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err != nil {
		return nil, ErrConversationNotFound
	}

	return conv, nil
}

// ListByUserID retrieves a user's conversations, most recently updated
// first, without their messages
func (r *ConversationRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Conversation, error) {
	query := `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []*models.Conversation
	for rows.Next() {
		conv := &models.Conversation{}
		err := rows.Scan(
			&conv.ID,
			&conv.UserID,
			&conv.Title,
			&conv.CreatedAt,
			&conv.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}

	return conversations, rows.Err()
}

// Rename updates a conversation's title
func (r *ConversationRepository) Rename(ctx context.Context, id, userID uuid.UUID, title string) error {
	query := `
		UPDATE conversations SET
			title = $3,
			updated_at = NOW()
		WHERE id = $1 AND user_id = $2`

	tag, err := r.db.Exec(ctx, query, id, userID, title)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// Delete removes a conversation and its messages
func (r *ConversationRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	query := `DELETE FROM conversations WHERE id = $1 AND user_id = $2`

	tag, err := r.db.Exec(ctx, query, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// ListMessages retrieves a conversation's messages in chronological order
func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error) {
	query := `
		SELECT id, conversation_id, sender, text, sources, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.Sender,
			&msg.Text,
			&msg.Sources,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// AppendExchange stores one user message and the bot reply atomically and
// bumps the conversation's updated_at
func (r *ConversationRepository) AppendExchange(ctx context.Context, conversationID uuid.UUID, userText, botText string, sources models.MessageSources) (*models.Message, *models.Message, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO messages (conversation_id, sender, text, sources)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	userMsg := &models.Message{
		ConversationID: conversationID,
		Sender:         models.SenderUser,
		Text:           userText,
	}
	err = tx.QueryRow(ctx, insert, conversationID, models.SenderUser, userText, models.MessageSources(nil)).
		Scan(&userMsg.ID, &userMsg.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert user message: %w", err)
	}

	botMsg := &models.Message{
		ConversationID: conversationID,
		Sender:         models.SenderBot,
		Text:           botText,
		Sources:        sources,
	}
	err = tx.QueryRow(ctx, insert, conversationID, models.SenderBot, botText, sources).
		Scan(&botMsg.ID, &botMsg.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert bot message: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE conversations SET updated_at = NOW() WHERE id = $1`, conversationID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to touch conversation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit exchange: %w", err)
	}

	return userMsg, botMsg, nil
}
