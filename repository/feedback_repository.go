package repository

import (
	"context"

	"pathwaymed-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FeedbackRepository handles database operations for user feedback
type FeedbackRepository struct {
	db *pgxpool.Pool
}

// NewFeedbackRepository creates a new feedback repository
func NewFeedbackRepository(db *pgxpool.Pool) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Create stores a feedback entry
func (r *FeedbackRepository) Create(ctx context.Context, f *models.Feedback) error {
	query := `
		INSERT INTO feedback (user_id, conversation_id, message_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return r.db.QueryRow(ctx, query,
		f.UserID, f.ConversationID, f.MessageID, f.Rating, f.Comment).
		Scan(&f.ID, &f.CreatedAt)
}

// ListAll retrieves feedback across all users, newest first
func (r *FeedbackRepository) ListAll(ctx context.Context, limit, offset int) ([]*models.Feedback, int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, conversation_id, message_id, rating, comment, created_at
		FROM feedback
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	feedback, err := scanFeedback(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM feedback`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return feedback, total, nil
}

// ListByConversation retrieves feedback for one conversation
func (r *FeedbackRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]*models.Feedback, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, conversation_id, message_id, rating, comment, created_at
		FROM feedback
		WHERE conversation_id = $1
		ORDER BY created_at DESC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFeedback(rows)
}

func scanFeedback(rows pgx.Rows) ([]*models.Feedback, error) {
	var feedback []*models.Feedback
	for rows.Next() {
		f := &models.Feedback{}
		err := rows.Scan(&f.ID, &f.UserID, &f.ConversationID, &f.MessageID, &f.Rating, &f.Comment, &f.CreatedAt)
		if err != nil {
			return nil, err
		}
		feedback = append(feedback, f)
	}
	return feedback, rows.Err()
}
