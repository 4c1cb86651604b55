package repository

import (
	"context"
	"errors"

	"pathwaymed-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrPromptNotFound is returned when no prompt matches the lookup
	ErrPromptNotFound = errors.New("prompt not found")
	// ErrPromptActive is returned when deleting the currently active version
	ErrPromptActive = errors.New("cannot delete the active prompt version")
)

// PromptRepository handles database operations for versioned user prompts
type PromptRepository struct {
	db *pgxpool.Pool
}

// NewPromptRepository creates a new prompt repository
func NewPromptRepository(db *pgxpool.Pool) *PromptRepository {
	return &PromptRepository{db: db}
}

// CreateVersion deactivates the user's current prompt and stores the new text
// as the next active version
func (r *PromptRepository) CreateVersion(ctx context.Context, userID uuid.UUID, promptText string) (*models.UserPrompt, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE user_prompts
		SET is_active = false, updated_at = NOW()
		WHERE user_id = $1 AND is_active = true`, userID)
	if err != nil {
		return nil, err
	}

	p := &models.UserPrompt{UserID: userID, PromptText: promptText, IsActive: true}
	err = tx.QueryRow(ctx, `
		INSERT INTO user_prompts (user_id, prompt_text, version, is_active)
		VALUES ($1, $2,
			(SELECT COALESCE(MAX(version), 0) + 1 FROM user_prompts WHERE user_id = $1),
			true)
		RETURNING id, version, created_at, updated_at`,
		userID, promptText).
		Scan(&p.ID, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// GetActive retrieves the user's active prompt, if any
func (r *PromptRepository) GetActive(ctx context.Context, userID uuid.UUID) (*models.UserPrompt, error) {
	p := &models.UserPrompt{}
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, prompt_text, version, is_active, created_at, updated_at
		FROM user_prompts
		WHERE user_id = $1 AND is_active = true`, userID).
		Scan(&p.ID, &p.UserID, &p.PromptText, &p.Version, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPromptNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListVersions retrieves all of the user's prompt versions, newest first
func (r *PromptRepository) ListVersions(ctx context.Context, userID uuid.UUID) ([]*models.UserPrompt, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, prompt_text, version, is_active, created_at, updated_at
		FROM user_prompts
		WHERE user_id = $1
		ORDER BY version DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prompts []*models.UserPrompt
	for rows.Next() {
		p := &models.UserPrompt{}
		err := rows.Scan(&p.ID, &p.UserID, &p.PromptText, &p.Version, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

// GetVersion retrieves one specific prompt version for the user
func (r *PromptRepository) GetVersion(ctx context.Context, userID uuid.UUID, version int) (*models.UserPrompt, error) {
	p := &models.UserPrompt{}
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, prompt_text, version, is_active, created_at, updated_at
		FROM user_prompts
		WHERE user_id = $1 AND version = $2`, userID, version).
		Scan(&p.ID, &p.UserID, &p.PromptText, &p.Version, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPromptNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteVersion removes an inactive prompt version
func (r *PromptRepository) DeleteVersion(ctx context.Context, userID uuid.UUID, version int) error {
	p, err := r.GetVersion(ctx, userID, version)
	if err != nil {
		return err
	}
	if p.IsActive {
		return ErrPromptActive
	}

	tag, err := r.db.Exec(ctx, `
		DELETE FROM user_prompts
		WHERE user_id = $1 AND version = $2 AND is_active = false`,
		userID, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPromptNotFound
	}
	return nil
}

// Deactivate clears the user's active prompt so defaults apply again
func (r *PromptRepository) Deactivate(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE user_prompts
		SET is_active = false, updated_at = NOW()
		WHERE user_id = $1 AND is_active = true`, userID)
	return err
}
