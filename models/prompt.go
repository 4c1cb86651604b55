package models

import (
	"time"

	"github.com/google/uuid"
)

// UserPrompt is one version of a user's custom extraction system prompt.
// At most one version per user is active at a time.
type UserPrompt struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	PromptText string    `json:"prompt_text"`
	Version    int       `json:"version"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
