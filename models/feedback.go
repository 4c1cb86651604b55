package models

import (
	"time"

	"github.com/google/uuid"
)

// Feedback is a user's rating of one assistant reply
type Feedback struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	MessageID      *uuid.UUID `json:"message_id,omitempty"`
	Rating         int        `json:"rating"` // 1-5
	Comment        string     `json:"comment"`
	CreatedAt      time.Time  `json:"created_at"`
}
