package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationTarget controls who sees a notification
type NotificationTarget string

const (
	TargetAll  NotificationTarget = "all"
	TargetUser NotificationTarget = "user"
)

// Notification represents an admin-authored notification
type Notification struct {
	ID        uuid.UUID          `json:"id"`
	Target    NotificationTarget `json:"target"`
	UserID    *uuid.UUID         `json:"user_id,omitempty"` // Set when Target is "user"
	Title     string             `json:"title"`
	Body      string             `json:"body"`
	CreatedAt time.Time          `json:"created_at"`

	// Per-viewer flags, populated when listing for a user
	Read   bool `json:"read"`
	Hidden bool `json:"-"`
}
