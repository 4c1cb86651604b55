package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageSender identifies who produced a message
type MessageSender string

const (
	SenderUser MessageSender = "user"
	SenderBot  MessageSender = "bot"
)

// MessageSources is the per-disease citation map stored alongside a bot
// message as JSONB
type MessageSources map[string]SourceMap

// Value implements driver.Valuer for JSONB
func (s MessageSources) Value() (driver.Value, error) {
	if s == nil {
		return json.Marshal(MessageSources{})
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB
func (s *MessageSources) Scan(value interface{}) error {
	if value == nil {
		*s = make(MessageSources)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*s = make(MessageSources)
		return nil
	}

	if len(bytes) == 0 {
		*s = make(MessageSources)
		return nil
	}

	return json.Unmarshal(bytes, s)
}

// Message represents one stored conversation message
type Message struct {
	ID             uuid.UUID      `json:"id"`
	ConversationID uuid.UUID      `json:"conversation_id"`
	Sender         MessageSender  `json:"sender"`
	Text           string         `json:"text"`
	Sources        MessageSources `json:"sources,omitempty"`
	CreatedAt      time.Time      `json:"timestamp"`
}

// Conversation represents a conversation entity; messages are loaded
// separately
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
