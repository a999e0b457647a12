package transcript

import (
	"time"

	"github.com/google/uuid"
	"github.com/longkey1/avatarchat/internal/avatarchat"
)

// Transcript is the local record of one backend conversation
type Transcript struct {
	ID             string                    `json:"id"`              // UUID v4
	Name           string                    `json:"name"`            // Optional name (empty by default)
	BaseURL        string                    `json:"base_url"`        // Backend the conversation lives on
	Username       string                    `json:"username"`        // Account that owns the conversation
	ConversationID avatarchat.ConversationID `json:"conversation_id"` // Backend conversation id (empty until created)
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
	Messages       []avatarchat.Message      `json:"messages"`
}

// New creates an empty transcript for a conversation on baseURL
func New(baseURL, username string) *Transcript {
	now := time.Now()
	return &Transcript{
		ID:        uuid.New().String(),
		BaseURL:   baseURL,
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []avatarchat.Message{},
	}
}

// AddMessage appends a message and bumps UpdatedAt
func (t *Transcript) AddMessage(role, content string) {
	now := time.Now()
	t.Messages = append(t.Messages, avatarchat.Message{
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
	t.UpdatedAt = now
}

// RecordExchange stores one sent message and its reply
func (t *Transcript) RecordExchange(sent, reply string) {
	t.AddMessage("user", sent)
	t.AddMessage("assistant", reply)
}

// GetShortID returns the shortened transcript ID (first 8 characters)
func (t *Transcript) GetShortID() string {
	if len(t.ID) >= 8 {
		return t.ID[:8]
	}
	return t.ID
}

// GetDisplayName returns the name if set, otherwise the short ID
func (t *Transcript) GetDisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.GetShortID()
}

// MessageCount returns the number of messages in the transcript
func (t *Transcript) MessageCount() int {
	return len(t.Messages)
}
