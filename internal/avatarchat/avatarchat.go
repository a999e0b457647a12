// Package avatarchat provides the client side of the avatar chat backend.
// It authenticates against the backend, creates a conversation and relays
// user messages, keeping the resulting state in an explicit Session value.
package avatarchat

import (
	"context"
	"strings"
	"time"
)

// Credentials identifies the user at login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Valid reports whether both fields are set.
func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.Username) != "" && c.Password != ""
}

// Message represents a single message in a conversation
type Message struct {
	Role      string    `json:"role"`    // "user" or "assistant"
	Content   string    `json:"content"` // Message content
	Timestamp time.Time `json:"timestamp"`
}

// Reply is the counterpart's answer to a sent message.
type Reply struct {
	Text string
}

// Relay forwards user text within an established session.
// *Client implements it; the interactive mode depends only on this.
type Relay interface {
	Bootstrap(ctx context.Context, creds Credentials, title string) (*Session, error)
	SendMessage(ctx context.Context, sess *Session, text string) (*Reply, error)
}
