// Package backend implements the chat REST backend the client talks to:
// token login, conversation creation and message relay to a Responder.
package backend

import (
	"context"
	"errors"
	"time"

	"github.com/longkey1/avatarchat/internal/avatarchat"
)

var (
	// ErrNotFound is returned when a record does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials is returned when a username/password pair does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User is an account allowed to log in.
type User struct {
	ID        int64
	Username  string
	CreatedAt time.Time
}

// Conversation is a titled message thread owned by one user.
type Conversation struct {
	ID        int64
	UserID    int64
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository defines the persistence the backend needs.
type Repository interface {
	// EnsureUser creates the user if missing. created reports whether it did.
	EnsureUser(ctx context.Context, username, password string) (user *User, created bool, err error)

	// CheckPassword returns the user when the password matches, ErrInvalidCredentials otherwise.
	CheckPassword(ctx context.Context, username, password string) (*User, error)

	// IssueToken returns the user's token, creating one on first use.
	IssueToken(ctx context.Context, userID int64) (string, error)

	// UserByToken resolves a token to its user.
	UserByToken(ctx context.Context, token string) (*User, error)

	// CreateConversation starts a new conversation for userID.
	CreateConversation(ctx context.Context, userID int64, title string) (*Conversation, error)

	// GetConversation returns a conversation only if userID owns it.
	GetConversation(ctx context.Context, userID, id int64) (*Conversation, error)

	// ListConversations returns userID's conversations, most recently updated first.
	ListConversations(ctx context.Context, userID int64) ([]Conversation, error)

	// AddMessage appends a message and bumps the conversation's update time.
	AddMessage(ctx context.Context, conversationID int64, role, content string) error

	// Messages returns a conversation's messages in order.
	Messages(ctx context.Context, conversationID int64) ([]avatarchat.Message, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
