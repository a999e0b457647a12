package backend

import (
	"context"
	"fmt"

	"github.com/longkey1/avatarchat/internal/avatarchat"
)

const (
	// FallbackReply is sent when the responder fails.
	FallbackReply = "I apologize, but I'm having trouble processing your request right now."

	// SystemPrompt is the persona given to model-backed responders.
	SystemPrompt = "You are a helpful assistant."
)

// Responder produces the assistant's reply to a message given the prior history.
type Responder interface {
	Respond(ctx context.Context, history []avatarchat.Message, message string) (string, error)
}

// EchoResponder answers without any model, for local development.
type EchoResponder struct{}

// Respond echoes the message back.
func (EchoResponder) Respond(_ context.Context, history []avatarchat.Message, message string) (string, error) {
	return fmt.Sprintf("You said: %s", message), nil
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, history []avatarchat.Message, message string) (string, error)

// Respond calls f.
func (f ResponderFunc) Respond(ctx context.Context, history []avatarchat.Message, message string) (string, error) {
	return f(ctx, history, message)
}
