package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/longkey1/avatarchat/internal/avatarchat"
)

const (
	ProviderName     = "anthropic"
	DefaultBaseURL   = "https://api.anthropic.com/"
	DefaultModel     = "claude-3-5-sonnet-20241022"
	DefaultMaxTokens = 1024
)

// Config holds what the responder needs to reach the API
type Config struct {
	BaseURL      string
	Token        string
	Model        string
	SystemPrompt string
	MaxTokens    int64
}

// Responder generates conversation replies with the Messages API
type Responder struct {
	config Config
	client anthropic.Client
}

// NewResponder creates a new Anthropic responder. Each request is sent once;
// the SDK's own retries are disabled.
func NewResponder(config Config, httpClient *http.Client) *Responder {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	client := anthropic.NewClient(
		option.WithHTTPClient(httpClient),
		option.WithBaseURL(config.BaseURL),
		option.WithAPIKey(config.Token),
		option.WithMaxRetries(0),
	)
	return &Responder{config: config, client: client}
}

// Name identifies the responder in logs
func (r *Responder) Name() string {
	return ProviderName + ":" + r.config.Model
}

// BuildMessages converts the stored history and the new message into
// Messages API input. Consecutive turns of the same role are merged since
// the API requires alternating roles.
func BuildMessages(history []avatarchat.Message, message string) []anthropic.MessageParam {
	type turn struct {
		role anthropic.MessageParamRole
		text string
	}
	turns := make([]turn, 0, len(history)+1)
	add := func(role anthropic.MessageParamRole, text string) {
		if n := len(turns); n > 0 && turns[n-1].role == role {
			turns[n-1].text += "\n\n" + text
			return
		}
		turns = append(turns, turn{role: role, text: text})
	}

	for _, msg := range history {
		role := anthropic.MessageParamRoleUser
		if msg.Role == "assistant" {
			role = anthropic.MessageParamRoleAssistant
		}
		// The first message must come from the user
		if len(turns) == 0 && role == anthropic.MessageParamRoleAssistant {
			continue
		}
		add(role, msg.Content)
	}
	add(anthropic.MessageParamRoleUser, message)

	messages := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, anthropic.MessageParam{
			Role:    t.role,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(t.text)},
		})
	}
	return messages
}

// Respond sends the conversation to Anthropic and returns the reply text
func (r *Responder) Respond(ctx context.Context, history []avatarchat.Message, message string) (string, error) {
	if r.config.Token == "" {
		return "", fmt.Errorf("anthropic token is not configured. Set it in config file (server.anthropic_token) or environment variable (ANTHROPIC_API_KEY)")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(r.config.Model),
		MaxTokens: r.config.MaxTokens,
		Messages:  BuildMessages(history, message),
	}
	if r.config.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: r.config.SystemPrompt}}
	}

	result, err := r.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("API error (HTTP %d): %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("error sending request: %w", err)
	}

	var textBlocks []string
	for _, block := range result.Content {
		if block.Type == "text" && block.Text != "" {
			textBlocks = append(textBlocks, block.Text)
		}
	}
	if len(textBlocks) == 0 {
		return "", fmt.Errorf("no text content found in API response (id=%s)", result.ID)
	}
	return strings.TrimSpace(strings.Join(textBlocks, "\n")), nil
}
