package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/longkey1/avatarchat/internal/avatarchat"
)

const (
	ProviderName   = "openai"
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4.1"
)

// ResponsesAPIRequest represents the request body for OpenAI's Responses API
type ResponsesAPIRequest struct {
	Model           string `json:"model"`
	Instructions    string `json:"instructions,omitempty"`
	Input           string `json:"input"`
	MaxOutputTokens int    `json:"max_output_tokens,omitempty"`
}

// ResponsesAPIResponse represents the response from OpenAI's Responses API
type ResponsesAPIResponse struct {
	Output []ResponsesAPIOutput `json:"output"`
	Error  *APIError            `json:"error,omitempty"`
}

// ResponsesAPIOutput represents an output element
type ResponsesAPIOutput struct {
	Type    string                `json:"type"`
	Content []ResponsesAPIContent `json:"content"`
}

// ResponsesAPIContent represents a content block
type ResponsesAPIContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// APIError represents an error in the API response
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Config holds what the responder needs to reach the API
type Config struct {
	BaseURL         string
	Token           string
	Model           string
	SystemPrompt    string // sent as instructions, omitted when empty
	MaxOutputTokens int
}

// Responder generates conversation replies with the Responses API
type Responder struct {
	config     Config
	httpClient *http.Client
}

// NewResponder creates a new OpenAI responder
func NewResponder(config Config, httpClient *http.Client) *Responder {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Responder{config: config, httpClient: httpClient}
}

// Name identifies the responder in logs
func (r *Responder) Name() string {
	return ProviderName + ":" + r.config.Model
}

// FormatHistory renders prior messages and the new one as a plain
// "User:"/"Assistant:" transcript ending with an open assistant turn.
func FormatHistory(history []avatarchat.Message, message string) string {
	var b strings.Builder
	for _, msg := range history {
		role := "User: "
		if msg.Role == "assistant" {
			role = "Assistant: "
		}
		b.WriteString(role)
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	b.WriteString("User: ")
	b.WriteString(message)
	b.WriteString("\nAssistant: ")
	return b.String()
}

// Respond sends the conversation to OpenAI and returns the reply text
func (r *Responder) Respond(ctx context.Context, history []avatarchat.Message, message string) (string, error) {
	if r.config.Token == "" {
		return "", fmt.Errorf("openai token is not configured. Set it in config file (server.openai_token) or environment variable (OPENAI_API_KEY)")
	}

	reqBody := ResponsesAPIRequest{
		Model:           r.config.Model,
		Instructions:    r.config.SystemPrompt,
		Input:           FormatHistory(history, message),
		MaxOutputTokens: r.config.MaxOutputTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(r.config.BaseURL, "/")+"/responses", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.config.Token)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response: %w", err)
	}

	var result ResponsesAPIResponse
	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(body, &result) == nil && result.Error != nil && result.Error.Message != "" {
			return "", fmt.Errorf("API error (HTTP %d): %s", resp.StatusCode, result.Error.Message)
		}
		return "", fmt.Errorf("API error (HTTP %d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}

	// Reasoning models emit non-message items first
	for _, output := range result.Output {
		for _, content := range output.Content {
			if content.Text != "" {
				return strings.TrimSpace(content.Text), nil
			}
		}
	}
	return "", fmt.Errorf("no content in response")
}
