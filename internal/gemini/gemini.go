package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/longkey1/avatarchat/internal/avatarchat"
)

const (
	ProviderName   = "gemini"
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash"
)

// GeminiRequest represents the request body for Gemini's generate content API
type GeminiRequest struct {
	Contents          []GeminiContent          `json:"contents"`
	SystemInstruction *GeminiSystemInstruction `json:"system_instruction,omitempty"`
}

// GeminiSystemInstruction represents system instruction for Gemini
type GeminiSystemInstruction struct {
	Parts []GeminiPart `json:"parts"`
}

// GeminiContent represents a content item in the Gemini request format
type GeminiContent struct {
	Role  string       `json:"role,omitempty"` // "user" or "model"
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart represents a part of the content
type GeminiPart struct {
	Text string `json:"text"`
}

// GeminiResponse represents the full response from Gemini API
type GeminiResponse struct {
	Candidates []GeminiCandidate `json:"candidates"`
	Error      *GeminiError      `json:"error,omitempty"`
}

// GeminiCandidate represents a candidate response
type GeminiCandidate struct {
	Content      GeminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

// GeminiError is the error object Gemini returns with non-2xx responses
type GeminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Config holds what the responder needs to reach the API
type Config struct {
	BaseURL      string
	Token        string
	Model        string
	SystemPrompt string
}

// Responder generates conversation replies with generateContent
type Responder struct {
	config     Config
	httpClient *http.Client
}

// NewResponder creates a new Gemini responder
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

// BuildContents converts the stored history and the new message into
// Gemini contents. Gemini uses "model" instead of "assistant".
func BuildContents(history []avatarchat.Message, message string) []GeminiContent {
	contents := make([]GeminiContent, 0, len(history)+1)
	for _, msg := range history {
		role := "user"
		if msg.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, GeminiContent{
			Role:  role,
			Parts: []GeminiPart{{Text: msg.Content}},
		})
	}
	return append(contents, GeminiContent{
		Role:  "user",
		Parts: []GeminiPart{{Text: message}},
	})
}

// Respond sends the conversation to Gemini and returns the reply text
func (r *Responder) Respond(ctx context.Context, history []avatarchat.Message, message string) (string, error) {
	if r.config.Token == "" {
		return "", fmt.Errorf("gemini token is not configured. Set it in config file (server.gemini_token) or environment variable (GEMINI_API_KEY)")
	}

	reqBody := GeminiRequest{Contents: BuildContents(history, message)}
	if r.config.SystemPrompt != "" {
		reqBody.SystemInstruction = &GeminiSystemInstruction{
			Parts: []GeminiPart{{Text: r.config.SystemPrompt}},
		}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(r.config.BaseURL, "/"), url.PathEscape(r.config.Model), url.QueryEscape(r.config.Token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		// the URL carries the key
		return "", fmt.Errorf("error sending request to %s", ProviderName)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response: %w", err)
	}

	var result GeminiResponse
	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(body, &result) == nil && result.Error != nil && result.Error.Message != "" {
			return "", fmt.Errorf("API error (HTTP %d): %s", resp.StatusCode, result.Error.Message)
		}
		return "", fmt.Errorf("API error (HTTP %d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}

	for _, candidate := range result.Candidates {
		var parts []string
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				parts = append(parts, part.Text)
			}
		}
		if len(parts) > 0 {
			return strings.TrimSpace(strings.Join(parts, "")), nil
		}
	}
	return "", fmt.Errorf("no response from API")
}
