package avatarchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	OpLogin              = "login"
	OpCreateConversation = "create conversation"
	OpSendMessage        = "send message"

	// DefaultConversationTitle is sent when no title is configured.
	DefaultConversationTitle = "New Chat"

	loginPath         = "/chat/login/"
	conversationsPath = "/chat/conversations/"

	maxResponseBytes = 1 << 20
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type createConversationRequest struct {
	Title string `json:"title"`
}

type conversationResponse struct {
	ID ConversationID `json:"id"`
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

type sendMessageResponse struct {
	Message string `json:"message"`
}

// errorResponse covers the error bodies the backend produces.
type errorResponse struct {
	Detail         string   `json:"detail"`
	Error          string   `json:"error"`
	NonFieldErrors []string `json:"non_field_errors"`
}

func (e errorResponse) message() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case e.Error != "":
		return e.Error
	case len(e.NonFieldErrors) > 0:
		return e.NonFieldErrors[0]
	default:
		return ""
	}
}

// Client talks to the chat backend. It holds no session state; every
// operation takes the Session it acts on.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryPolicy
	sleep      SleepFunc
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRequestTimeout bounds each individual request. Zero leaves requests
// unbounded apart from the context. The client in use is copied, so a shared
// http.Client passed to WithHTTPClient is left untouched.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithRetryPolicy overrides the login retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

// WithSleep replaces the wait used between login attempts.
func WithSleep(fn SleepFunc) Option {
	return func(c *Client) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client for the backend rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		retry:      DefaultRetryPolicy(),
		sleep:      sleepContext,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Authenticate logs in and returns a new authenticated Session.
//
// Transport failures are retried up to RetryPolicy.MaxAttempts times with a
// linear wait before each retry. Any response from the server, including a
// rejection, ends the sequence immediately.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (*Session, error) {
	c.logger.Debug().
		Str("url", c.baseURL+loginPath).
		Str("username", creds.Username).
		Str("state", StateAuthenticating.String()).
		Msg("attempting login")

	delays := c.retry.Schedule()
	for attempt := 0; ; attempt++ {
		token, err := c.login(ctx, creds)
		if err == nil {
			c.logger.Debug().Int("attempt", attempt+1).Msg("login successful")
			return &Session{AuthToken: token}, nil
		}
		if !IsRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
		if attempt >= len(delays) {
			c.logger.Warn().Err(err).Int("attempts", attempt+1).Msg("giving up on login")
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt+1, err)
		}

		delay := delays[attempt]
		c.logger.Debug().Err(err).Int("retry", attempt+1).Dur("delay", delay).Msg("login unreachable, retrying")
		if err := c.sleep(ctx, delay); err != nil {
			return nil, &Error{Op: OpLogin, Kind: KindUnknown, Err: err}
		}
	}
}

func (c *Client) login(ctx context.Context, creds Credentials) (string, error) {
	var out loginResponse
	req := loginRequest{Username: creds.Username, Password: creds.Password}
	if err := c.do(ctx, OpLogin, loginPath, "", req, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", &Error{Op: OpLogin, Kind: KindAuthRejected, Status: http.StatusOK, Detail: "login response contained no token"}
	}
	return out.Token, nil
}

// StartConversation creates a conversation and records its id in sess.
// A 401 clears the session's auth so the caller knows to log in again.
func (c *Client) StartConversation(ctx context.Context, sess *Session, title string) (ConversationID, error) {
	if !sess.Authenticated() {
		return "", &Error{Op: OpCreateConversation, Kind: KindPrecondition, Err: ErrNotAuthenticated}
	}
	if strings.TrimSpace(title) == "" {
		title = DefaultConversationTitle
	}

	var out conversationResponse
	err := c.do(ctx, OpCreateConversation, conversationsPath, sess.AuthToken, createConversationRequest{Title: title}, &out)
	if err != nil {
		if KindOf(err) == KindAuthExpired {
			sess.Reset()
		}
		return "", err
	}
	if out.ID == "" {
		return "", &Error{Op: OpCreateConversation, Kind: KindRequestFailed, Status: http.StatusOK, Detail: "response contained no conversation id"}
	}

	sess.ConversationID = out.ID
	c.logger.Debug().Str("conversation", out.ID.String()).Msg("conversation created")
	return out.ID, nil
}

// SendMessage relays text and returns the reply. Blank text is ignored:
// the result is nil, nil and no request is made.
func (c *Client) SendMessage(ctx context.Context, sess *Session, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if !sess.Authenticated() {
		return nil, &Error{Op: OpSendMessage, Kind: KindPrecondition, Err: ErrNotAuthenticated}
	}
	if sess.ConversationID == "" {
		return nil, &Error{Op: OpSendMessage, Kind: KindPrecondition, Err: ErrNoConversation}
	}

	path := conversationsPath + url.PathEscape(sess.ConversationID.String()) + "/send_message/"
	c.logger.Debug().Str("url", c.baseURL+path).Str("preview", preview(text, 50)).Msg("sending message")

	var out sendMessageResponse
	if err := c.do(ctx, OpSendMessage, path, sess.AuthToken, sendMessageRequest{Message: text}, &out); err != nil {
		if KindOf(err) == KindAuthExpired {
			sess.Reset()
		}
		return nil, err
	}
	return &Reply{Text: out.Message}, nil
}

// Bootstrap runs the whole login and conversation sequence. The returned
// session reflects how far the sequence got, even on error.
func (c *Client) Bootstrap(ctx context.Context, creds Credentials, title string) (*Session, error) {
	sess, err := c.Authenticate(ctx, creds)
	if err != nil {
		return &Session{}, err
	}
	if _, err := c.StartConversation(ctx, sess, title); err != nil {
		return sess, err
	}
	return sess, nil
}

// do performs one JSON POST and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, op, path, token string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return &Error{Op: op, Kind: KindUnknown, Err: fmt.Errorf("marshaling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &Error{Op: op, Kind: KindUnknown, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return &Error{Op: op, Kind: KindUnknown, Err: ctx.Err()}
		}
		return &Error{Op: op, Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Op: op, Kind: KindTransport, Status: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody errorResponse
		_ = json.Unmarshal(body, &errBody)
		kind := kindForStatus(resp.StatusCode)
		if op == OpLogin && resp.StatusCode < 500 {
			kind = KindAuthRejected
		}
		c.logger.Debug().Str("op", op).Int("status", resp.StatusCode).Str("kind", kind.String()).Msg("request rejected")
		return &Error{Op: op, Kind: kind, Status: resp.StatusCode, Detail: errBody.message()}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Op: op, Kind: KindRequestFailed, Status: resp.StatusCode, Err: fmt.Errorf("parsing response: %w", err)}
	}
	return nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
