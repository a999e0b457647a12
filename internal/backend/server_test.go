package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/longkey1/avatarchat/internal/avatarchat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	demoUser     = "demo_user"
	demoPassword = "demo_password"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "chat.db"), WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestServer(t *testing.T, responder Responder) (*httptest.Server, *SQLiteStore) {
	t.Helper()
	store := newTestStore(t)
	_, _, err := store.EnsureUser(context.Background(), demoUser, demoPassword)
	require.NoError(t, err)

	srv := httptest.NewServer(NewServer(store, responder).Routes())
	t.Cleanup(srv.Close)
	return srv, store
}

func doJSON(t *testing.T, method, url, token, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestClientAgainstServer(t *testing.T) {
	srv, _ := newTestServer(t, EchoResponder{})
	client := avatarchat.NewClient(srv.URL)
	ctx := context.Background()

	sess, err := client.Bootstrap(ctx, avatarchat.Credentials{Username: demoUser, Password: demoPassword}, "")
	require.NoError(t, err)
	assert.Equal(t, avatarchat.StateConversationReady, sess.State())
	assert.Len(t, sess.AuthToken, 40)

	reply, err := client.SendMessage(ctx, sess, "hello")
	require.NoError(t, err)
	assert.Equal(t, "You said: hello", reply.Text)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/chat/conversations/"+sess.ConversationID.String()+"/", sess.AuthToken, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, avatarchat.DefaultConversationTitle, body["title"])
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].(map[string]any)["role"])
	assert.Equal(t, "You said: hello", messages[1].(map[string]any)["content"])

	again, err := client.Authenticate(ctx, avatarchat.Credentials{Username: demoUser, Password: demoPassword})
	require.NoError(t, err)
	assert.Equal(t, sess.AuthToken, again.AuthToken, "token is reused across logins")
}

func TestClientBadCredentials(t *testing.T) {
	srv, _ := newTestServer(t, EchoResponder{})
	client := avatarchat.NewClient(srv.URL)

	sess, err := client.Bootstrap(context.Background(), avatarchat.Credentials{Username: demoUser, Password: "wrong"}, "")
	require.Error(t, err)
	assert.Equal(t, avatarchat.StateUnauthenticated, sess.State())
	assert.Equal(t, avatarchat.KindAuthRejected, avatarchat.KindOf(err))
	assert.Equal(t, "Unable to log in with provided credentials.", avatarchat.UserMessage(err))
}

func TestClientRevokedToken(t *testing.T) {
	srv, _ := newTestServer(t, EchoResponder{})
	client := avatarchat.NewClient(srv.URL)

	sess := &avatarchat.Session{AuthToken: "not-a-real-token", ConversationID: "1"}
	_, err := client.SendMessage(context.Background(), sess, "hello")
	require.Error(t, err)
	assert.Equal(t, avatarchat.KindAuthExpired, avatarchat.KindOf(err))
	assert.Equal(t, avatarchat.StateUnauthenticated, sess.State())
}

func TestResponderFailureFallsBack(t *testing.T) {
	failing := ResponderFunc(func(context.Context, []avatarchat.Message, string) (string, error) {
		return "", errors.New("model offline")
	})
	srv, _ := newTestServer(t, failing)
	client := avatarchat.NewClient(srv.URL)
	ctx := context.Background()

	sess, err := client.Bootstrap(ctx, avatarchat.Credentials{Username: demoUser, Password: demoPassword}, "fallback")
	require.NoError(t, err)

	reply, err := client.SendMessage(ctx, sess, "anyone there?")
	require.NoError(t, err)
	assert.Equal(t, FallbackReply, reply.Text)
}

func TestResponderReceivesHistory(t *testing.T) {
	var seen [][]avatarchat.Message
	recording := ResponderFunc(func(_ context.Context, history []avatarchat.Message, message string) (string, error) {
		seen = append(seen, history)
		return "ack " + message, nil
	})
	srv, _ := newTestServer(t, recording)
	client := avatarchat.NewClient(srv.URL)
	ctx := context.Background()

	sess, err := client.Bootstrap(ctx, avatarchat.Credentials{Username: demoUser, Password: demoPassword}, "")
	require.NoError(t, err)
	_, err = client.SendMessage(ctx, sess, "one")
	require.NoError(t, err)
	_, err = client.SendMessage(ctx, sess, "two")
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Empty(t, seen[0])
	require.Len(t, seen[1], 2)
	assert.Equal(t, "one", seen[1][0].Content)
	assert.Equal(t, "ack one", seen[1][1].Content)
}

func TestServerErrors(t *testing.T) {
	srv, store := newTestServer(t, EchoResponder{})
	ctx := context.Background()

	owner, err := store.CheckPassword(ctx, demoUser, demoPassword)
	require.NoError(t, err)
	token, err := store.IssueToken(ctx, owner.ID)
	require.NoError(t, err)
	conv, err := store.CreateConversation(ctx, owner.ID, "mine")
	require.NoError(t, err)

	intruder, _, err := store.EnsureUser(ctx, "intruder", "secret")
	require.NoError(t, err)
	intruderToken, err := store.IssueToken(ctx, intruder.ID)
	require.NoError(t, err)

	sendPath := "/chat/conversations/" + strconv.FormatInt(conv.ID, 10) + "/send_message/"

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		body       string
		wantStatus int
		wantKey    string
		wantValue  any
	}{
		{
			name:       "login missing fields",
			method:     http.MethodPost,
			path:       "/chat/login/",
			body:       `{"username":"demo_user"}`,
			wantStatus: http.StatusBadRequest,
			wantKey:    "non_field_errors",
		},
		{
			name:       "no token",
			method:     http.MethodPost,
			path:       "/chat/conversations/",
			body:       `{}`,
			wantStatus: http.StatusUnauthorized,
			wantKey:    "detail",
			wantValue:  "Authentication credentials were not provided.",
		},
		{
			name:       "unknown token",
			method:     http.MethodGet,
			path:       "/chat/conversations/",
			token:      "deadbeef",
			wantStatus: http.StatusUnauthorized,
			wantKey:    "detail",
			wantValue:  "Invalid token.",
		},
		{
			name:       "empty message",
			method:     http.MethodPost,
			path:       sendPath,
			token:      token,
			body:       `{"message":"   "}`,
			wantStatus: http.StatusBadRequest,
			wantKey:    "error",
			wantValue:  "Message content is required",
		},
		{
			name:       "someone else's conversation",
			method:     http.MethodPost,
			path:       sendPath,
			token:      intruderToken,
			body:       `{"message":"hi"}`,
			wantStatus: http.StatusNotFound,
			wantKey:    "detail",
			wantValue:  "Not found.",
		},
		{
			name:       "non-numeric id",
			method:     http.MethodGet,
			path:       "/chat/conversations/abc/",
			token:      token,
			wantStatus: http.StatusNotFound,
			wantKey:    "detail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, tt.method, srv.URL+tt.path, tt.token, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			require.Contains(t, body, tt.wantKey)
			if tt.wantValue != nil {
				assert.Equal(t, tt.wantValue, body[tt.wantKey])
			}
		})
	}
}

func TestListConversations(t *testing.T) {
	srv, store := newTestServer(t, EchoResponder{})
	ctx := context.Background()

	user, err := store.CheckPassword(ctx, demoUser, demoPassword)
	require.NoError(t, err)
	token, err := store.IssueToken(ctx, user.ID)
	require.NoError(t, err)
	first, err := store.CreateConversation(ctx, user.ID, "first")
	require.NoError(t, err)
	_, err = store.CreateConversation(ctx, user.ID, "second")
	require.NoError(t, err)
	require.NoError(t, store.AddMessage(ctx, first.ID, "user", "bump"))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/chat/conversations/", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Token "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []conversationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Title, "most recently updated first")
	assert.Len(t, list[0].Messages, 1)
}

func TestHealthAndCORS(t *testing.T) {
	store := newTestStore(t)
	srv := httptest.NewServer(NewServer(store, EchoResponder{}, WithAllowedOrigins([]string{"https://avatar.example"})).Routes())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/chat/login/", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://avatar.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://avatar.example", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Authorization")
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	req.Header.Set("Origin", "https://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
