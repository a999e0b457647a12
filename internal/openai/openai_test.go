package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/longkey1/avatarchat/internal/avatarchat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatHistory(t *testing.T) {
	history := []avatarchat.Message{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
	}
	got := FormatHistory(history, "how are you?")
	want := "User: hello\nAssistant: hi there\nUser: how are you?\nAssistant: "
	assert.Equal(t, want, got)
}

func TestRespond(t *testing.T) {
	var received ResponsesAPIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/responses", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = w.Write([]byte(`{"output":[{"type":"reasoning","content":[]},{"type":"message","content":[{"type":"output_text","text":" hi there \n"}]}]}`))
	}))
	defer srv.Close()

	r := NewResponder(Config{BaseURL: srv.URL + "/v1", Token: "sk-test", SystemPrompt: "Be brief."}, srv.Client())
	reply, err := r.Respond(context.Background(), nil, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", reply)
	assert.Equal(t, DefaultModel, received.Model)
	assert.Equal(t, "Be brief.", received.Instructions)
	assert.Equal(t, "User: hello\nAssistant: ", received.Input)
	assert.Equal(t, "openai:"+DefaultModel, r.Name())
}

func TestRespondErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "api error", status: http.StatusUnauthorized, body: `{"error":{"type":"invalid_request_error","message":"bad key"}}`, want: "API error (HTTP 401): bad key"},
		{name: "raw error", status: http.StatusBadGateway, body: `upstream`, want: "API error (HTTP 502): upstream"},
		{name: "empty output", status: http.StatusOK, body: `{"output":[]}`, want: "no content in response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewResponder(Config{BaseURL: srv.URL, Token: "sk-test"}, nil).Respond(context.Background(), nil, "hello")
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}

	_, err := NewResponder(Config{}, nil).Respond(context.Background(), nil, "hello")
	assert.Error(t, err)
}
