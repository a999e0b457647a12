package avatarchat

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSessionState(t *testing.T) {
	tests := []struct {
		name  string
		sess  *Session
		want  State
		ready bool
	}{
		{name: "nil", sess: nil, want: StateUnauthenticated},
		{name: "empty", sess: &Session{}, want: StateUnauthenticated},
		{name: "conversation without token", sess: &Session{ConversationID: "42"}, want: StateUnauthenticated},
		{name: "token only", sess: &Session{AuthToken: "abc"}, want: StateAuthenticated},
		{name: "ready", sess: &Session{AuthToken: "abc", ConversationID: "42"}, want: StateConversationReady, ready: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sess.State(); got != tt.want {
				t.Errorf("State() = %v, want %v", got, tt.want)
			}
			if got := tt.sess.Ready(); got != tt.ready {
				t.Errorf("Ready() = %v, want %v", got, tt.ready)
			}
		})
	}
}

func TestSessionReset(t *testing.T) {
	sess := &Session{AuthToken: "abc", ConversationID: "42"}
	sess.Reset()
	if sess.State() != StateUnauthenticated {
		t.Errorf("State() after Reset = %v, want %v", sess.State(), StateUnauthenticated)
	}
}

func TestConversationIDJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ConversationID
		wantErr bool
	}{
		{name: "number", input: `{"id":42}`, want: "42"},
		{name: "string", input: `{"id":"c0ffee"}`, want: "c0ffee"},
		{name: "null", input: `{"id":null}`, want: ""},
		{name: "missing", input: `{}`, want: ""},
		{name: "object", input: `{"id":{}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out conversationResponse
			err := json.Unmarshal([]byte(tt.input), &out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if out.ID != tt.want {
				t.Errorf("ID = %q, want %q", out.ID, tt.want)
			}
		})
	}

	data, err := json.Marshal(conversationResponse{ID: "42"})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"id":42}` {
		t.Errorf("Marshal() = %s, want numeric id", data)
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	p := DefaultRetryPolicy()
	tests := []struct {
		n    int
		want time.Duration
	}{
		{n: 0, want: 0},
		{n: 1, want: time.Second},
		{n: 2, want: 2 * time.Second},
		{n: 3, want: 3 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.n); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}

	schedule := p.Schedule()
	if len(schedule) != DefaultMaxAttempts {
		t.Fatalf("Schedule() has %d entries, want %d", len(schedule), DefaultMaxAttempts)
	}
	if schedule[2] != 3*time.Second {
		t.Errorf("last delay = %v, want 3s", schedule[2])
	}
}
