package avatarchat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ConversationID is the backend's opaque conversation identifier.
// The backend may send it as a JSON number or string; both decode to their
// textual form.
type ConversationID string

// UnmarshalJSON accepts numbers and strings.
func (id *ConversationID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ConversationID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("conversation id must be a string or number: %w", err)
	}
	*id = ConversationID(n.String())
	return nil
}

// MarshalJSON writes integer ids as numbers and everything else as strings.
func (id ConversationID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ConversationID) String() string {
	return string(id)
}

// State is the position of a session in the bootstrap sequence.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateConversationReady
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateConversationReady:
		return "conversation-ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session holds the auth token and active conversation for one client run.
// The zero value is an unauthenticated session. Empty fields mean absent.
type Session struct {
	AuthToken      string
	ConversationID ConversationID
}

// State derives the bootstrap state from the fields that are present.
func (s *Session) State() State {
	switch {
	case s == nil || s.AuthToken == "":
		return StateUnauthenticated
	case s.ConversationID == "":
		return StateAuthenticated
	default:
		return StateConversationReady
	}
}

// Authenticated reports whether a token is present.
func (s *Session) Authenticated() bool {
	return s != nil && s.AuthToken != ""
}

// Ready reports whether a message may be sent.
func (s *Session) Ready() bool {
	return s.State() == StateConversationReady
}

// Reset drops the token and the conversation, returning the session to
// StateUnauthenticated.
func (s *Session) Reset() {
	s.AuthToken = ""
	s.ConversationID = ""
}
