package avatarchat

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failure for control flow. User-facing wording is
// produced separately by UserMessage.
type Kind int

const (
	KindUnknown Kind = iota
	// KindTransport means the server could not be reached at all.
	KindTransport
	// KindAuthRejected means the login was refused or returned no token.
	KindAuthRejected
	// KindAuthExpired means an authenticated call got a 401.
	KindAuthExpired
	// KindUnavailable means a gateway reported the upstream down (502, 503, 504).
	KindUnavailable
	// KindRequestFailed is any other non-2xx response.
	KindRequestFailed
	// KindPrecondition means the session was not in a state that allows the call.
	KindPrecondition
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAuthRejected:
		return "auth-rejected"
	case KindAuthExpired:
		return "auth-expired"
	case KindUnavailable:
		return "unavailable"
	case KindRequestFailed:
		return "request-failed"
	case KindPrecondition:
		return "precondition"
	default:
		return "unknown"
	}
}

var (
	// ErrNotAuthenticated is returned when a call needs a token the session lacks.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNoConversation is returned when a send is attempted before a conversation exists.
	ErrNoConversation = errors.New("no active conversation")
	// ErrRetriesExhausted wraps the last transport error once login gives up.
	ErrRetriesExhausted = errors.New("login retries exhausted")
)

// Error is the failure type returned by Client operations.
type Error struct {
	Op     string // "login", "create conversation", "send message"
	Kind   Kind
	Status int    // HTTP status, 0 when no response was received
	Detail string // server-provided message, if any
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	switch {
	case e.Detail != "":
		b.WriteString(e.Detail)
	case e.Status != 0:
		fmt.Fprintf(&b, "%s (HTTP %d)", e.Kind, e.Status)
	default:
		b.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether the login loop may try again after err.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransport
}

// kindForStatus maps a non-2xx status on an authenticated call.
func kindForStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized:
		return KindAuthExpired
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return KindUnavailable
	default:
		return KindRequestFailed
	}
}

// UserMessage renders err as a status line for a human.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}

	switch e.Op {
	case OpLogin:
		switch e.Kind {
		case KindTransport:
			return "Unable to connect to server. Please check your internet connection."
		case KindAuthRejected, KindRequestFailed, KindUnavailable:
			if e.Detail != "" {
				return e.Detail
			}
			if e.Status != 0 {
				return fmt.Sprintf("Login failed (%d)", e.Status)
			}
			return "Login failed. Please try again."
		}
	case OpCreateConversation:
		switch e.Kind {
		case KindPrecondition:
			return "Error: Not authenticated. Please log in again."
		case KindAuthExpired:
			return "Authentication expired. Please log in again."
		case KindTransport:
			return "Failed to create conversation. Please check your internet connection."
		default:
			return "Failed to create conversation"
		}
	case OpSendMessage:
		const prefix = "Failed to send message. "
		switch e.Kind {
		case KindPrecondition:
			return "Error: Not properly connected. Please log in again."
		case KindTransport:
			return prefix + "Please check your internet connection."
		case KindUnavailable:
			return prefix + "The server is temporarily unavailable. Please try again in a few moments."
		case KindAuthExpired:
			return prefix + "Authentication expired. Please log in again."
		default:
			if e.Detail != "" {
				return prefix + e.Detail
			}
			return prefix + fmt.Sprintf("Server error: %d", e.Status)
		}
	}
	return e.Error()
}
