package cmd

import (
	"context"
	"fmt"

	"github.com/longkey1/avatarchat/internal/avatarchat"
	"github.com/longkey1/avatarchat/internal/avatarchat/config"
	"github.com/longkey1/avatarchat/internal/avatarchat/transcript"
	"github.com/longkey1/avatarchat/internal/logging"
)

// clientSetup is what every backend-facing command needs.
type clientSetup struct {
	cfg    *config.Config
	client *avatarchat.Client
	creds  avatarchat.Credentials
}

// newClientSetup loads the configuration and builds a client for the resolved backend.
func newClientSetup() (*clientSetup, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	url, err := cfg.ResolveBaseURL()
	if err != nil {
		return nil, err
	}

	creds, err := cfg.GetCredentials()
	if err != nil {
		return nil, err
	}

	client := avatarchat.NewClient(url,
		avatarchat.WithRequestTimeout(cfg.RequestTimeout),
		avatarchat.WithRetryPolicy(cfg.RetryPolicy()),
		avatarchat.WithLogger(logging.Stderr(verbose)),
	)

	return &clientSetup{cfg: cfg, client: client, creds: creds}, nil
}

// bootstrap logs in and opens a new conversation.
func (s *clientSetup) bootstrap(ctx context.Context) (*avatarchat.Session, error) {
	sess, err := s.client.Bootstrap(ctx, s.creds, s.cfg.ConversationTitle)
	if err != nil {
		return sess, statusError(err)
	}
	return sess, nil
}

// resume logs in and reattaches to the conversation recorded in tr,
// opening a new one if tr has none yet.
func (s *clientSetup) resume(ctx context.Context, tr *transcript.Transcript) (*avatarchat.Session, error) {
	if tr.BaseURL != "" && tr.BaseURL != s.client.BaseURL() {
		return nil, fmt.Errorf("transcript %s belongs to %s, not %s", tr.GetShortID(), tr.BaseURL, s.client.BaseURL())
	}

	sess, err := s.client.Authenticate(ctx, s.creds)
	if err != nil {
		return nil, statusError(err)
	}
	if tr.ConversationID != "" {
		sess.ConversationID = tr.ConversationID
		return sess, nil
	}
	if _, err := s.client.StartConversation(ctx, sess, s.cfg.ConversationTitle); err != nil {
		return nil, statusError(err)
	}
	tr.ConversationID = sess.ConversationID
	return sess, nil
}

// userFacingError shows the status line for a client failure while keeping
// the original error in the chain.
type userFacingError struct {
	err error
}

func (e *userFacingError) Error() string {
	return avatarchat.UserMessage(e.err)
}

func (e *userFacingError) Unwrap() error {
	return e.err
}

func statusError(err error) error {
	if err == nil {
		return nil
	}
	return &userFacingError{err: err}
}
