package cmd

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/chzyer/readline"
	"github.com/longkey1/avatarchat/internal/avatarchat"
	"github.com/longkey1/avatarchat/internal/avatarchat/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readResult struct {
	line string
	err  error
}

// scriptedInput replays lines and then reports EOF.
type scriptedInput struct {
	results []readResult
}

func lines(ls ...string) *scriptedInput {
	in := &scriptedInput{}
	for _, l := range ls {
		in.results = append(in.results, readResult{line: l})
	}
	return in
}

func (s *scriptedInput) Readline() (string, error) {
	if len(s.results) == 0 {
		return "", io.EOF
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r.line, r.err
}

type fakeRelay struct {
	sent       []string
	sendErrs   []error // consumed one per send; nil entries succeed
	bootstraps int
	bootErr    error
	nextConv   avatarchat.ConversationID
}

func (f *fakeRelay) Bootstrap(ctx context.Context, creds avatarchat.Credentials, title string) (*avatarchat.Session, error) {
	f.bootstraps++
	if f.bootErr != nil {
		return &avatarchat.Session{}, f.bootErr
	}
	return &avatarchat.Session{AuthToken: "fresh-token", ConversationID: f.nextConv}, nil
}

func (f *fakeRelay) SendMessage(ctx context.Context, sess *avatarchat.Session, text string) (*avatarchat.Reply, error) {
	f.sent = append(f.sent, text)
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &avatarchat.Reply{Text: "echo: " + text}, nil
}

type chatFixture struct {
	chat   *interactiveChat
	relay  *fakeRelay
	store  *transcript.Store
	out    *bytes.Buffer
	status *bytes.Buffer
}

func newChatFixture(t *testing.T, in lineReader) *chatFixture {
	t.Helper()
	store := transcript.NewStore(filepath.Join(t.TempDir(), "transcripts"))
	tr := transcript.New("http://localhost:10000", "demo_user")
	tr.ConversationID = "1"

	f := &chatFixture{
		relay:  &fakeRelay{nextConv: "2"},
		store:  store,
		out:    &bytes.Buffer{},
		status: &bytes.Buffer{},
	}
	f.chat = &interactiveChat{
		relay:   f.relay,
		creds:   avatarchat.Credentials{Username: "demo_user", Password: "demo_password"},
		title:   "New Conversation",
		baseURL: "http://localhost:10000",
		sess:    &avatarchat.Session{AuthToken: "token", ConversationID: "1"},
		tr:      tr,
		store:   store,
		in:      in,
		out:     f.out,
		status:  f.status,
	}
	return f
}

func TestInteractiveChatRelaysAndRecords(t *testing.T) {
	f := newChatFixture(t, lines("hello", "/exit", "never read"))

	require.NoError(t, f.chat.run(context.Background()))

	assert.Equal(t, []string{"hello"}, f.relay.sent)
	assert.Contains(t, f.out.String(), "Avatar> echo: hello")
	assert.Contains(t, f.status.String(), "Goodbye!")

	saved, err := f.store.Load(f.chat.tr.ID)
	require.NoError(t, err)
	require.Equal(t, 2, saved.MessageCount())
	assert.Equal(t, "hello", saved.Messages[0].Content)
	assert.Equal(t, "echo: hello", saved.Messages[1].Content)
}

func TestInteractiveChatSkipsBlankInput(t *testing.T) {
	in := lines("", "   ", "\t")
	in.results = append(in.results, readResult{line: "", err: readline.ErrInterrupt})
	f := newChatFixture(t, in)

	require.NoError(t, f.chat.run(context.Background()))

	assert.Empty(t, f.relay.sent)
	assert.Empty(t, f.out.String())
	assert.Equal(t, 0, f.chat.tr.MessageCount())
}

func TestInteractiveChatInterruptWithTextContinues(t *testing.T) {
	in := &scriptedInput{results: []readResult{
		{line: "half typed", err: readline.ErrInterrupt},
		{line: "hi"},
	}}
	f := newChatFixture(t, in)

	require.NoError(t, f.chat.run(context.Background()))

	assert.Equal(t, []string{"hi"}, f.relay.sent)
}

func TestInteractiveChatReauthenticatesOnExpiry(t *testing.T) {
	f := newChatFixture(t, lines("hello"))
	oldTranscript := f.chat.tr.ID
	f.relay.sendErrs = []error{&avatarchat.Error{
		Op:     avatarchat.OpSendMessage,
		Kind:   avatarchat.KindAuthExpired,
		Status: 401,
	}}

	require.NoError(t, f.chat.run(context.Background()))

	assert.Equal(t, 1, f.relay.bootstraps)
	assert.Equal(t, []string{"hello"}, f.relay.sent, "a failed send is not repeated")
	assert.Equal(t, avatarchat.ConversationID("2"), f.chat.sess.ConversationID)
	assert.Contains(t, f.status.String(), "Authentication expired")
	assert.Contains(t, f.status.String(), "Please send it again.")
	assert.Empty(t, f.out.String())

	assert.NotEqual(t, oldTranscript, f.chat.tr.ID, "new conversation gets a new transcript")
	assert.Equal(t, avatarchat.ConversationID("2"), f.chat.tr.ConversationID)
	assert.Equal(t, 0, f.chat.tr.MessageCount())
}

func TestInteractiveChatResendAfterReauthentication(t *testing.T) {
	f := newChatFixture(t, lines("hello", "hello"))
	f.relay.sendErrs = []error{&avatarchat.Error{Op: avatarchat.OpSendMessage, Kind: avatarchat.KindAuthExpired, Status: 401}}

	require.NoError(t, f.chat.run(context.Background()))

	assert.Equal(t, 1, f.relay.bootstraps)
	assert.Equal(t, []string{"hello", "hello"}, f.relay.sent, "one request per line typed")
	assert.Contains(t, f.out.String(), "Avatar> echo: hello")
	assert.Equal(t, 2, f.chat.tr.MessageCount())
}

func TestInteractiveChatReauthenticationFails(t *testing.T) {
	f := newChatFixture(t, lines("hello"))
	f.relay.sendErrs = []error{&avatarchat.Error{Op: avatarchat.OpSendMessage, Kind: avatarchat.KindAuthExpired, Status: 401}}
	f.relay.bootErr = &avatarchat.Error{Op: avatarchat.OpLogin, Kind: avatarchat.KindTransport}

	require.NoError(t, f.chat.run(context.Background()))

	assert.Equal(t, []string{"hello"}, f.relay.sent)
	assert.Contains(t, f.status.String(), "Unable to connect to server.")
	assert.NotContains(t, f.status.String(), "Please send it again.")
	assert.Empty(t, f.out.String())
}

func TestInteractiveChatReportsSendFailures(t *testing.T) {
	f := newChatFixture(t, lines("first", "second"))
	f.relay.sendErrs = []error{&avatarchat.Error{
		Op:     avatarchat.OpSendMessage,
		Kind:   avatarchat.KindUnavailable,
		Status: 503,
	}}

	require.NoError(t, f.chat.run(context.Background()))

	assert.Contains(t, f.status.String(), "The server is temporarily unavailable.")
	assert.NotContains(t, f.out.String(), "echo: first")
	assert.Contains(t, f.out.String(), "Avatar> echo: second")
	require.Equal(t, 2, f.chat.tr.MessageCount(), "only the successful exchange is recorded")
	assert.Equal(t, "second", f.chat.tr.Messages[0].Content)
	assert.Equal(t, 0, f.relay.bootstraps)
}

func TestInteractiveChatCommands(t *testing.T) {
	f := newChatFixture(t, nil)
	ctx := context.Background()

	assert.True(t, f.chat.handleCommand(ctx, "/help"))
	assert.Contains(t, f.status.String(), "Available commands:")

	assert.True(t, f.chat.handleCommand(ctx, "/INFO"))
	assert.Contains(t, f.status.String(), "State: conversation-ready")
	assert.Contains(t, f.status.String(), "Username: demo_user")

	assert.True(t, f.chat.handleCommand(ctx, "/new"))
	assert.Equal(t, 1, f.relay.bootstraps)
	assert.Equal(t, avatarchat.ConversationID("2"), f.chat.sess.ConversationID)

	assert.True(t, f.chat.handleCommand(ctx, "/bogus"))
	assert.Contains(t, f.status.String(), "Unknown command: /bogus")

	for _, cmd := range []string{"/exit", "/quit", "/q"} {
		assert.False(t, f.chat.handleCommand(ctx, cmd), cmd)
	}
}

func TestInteractiveChatWithoutTranscript(t *testing.T) {
	f := newChatFixture(t, lines("hello"))
	f.chat.tr = nil
	f.chat.store = nil

	require.NoError(t, f.chat.run(context.Background()))

	assert.Contains(t, f.out.String(), "Avatar> echo: hello")
	entries, err := f.store.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStartSpinnerStops(t *testing.T) {
	var buf bytes.Buffer
	stop := startSpinner(&buf)
	stop()
	assert.Contains(t, buf.String(), "Waiting for response...")
	assert.Contains(t, buf.String(), "\033[K")
}
