package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"github.com/longkey1/avatarchat/internal/avatarchat"
	"github.com/longkey1/avatarchat/internal/avatarchat/transcript"
	"github.com/spf13/cobra"
)

var noTranscript bool

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start [transcript-id]",
	Short: "Start an interactive chat",
	Long: `Start an interactive chat with continuous conversation.

A new conversation is opened on the backend and recorded in a new transcript,
unless a transcript ID is given, in which case its conversation is continued.
The ID can be a short ID (minimum 4 characters), full UUID, or "latest" for the most recent transcript.

Examples:
  avatarchat start                # Start a new interactive chat
  avatarchat start 550e8400       # Continue transcript 550e8400
  avatarchat start latest         # Continue the latest transcript`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setup, err := newClientSetup()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		var store *transcript.Store
		if !noTranscript || len(args) > 0 {
			store, err = transcript.OpenDefault()
			if err != nil {
				return err
			}
		}

		var (
			sess *avatarchat.Session
			tr   *transcript.Transcript
		)
		if len(args) > 0 {
			tr, err = store.FindByPrefix(args[0])
			if err != nil {
				return fmt.Errorf("finding transcript: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Connecting to %s...\n", setup.client.BaseURL())
			sess, err = setup.resume(ctx, tr)
			if err != nil {
				return err
			}
		} else {
			fmt.Fprintf(os.Stderr, "Connecting to %s...\n", setup.client.BaseURL())
			sess, err = setup.bootstrap(ctx)
			if err != nil {
				return err
			}
			if !noTranscript {
				tr = transcript.New(setup.client.BaseURL(), setup.creds.Username)
				tr.ConversationID = sess.ConversationID
			}
		}
		if noTranscript {
			store = nil
		}

		rl, err := readline.NewEx(&readline.Config{
			Prompt:          "You> ",
			HistoryFile:     historyFile(),
			InterruptPrompt: "^C",
			EOFPrompt:       "/exit",
			Stdout:          os.Stderr,
		})
		if err != nil {
			return fmt.Errorf("initializing input: %w", err)
		}
		defer rl.Close()

		chat := &interactiveChat{
			relay:   setup.client,
			creds:   setup.creds,
			title:   setup.cfg.ConversationTitle,
			baseURL: setup.client.BaseURL(),
			sess:    sess,
			tr:      tr,
			store:   store,
			in:      rl,
			out:     os.Stdout,
			status:  os.Stderr,
			spinner: true,
		}
		if err := chat.run(ctx); err != nil {
			return fmt.Errorf("interactive mode: %w", err)
		}
		return nil
	},
}

// historyFile returns where readline keeps input history, or "" to disable it.
func historyFile() string {
	dir, err := transcript.DefaultDir()
	if err != nil {
		return ""
	}
	return filepath.Join(filepath.Dir(dir), "history")
}

// lineReader is the part of *readline.Instance the loop uses.
type lineReader interface {
	Readline() (string, error)
}

// interactiveChat runs the read-send-print loop over an established session.
type interactiveChat struct {
	relay   avatarchat.Relay
	creds   avatarchat.Credentials
	title   string
	baseURL string

	sess  *avatarchat.Session
	tr    *transcript.Transcript // nil when not recording
	store *transcript.Store      // nil when not recording

	in      lineReader
	out     io.Writer
	status  io.Writer
	spinner bool
}

func (c *interactiveChat) run(ctx context.Context) error {
	c.printHeader()

	for {
		line, err := c.in.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				fmt.Fprintln(c.status, "Goodbye!")
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(c.status, "\nGoodbye!")
			return nil
		}
		if err != nil {
			return fmt.Errorf("input error: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if !c.handleCommand(ctx, input) {
				return nil
			}
			continue
		}

		if ctx.Err() != nil {
			return nil
		}
		c.send(ctx, input)
	}
}

func (c *interactiveChat) printHeader() {
	fmt.Fprintf(c.status, "\n=== Interactive Chat [conversation %s] ===\n", c.sess.ConversationID)
	fmt.Fprintf(c.status, "Backend: %s\n", c.baseURL)
	if c.tr != nil {
		fmt.Fprintf(c.status, "Transcript: %s\n", c.tr.GetShortID())
	}
	fmt.Fprintf(c.status, "Type '/help' for commands, '/exit' or 'Ctrl+D' to quit\n")
	fmt.Fprintf(c.status, "==========================================\n\n")
}

// send relays input once. When the backend reports expired auth the session
// is re-established, but the message is left for the user to send again.
func (c *interactiveChat) send(ctx context.Context, input string) {
	reply, err := c.sendWithSpinner(ctx, input)
	if err != nil {
		fmt.Fprintln(c.status, avatarchat.UserMessage(err))
		if avatarchat.KindOf(err) == avatarchat.KindAuthExpired {
			fmt.Fprintln(c.status, "Logging in again...")
			if c.reconnect(ctx) {
				fmt.Fprintln(c.status, "Your message was not sent. Please send it again.")
			}
		}
		return
	}
	if reply == nil {
		return
	}

	fmt.Fprintf(c.out, "\nAvatar> %s\n\n", reply.Text)

	if c.tr != nil && c.store != nil {
		c.tr.RecordExchange(input, reply.Text)
		if err := c.store.Save(c.tr); err != nil {
			fmt.Fprintf(c.status, "Warning: failed to save transcript: %v\n", err)
		}
	}
}

func (c *interactiveChat) sendWithSpinner(ctx context.Context, input string) (*avatarchat.Reply, error) {
	if !c.spinner {
		return c.relay.SendMessage(ctx, c.sess, input)
	}
	stop := startSpinner(c.status)
	defer stop()
	return c.relay.SendMessage(ctx, c.sess, input)
}

// reconnect replaces the session with a freshly bootstrapped one. The new
// conversation starts a new transcript.
func (c *interactiveChat) reconnect(ctx context.Context) bool {
	sess, err := c.relay.Bootstrap(ctx, c.creds, c.title)
	if err != nil {
		fmt.Fprintln(c.status, avatarchat.UserMessage(err))
		return false
	}
	c.sess = sess
	if c.tr != nil {
		c.tr = transcript.New(c.baseURL, c.creds.Username)
		c.tr.ConversationID = sess.ConversationID
	}
	fmt.Fprintf(c.status, "Connected. Conversation %s\n", sess.ConversationID)
	return true
}

// startSpinner animates a waiting indicator on w until the returned func is called.
func startSpinner(w io.Writer) func() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		spinners := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i = (i + 1) % len(spinners) {
			fmt.Fprintf(w, "\r%s Waiting for response...", spinners[i])
			select {
			case <-done:
				// Clear the spinner line
				fmt.Fprint(w, "\r\033[K")
				return
			case <-ticker.C:
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

// handleCommand processes slash commands.
// Returns true to continue the loop, false to exit
func (c *interactiveChat) handleCommand(ctx context.Context, command string) bool {
	command = strings.ToLower(strings.TrimSpace(command))

	switch command {
	case "/help", "/h":
		fmt.Fprintln(c.status, "\nAvailable commands:")
		fmt.Fprintln(c.status, "  /help, /h     - Show this help message")
		fmt.Fprintln(c.status, "  /info, /i     - Show session information")
		fmt.Fprintln(c.status, "  /new, /n      - Log in again and start a new conversation")
		fmt.Fprintln(c.status, "  /clear, /c    - Clear screen (Unix/Linux only)")
		fmt.Fprintln(c.status, "  /exit, /quit  - Exit interactive mode")
		fmt.Fprintln(c.status, "  Ctrl+D        - Exit interactive mode")
		fmt.Fprintln(c.status, "")
		return true

	case "/info", "/i":
		fmt.Fprintln(c.status, "\nSession Information:")
		fmt.Fprintf(c.status, "  Backend: %s\n", c.baseURL)
		fmt.Fprintf(c.status, "  Username: %s\n", c.creds.Username)
		fmt.Fprintf(c.status, "  State: %s\n", c.sess.State())
		fmt.Fprintf(c.status, "  Conversation: %s\n", c.sess.ConversationID)
		if c.tr != nil {
			fmt.Fprintf(c.status, "  Transcript: %s\n", c.tr.ID)
			if c.tr.Name != "" {
				fmt.Fprintf(c.status, "  Name: %s\n", c.tr.Name)
			}
			fmt.Fprintf(c.status, "  Messages: %d\n", c.tr.MessageCount())
		}
		fmt.Fprintln(c.status, "")
		return true

	case "/new", "/n":
		c.reconnect(ctx)
		return true

	case "/clear", "/c":
		fmt.Fprint(c.out, "\033[H\033[2J")
		return true

	case "/exit", "/quit", "/q":
		fmt.Fprintln(c.status, "Goodbye!")
		return false

	default:
		fmt.Fprintf(c.status, "Unknown command: %s (type '/help' for available commands)\n", command)
		return true
	}
}

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().BoolVar(&noTranscript, "no-transcript", false, "Do not record a transcript of a new chat")
}
