/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/longkey1/avatarchat/internal/avatarchat"
	"github.com/longkey1/avatarchat/internal/avatarchat/transcript"
	"github.com/spf13/cobra"
)

var (
	useEditor      bool
	transcriptID   string
	newTranscript  bool
	transcriptName string
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send a message to the avatar",
	Long: `Log in, open a conversation and send one message, then print the reply.

For interactive multi-turn conversations, use 'avatarchat start' instead.

If no message is provided as an argument, it reads from stdin.
If --editor flag is set, it opens the default editor (from EDITOR environment variable) to compose the message.

With --new-transcript the exchange is saved locally, and --transcript continues
the backend conversation a saved transcript points to.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if transcriptID != "" && newTranscript {
			return fmt.Errorf("cannot specify both --transcript and --new-transcript")
		}

		// Get message from arguments, editor, or stdin
		var message string
		var err error
		if useEditor {
			message, err = getMessageFromEditor()
			if err != nil {
				return fmt.Errorf("getting message from editor: %w", err)
			}
		} else if len(args) > 0 {
			message = strings.Join(args, " ")
		} else {
			input, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("reading from stdin: %w", err)
			}
			message = string(input)
		}
		message = strings.TrimSpace(message)
		if message == "" {
			if verbose {
				fmt.Fprintln(os.Stderr, "Nothing to send.")
			}
			return nil
		}

		setup, err := newClientSetup()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		var (
			store *transcript.Store
			tr    *transcript.Transcript
			sess  *avatarchat.Session
		)
		if transcriptID != "" || newTranscript {
			store, err = transcript.OpenDefault()
			if err != nil {
				return err
			}
		}

		switch {
		case transcriptID != "":
			tr, err = store.FindByPrefix(transcriptID)
			if err != nil {
				return fmt.Errorf("finding transcript: %w", err)
			}
			sess, err = setup.resume(ctx, tr)
			if err != nil {
				return err
			}
			if verbose {
				fmt.Fprintf(os.Stderr, "Continuing transcript: %s (conversation %s)\n", tr.GetShortID(), tr.ConversationID)
			}
		default:
			sess, err = setup.bootstrap(ctx)
			if err != nil {
				return err
			}
			if newTranscript {
				tr = transcript.New(setup.client.BaseURL(), setup.creds.Username)
				tr.Name = transcriptName
				tr.ConversationID = sess.ConversationID
			}
		}

		reply, err := setup.client.SendMessage(ctx, sess, message)
		if err != nil {
			return statusError(err)
		}

		fmt.Println(reply.Text)

		if tr == nil {
			return nil
		}
		tr.RecordExchange(message, reply.Text)
		if err := store.Save(tr); err != nil {
			return fmt.Errorf("saving transcript: %w", err)
		}

		if newTranscript {
			fmt.Fprintf(os.Stderr, "\nTranscript created: %s\n", tr.GetShortID())
			fmt.Fprintf(os.Stderr, "Path: %s\n", store.Path(tr.ID))
			fmt.Fprintf(os.Stderr, "\nNext time, use:\n  avatarchat chat -s %s \"your message\"\n", tr.GetShortID())
			fmt.Fprintf(os.Stderr, "For interactive mode, use:\n  avatarchat start %s\n", tr.GetShortID())
		}
		return nil
	},
}

// getMessageFromEditor opens the default editor and returns the edited message
func getMessageFromEditor() (string, error) {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		return "", fmt.Errorf("EDITOR environment variable is not set")
	}

	tmpFile, err := os.CreateTemp("", "avatarchat-*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %v", err)
	}
	tmpFile.Close()
	defer os.Remove(tmpFile.Name())

	cmd := exec.Command(editor, tmpFile.Name())
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to open editor: %v", err)
	}

	content, err := os.ReadFile(tmpFile.Name())
	if err != nil {
		return "", fmt.Errorf("failed to read edited content: %v", err)
	}

	return strings.TrimSpace(string(content)), nil
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().BoolVarP(&useEditor, "editor", "e", false, "Use default editor (from EDITOR environment variable) to compose message")

	// Transcript flags
	chatCmd.Flags().StringVarP(&transcriptID, "transcript", "s", "", "Transcript ID (short or full UUID, or 'latest' for most recent transcript)")
	chatCmd.Flags().BoolVarP(&newTranscript, "new-transcript", "n", false, "Record the exchange in a new transcript")
	chatCmd.Flags().StringVar(&transcriptName, "transcript-name", "", "Name for the new transcript (optional)")
}
