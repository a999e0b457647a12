package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/longkey1/avatarchat/internal/avatarchat/config"
	"github.com/longkey1/avatarchat/internal/avatarchat/transcript"
	"github.com/spf13/cobra"
)

// transcriptsCmd represents the transcripts command
var transcriptsCmd = &cobra.Command{
	Use:     "transcripts",
	Aliases: []string{"tr"},
	Short:   "Manage local chat transcripts",
	Long: `Manage local chat transcripts including listing, viewing, and deleting them.

A transcript records the messages exchanged in one backend conversation so the
conversation can be reviewed or continued later.`,
}

// transcriptsListCmd represents the transcripts list command
var transcriptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all transcripts",
	Long:  `List all transcripts sorted by most recently updated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := transcript.OpenDefault()
		if err != nil {
			return err
		}
		transcripts, err := store.List()
		if err != nil {
			return fmt.Errorf("listing transcripts: %w", err)
		}

		if len(transcripts) == 0 {
			fmt.Println("No transcripts found.")
			fmt.Println("\nCreate a new transcript with:")
			fmt.Println("  avatarchat chat --new-transcript \"your message\"")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCONVERSATION\tUSER\tCREATED\tMESSAGES\tNAME")
		fmt.Fprintln(w, "--\t------------\t----\t-------\t--------\t----")

		for _, tr := range transcripts {
			name := tr.Name
			if name == "" {
				name = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				tr.GetShortID(),
				tr.ConversationID,
				tr.Username,
				tr.CreatedAt.Format("2006-01-02"),
				tr.MessageCount(),
				name,
			)
		}
		w.Flush()

		fmt.Println("\nUse 'avatarchat transcripts show <id>' to view transcript details.")
		return nil
	},
}

// transcriptsShowCmd represents the transcripts show command
var transcriptsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show transcript details and messages",
	Long: `Show detailed information about a transcript including all messages.

The ID can be a short ID (minimum 4 characters), full UUID, or "latest" for the most recent transcript.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := transcript.OpenDefault()
		if err != nil {
			return err
		}
		tr, err := store.FindByPrefix(args[0])
		if err != nil {
			return fmt.Errorf("finding transcript: %w", err)
		}

		fmt.Printf("Transcript: %s\n", tr.ID)
		if tr.Name != "" {
			fmt.Printf("Name: %s\n", tr.Name)
		}
		fmt.Printf("Backend: %s\n", tr.BaseURL)
		fmt.Printf("Username: %s\n", tr.Username)
		fmt.Printf("Conversation: %s\n", tr.ConversationID)
		fmt.Printf("Created: %s\n", tr.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Updated: %s\n", tr.UpdatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Messages: %d\n", tr.MessageCount())
		fmt.Println()

		if len(tr.Messages) == 0 {
			fmt.Println("No messages in this transcript.")
			return nil
		}

		fmt.Println("Message History:")
		fmt.Println("----------------")
		for i, msg := range tr.Messages {
			roleLabel := "You"
			if msg.Role == "assistant" {
				roleLabel = "Avatar"
			}
			fmt.Printf("\n[%d] %s (%s):\n%s\n",
				i+1,
				roleLabel,
				msg.Timestamp.Format(time.RFC3339),
				msg.Content,
			)
		}

		fmt.Printf("\nContinue this conversation with:\n  avatarchat chat -s %s \"your message\"\n", tr.GetShortID())
		return nil
	},
}

// transcriptsDeleteCmd represents the transcripts delete command
var transcriptsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a transcript",
	Long: `Delete a local transcript permanently. The backend conversation is not affected.

The ID can be a short ID (minimum 4 characters), full UUID, or "latest" for the most recent transcript.

Warning: This action cannot be undone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := transcript.OpenDefault()
		if err != nil {
			return err
		}
		tr, err := store.FindByPrefix(args[0])
		if err != nil {
			return fmt.Errorf("finding transcript: %w", err)
		}

		if !confirm(fmt.Sprintf("Are you sure you want to delete transcript %s?", tr.GetShortID())) {
			fmt.Println("Deletion cancelled.")
			return nil
		}

		if err := store.Delete(tr.ID); err != nil {
			return fmt.Errorf("deleting transcript: %w", err)
		}

		fmt.Printf("Transcript %s deleted successfully.\n", tr.GetShortID())
		return nil
	},
}

// transcriptsRenameCmd represents the transcripts rename command
var transcriptsRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a transcript",
	Long: `Rename a local transcript.

The ID can be a short ID (minimum 4 characters), full UUID, or "latest" for the most recent transcript.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := transcript.OpenDefault()
		if err != nil {
			return err
		}
		tr, err := store.FindByPrefix(args[0])
		if err != nil {
			return fmt.Errorf("finding transcript: %w", err)
		}

		tr.Name = args[1]
		if err := store.Save(tr); err != nil {
			return fmt.Errorf("saving transcript: %w", err)
		}

		fmt.Printf("Transcript %s renamed to \"%s\".\n", tr.GetShortID(), tr.Name)
		return nil
	},
}

// transcriptsClearCmd represents the transcripts clear command
var transcriptsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete old transcripts",
	Long: `Delete old transcripts permanently.

By default, deletes transcripts created more than transcript_retention_days
(30 unless configured) days ago.
Use --before to specify a different date, or --all to delete all transcripts.

Warning: This action cannot be undone.

Examples:
  avatarchat transcripts clear                      # Delete transcripts past retention
  avatarchat transcripts clear --before 2024-01-01  # Delete transcripts created before 2024-01-01
  avatarchat transcripts clear --before 2024-12     # Delete transcripts created before 2024-12-01
  avatarchat transcripts clear --all                # Delete all transcripts`,
	RunE: func(cmd *cobra.Command, args []string) error {
		beforeDateStr, _ := cmd.Flags().GetString("before")
		deleteAll, _ := cmd.Flags().GetBool("all")
		assumeYes, _ := cmd.Flags().GetBool("yes")

		store, err := transcript.OpenDefault()
		if err != nil {
			return err
		}

		var (
			toDelete []transcript.Transcript
			question string
		)
		switch {
		case deleteAll:
			toDelete, err = store.List()
			if err != nil {
				return fmt.Errorf("listing transcripts: %w", err)
			}
			question = fmt.Sprintf("Are you sure you want to delete all %d transcripts?", len(toDelete))
		default:
			var cutoff time.Time
			if beforeDateStr != "" {
				cutoff, err = parseDate(beforeDateStr)
				if err != nil {
					return fmt.Errorf("parsing date: %w", err)
				}
			} else {
				cfg, err := config.LoadConfig()
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				cutoff = time.Now().AddDate(0, 0, -cfg.TranscriptRetentionDays)
			}

			toDelete, err = store.CreatedBefore(cutoff)
			if err != nil {
				return fmt.Errorf("listing transcripts: %w", err)
			}
			if len(toDelete) == 0 {
				fmt.Printf("No transcripts found created before %s.\n", cutoff.Format("2006-01-02"))
				return nil
			}
			question = fmt.Sprintf("Are you sure you want to delete %d transcripts created before %s?",
				len(toDelete), cutoff.Format("2006-01-02"))
		}

		if len(toDelete) == 0 {
			fmt.Println("No transcripts to delete.")
			return nil
		}

		if !assumeYes && !confirm(question) {
			fmt.Println("Deletion cancelled.")
			return nil
		}

		deleted := 0
		failed := 0
		for _, tr := range toDelete {
			if err := store.Delete(tr.ID); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to delete transcript %s: %v\n", tr.GetShortID(), err)
				failed++
			} else {
				deleted++
			}
		}

		fmt.Printf("Successfully deleted %d transcripts", deleted)
		if failed > 0 {
			fmt.Printf(" (%d failed)", failed)
		}
		fmt.Println(".")
		return nil
	},
}

// confirm asks a yes/no question on stdout and reads the answer from stdin
func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	var response string
	fmt.Scanln(&response)
	return response == "y" || response == "Y"
}

// parseDate parses a date string in various formats and returns a time.Time
// Supported formats: YYYY-MM-DD, YYYY-MM, YYYY
func parseDate(dateStr string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.ParseInLocation(layout, dateStr, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date format: %s (use YYYY-MM-DD, YYYY-MM, or YYYY)", dateStr)
}

func init() {
	rootCmd.AddCommand(transcriptsCmd)
	transcriptsCmd.AddCommand(transcriptsListCmd)
	transcriptsCmd.AddCommand(transcriptsShowCmd)
	transcriptsCmd.AddCommand(transcriptsDeleteCmd)
	transcriptsCmd.AddCommand(transcriptsRenameCmd)
	transcriptsCmd.AddCommand(transcriptsClearCmd)

	transcriptsClearCmd.Flags().String("before", "", "Delete only transcripts created before this date (format: YYYY-MM-DD, YYYY-MM, or YYYY)")
	transcriptsClearCmd.Flags().Bool("all", false, "Delete all transcripts (overrides retention days setting)")
	transcriptsClearCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
}
