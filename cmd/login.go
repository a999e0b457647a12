/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var showToken bool

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and open a conversation",
	Long: `Log in to the backend and open a conversation, then print the resulting
session state. Useful to check credentials and connectivity.

Connection failures are retried with a growing delay (see max_login_attempts
and login_retry_delay in the configuration).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		setup, err := newClientSetup()
		if err != nil {
			return err
		}

		sess, err := setup.bootstrap(cmd.Context())
		fmt.Printf("Backend:      %s\n", setup.client.BaseURL())
		fmt.Printf("Username:     %s\n", setup.creds.Username)
		fmt.Printf("State:        %s\n", sess.State())
		if sess.Authenticated() {
			token := maskToken(sess.AuthToken)
			if showToken {
				token = sess.AuthToken
			}
			fmt.Printf("Token:        %s\n", token)
		}
		if sess.Ready() {
			fmt.Printf("Conversation: %s\n", sess.ConversationID)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().BoolVar(&showToken, "show-token", false, "Print the full auth token instead of a masked one")
}
