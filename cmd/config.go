package cmd

import (
	"fmt"
	"strings"

	"github.com/longkey1/avatarchat/internal/avatarchat/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const configFields = "configfile, environment, base_url, username, password, conversation_title, request_timeout, max_login_attempts, login_retry_delay, transcript_retention_days, server_addr, server_db_path, server_responder, openai_token, anthropic_token, gemini_token"

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config [field]",
	Short: "Display current configuration",
	Long: `Display the current configuration values.
This command shows all configuration values loaded from the config file and environment variables.

If a field name is specified, only that field's value is displayed.
Available fields: ` + configFields + `

Examples:
  avatarchat config                # Show all configuration
  avatarchat config base_url       # Show only the resolved backend URL
  avatarchat config environment    # Show only the resolved environment
  avatarchat config password       # Show the password, masked`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}

		env, err := cfg.ResolveEnvironment()
		if err != nil {
			return err
		}
		url, err := cfg.ResolveBaseURL()
		if err != nil {
			return err
		}

		if len(args) > 0 {
			value, ok := configField(cfg, strings.ToLower(args[0]), env, url)
			if !ok {
				return fmt.Errorf("unknown field: %s\nAvailable fields: %s", args[0], configFields)
			}
			fmt.Println(value)
			return nil
		}

		fmt.Printf("ConfigFile: %s\n", viper.ConfigFileUsed())
		fmt.Printf("Environment: %s\n", env)
		fmt.Printf("BaseURL: %s\n", url)
		fmt.Printf("Username: %s\n", cfg.Username)
		fmt.Printf("Password: %s\n", maskToken(cfg.Password))
		fmt.Printf("ConversationTitle: %s\n", cfg.ConversationTitle)
		fmt.Printf("RequestTimeout: %s\n", cfg.RequestTimeout)
		fmt.Printf("MaxLoginAttempts: %d\n", cfg.RetryPolicy().MaxAttempts)
		fmt.Printf("LoginRetryDelay: %s\n", cfg.RetryPolicy().DelayBase)
		fmt.Printf("TranscriptRetentionDays: %d\n", cfg.TranscriptRetentionDays)
		fmt.Printf("Server.Addr: %s\n", cfg.Server.Addr)
		fmt.Printf("Server.DBPath: %s\n", cfg.Server.DBPath)
		fmt.Printf("Server.Responder: %s\n", cfg.Server.Responder)
		fmt.Printf("Server.OpenAIToken: %s\n", maskToken(cfg.Server.OpenAIToken))
		fmt.Printf("Server.AnthropicToken: %s\n", maskToken(cfg.Server.AnthropicToken))
		fmt.Printf("Server.GeminiToken: %s\n", maskToken(cfg.Server.GeminiToken))
		return nil
	},
}

// configField returns the display value of one field.
func configField(cfg *config.Config, field, env, url string) (string, bool) {
	switch field {
	case "configfile":
		return viper.ConfigFileUsed(), true
	case "environment":
		return env, true
	case "base_url", "baseurl":
		return url, true
	case "username":
		return cfg.Username, true
	case "password":
		return maskToken(cfg.Password), true
	case "conversation_title":
		return cfg.ConversationTitle, true
	case "request_timeout":
		return cfg.RequestTimeout.String(), true
	case "max_login_attempts":
		return fmt.Sprint(cfg.RetryPolicy().MaxAttempts), true
	case "login_retry_delay":
		return cfg.RetryPolicy().DelayBase.String(), true
	case "transcript_retention_days":
		return fmt.Sprint(cfg.TranscriptRetentionDays), true
	case "server_addr":
		return cfg.Server.Addr, true
	case "server_db_path":
		return cfg.Server.DBPath, true
	case "server_responder":
		return cfg.Server.Responder, true
	case "openai_token", "openaitoken":
		return maskToken(cfg.Server.OpenAIToken), true
	case "anthropic_token":
		return maskToken(cfg.Server.AnthropicToken), true
	case "gemini_token":
		return maskToken(cfg.Server.GeminiToken), true
	default:
		return "", false
	}
}

// maskToken returns a masked version of the token for security
func maskToken(token string) string {
	if token == "" {
		return "(not set)"
	}
	if len(token) <= 8 {
		return "********"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

func init() {
	rootCmd.AddCommand(configCmd)
}
