/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/longkey1/avatarchat/internal/avatarchat/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile  string
	envFile  string
	verbose  bool
	baseURL  string
	username string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "avatarchat",
	Short: "A CLI client for the avatar chat backend",
	Long: `avatarchat logs in to the avatar chat backend, opens a conversation and
relays your messages to it.

It can send one-shot messages, run an interactive chat, keep local transcripts
of what was said, and run a local demo backend with "avatarchat serve".
You can configure the tool using a TOML configuration file.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/avatarchat/config.toml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "backend root URL (overrides environment selection)")
	rootCmd.PersistentFlags().StringVarP(&username, "username", "u", "", "login username")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// .env values never override the real environment
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", envFile, err)
		} else if err == nil && verbose {
			fmt.Fprintln(os.Stderr, "Loaded env file:", envFile)
		}
	}

	viper.SetEnvPrefix("AVATARCHAT")
	viper.AutomaticEnv()

	home, err := os.UserHomeDir()
	cobra.CheckErr(err)
	userConfigDir := filepath.Join(home, ".config", "avatarchat")

	config.SetDefaults(viper.GetViper())

	// Nested keys are not picked up by AutomaticEnv
	viper.BindEnv("server.addr", "AVATARCHAT_SERVER_ADDR")
	viper.BindEnv("server.db_path", "AVATARCHAT_SERVER_DB_PATH")
	viper.BindEnv("server.responder", "AVATARCHAT_SERVER_RESPONDER")
	viper.BindEnv("server.openai_base_url", "AVATARCHAT_SERVER_OPENAI_BASE_URL")
	viper.BindEnv("server.openai_token", "AVATARCHAT_SERVER_OPENAI_TOKEN")
	viper.BindEnv("server.openai_model", "AVATARCHAT_SERVER_OPENAI_MODEL")
	viper.BindEnv("server.anthropic_token", "AVATARCHAT_SERVER_ANTHROPIC_TOKEN")
	viper.BindEnv("server.gemini_token", "AVATARCHAT_SERVER_GEMINI_TOKEN")

	if baseURL != "" {
		viper.Set("base_url", baseURL)
	}
	if username != "" {
		viper.Set("username", username)
	}

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	} else {
		// Load system-wide config first (lower priority)
		systemConfigPaths := []string{
			"/etc/avatarchat",
			"/usr/local/etc/avatarchat",
		}

		systemConfigLoaded := false
		for _, path := range systemConfigPaths {
			viper.AddConfigPath(path)
		}
		viper.SetConfigType("toml")
		viper.SetConfigName("config")

		if err := viper.ReadInConfig(); err == nil {
			systemConfigLoaded = true
			if verbose {
				fmt.Fprintln(os.Stderr, "Loaded system-wide config:", viper.ConfigFileUsed())
			}
		}

		// Load user config (higher priority) - merge with system config
		viper.AddConfigPath(userConfigDir)
		if systemConfigLoaded {
			if err := viper.MergeInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					fmt.Fprintf(os.Stderr, "Error merging user config file: %v\n", err)
				}
			} else if verbose {
				fmt.Fprintln(os.Stderr, "Merged user config:", viper.ConfigFileUsed())
			}
		} else {
			if err := viper.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
				}
			}
		}
	}

	if verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		fmt.Fprintln(os.Stderr, "Environment variables:")
		fmt.Fprintln(os.Stderr, "  AVATARCHAT_ENVIRONMENT:", viper.GetString("environment"))
		fmt.Fprintln(os.Stderr, "  AVATARCHAT_HOST:", viper.GetString("host"))
		fmt.Fprintln(os.Stderr, "  AVATARCHAT_BASE_URL:", viper.GetString("base_url"))
		fmt.Fprintln(os.Stderr, "  AVATARCHAT_USERNAME:", viper.GetString("username"))
	}
}
