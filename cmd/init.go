package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/longkey1/avatarchat/internal/avatarchat/config"
	"github.com/spf13/cobra"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the configuration file",
	Long: `Initialize the configuration file with default settings.
The config file will be created at $HOME/.config/avatarchat/config.toml by default.
You can specify a different location using the --config option.

Credentials default to $AVATARCHAT_USERNAME and $AVATARCHAT_PASSWORD references,
which are expanded from the environment (or a .env file) when the tool runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %v", err)
		}

		configFile := filepath.Join(home, ".config", "avatarchat", "config.toml")
		if cfgFile != "" {
			configFile = cfgFile
		}

		configDir := filepath.Dir(configFile)
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %v", err)
		}

		if _, err := os.Stat(configFile); err == nil {
			return fmt.Errorf("config file already exists at: %s", configFile)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("failed to create config file: %v", err)
		}
		defer f.Close()

		if err := writeDefaultConfig(f); err != nil {
			return err
		}

		transcriptsDir := filepath.Join(configDir, "transcripts")
		if err := os.MkdirAll(transcriptsDir, 0755); err != nil {
			return fmt.Errorf("failed to create transcripts directory: %v", err)
		}

		fmt.Printf("Configuration file created at: %s\n", configFile)
		fmt.Printf("Transcripts directory created at: %s\n", transcriptsDir)
		return nil
	},
}

// writeDefaultConfig encodes the default configuration as TOML
func writeDefaultConfig(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(config.NewDefaultConfig()); err != nil {
		return fmt.Errorf("failed to encode config: %v", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(initCmd)
}
