package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/longkey1/avatarchat/internal/avatarchat"
	"github.com/spf13/viper"
)

// expandEnvVar expands environment variable references in the given value
// Supports both $VAR and ${VAR} syntax
// Returns the expanded value. If the environment variable is not set, returns empty string.
func expandEnvVar(value string) (string, error) {
	if !strings.HasPrefix(value, "$") {
		return value, nil
	}

	var envVarName string
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		envVarName = value[2 : len(value)-1]
	} else {
		envVarName = strings.TrimPrefix(value, "$")
	}
	if envVarName == "" {
		return "", fmt.Errorf("empty environment variable reference: %q", value)
	}

	return os.Getenv(envVarName), nil
}

// isLocalHost reports whether host names the machine itself.
func isLocalHost(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1", "[::1]":
		return true
	default:
		return false
	}
}

// ResolveEnvironment returns "local" or "deployed". An explicit environment
// wins; otherwise the host decides.
func (c *Config) ResolveEnvironment() (string, error) {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case EnvironmentLocal:
		return EnvironmentLocal, nil
	case EnvironmentDeployed:
		return EnvironmentDeployed, nil
	case "":
		if isLocalHost(c.Host) {
			return EnvironmentLocal, nil
		}
		return EnvironmentDeployed, nil
	default:
		return "", fmt.Errorf("unsupported environment: %s (expected %q or %q)", c.Environment, EnvironmentLocal, EnvironmentDeployed)
	}
}

// ResolveBaseURL returns the backend root URL for the current environment
func (c *Config) ResolveBaseURL() (string, error) {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/"), nil
	}

	env, err := c.ResolveEnvironment()
	if err != nil {
		return "", err
	}

	baseURL := c.LocalBaseURL
	if env == EnvironmentDeployed {
		baseURL = c.DeployedBaseURL
	}
	if baseURL == "" {
		return "", fmt.Errorf("%s base URL is not configured. Set it in config file (%s_base_url) or environment variable (AVATARCHAT_%s_BASE_URL)", env, env, strings.ToUpper(env))
	}
	return strings.TrimRight(baseURL, "/"), nil
}

// GetCredentials returns the configured login credentials
func (c *Config) GetCredentials() (avatarchat.Credentials, error) {
	creds := avatarchat.Credentials{Username: c.Username, Password: c.Password}
	if creds.Valid() {
		return creds, nil
	}
	if strings.TrimSpace(creds.Username) == "" {
		return creds, fmt.Errorf("username is not configured. Set it in config file (username), environment variable (AVATARCHAT_USERNAME) or --username flag")
	}
	return creds, fmt.Errorf("password is not configured. Set it in config file (password) or environment variable (AVATARCHAT_PASSWORD)")
}

// ResolvePath converts a relative path to absolute path if needed
func ResolvePath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}

	// Get config file directory as base directory
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("error getting current working directory: %v", err)
		}
		return filepath.Join(cwd, path), nil
	}

	configDir := filepath.Dir(configFile)
	if !filepath.IsAbs(configDir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("error getting current working directory: %v", err)
		}
		configDir = filepath.Join(cwd, configDir)
	}

	return filepath.Join(configDir, path), nil
}
