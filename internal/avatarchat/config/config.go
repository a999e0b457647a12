package config

import (
	"fmt"
	"time"

	"github.com/longkey1/avatarchat/internal/avatarchat"
	"github.com/spf13/viper"
)

const (
	EnvironmentLocal    = "local"
	EnvironmentDeployed = "deployed"
)

// ServerConfig holds the settings of the demo backend started by `serve`
type ServerConfig struct {
	Addr           string   `toml:"addr" mapstructure:"addr"`
	DBPath         string   `toml:"db_path" mapstructure:"db_path"`
	Responder      string   `toml:"responder" mapstructure:"responder"` // "echo", "openai", "anthropic" or "gemini"
	OpenAIBaseURL  string   `toml:"openai_base_url" mapstructure:"openai_base_url"`
	OpenAIToken    string   `toml:"openai_token" mapstructure:"openai_token"`
	OpenAIModel    string   `toml:"openai_model" mapstructure:"openai_model"`
	AnthropicToken string   `toml:"anthropic_token" mapstructure:"anthropic_token"`
	AnthropicModel string   `toml:"anthropic_model" mapstructure:"anthropic_model"`
	GeminiToken    string   `toml:"gemini_token" mapstructure:"gemini_token"`
	GeminiModel    string   `toml:"gemini_model" mapstructure:"gemini_model"`
	DemoUsername   string   `toml:"demo_username" mapstructure:"demo_username"`
	DemoPassword   string   `toml:"demo_password" mapstructure:"demo_password"`
	AllowedOrigins []string `toml:"allowed_origins" mapstructure:"allowed_origins"`
}

// Config holds the client configuration
type Config struct {
	Environment             string        `toml:"environment" mapstructure:"environment"` // "local", "deployed" or empty to decide from host
	Host                    string        `toml:"host" mapstructure:"host"`
	BaseURL                 string        `toml:"base_url" mapstructure:"base_url"` // Overrides both environment URLs when set
	LocalBaseURL            string        `toml:"local_base_url" mapstructure:"local_base_url"`
	DeployedBaseURL         string        `toml:"deployed_base_url" mapstructure:"deployed_base_url"`
	Username                string        `toml:"username" mapstructure:"username"`
	Password                string        `toml:"password" mapstructure:"password"`
	ConversationTitle       string        `toml:"conversation_title" mapstructure:"conversation_title"`
	RequestTimeout          time.Duration `toml:"request_timeout" mapstructure:"request_timeout"` // 0 = no per-request timeout
	MaxLoginAttempts        int           `toml:"max_login_attempts" mapstructure:"max_login_attempts"`
	LoginRetryDelay         time.Duration `toml:"login_retry_delay" mapstructure:"login_retry_delay"`
	TranscriptRetentionDays int           `toml:"transcript_retention_days" mapstructure:"transcript_retention_days"`
	Server                  ServerConfig  `toml:"server" mapstructure:"server"`
}

// NewDefaultConfig returns a new Config with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment:             "",
		Host:                    "localhost",
		LocalBaseURL:            "http://localhost:10000",
		DeployedBaseURL:         "https://threed-avatar-connected-to-ai-1.onrender.com",
		Username:                "$AVATARCHAT_USERNAME",
		Password:                "$AVATARCHAT_PASSWORD",
		ConversationTitle:       avatarchat.DefaultConversationTitle,
		RequestTimeout:          0,
		MaxLoginAttempts:        avatarchat.DefaultMaxAttempts,
		LoginRetryDelay:         avatarchat.DefaultDelayBase,
		TranscriptRetentionDays: 30,
		Server: ServerConfig{
			Addr:           ":10000",
			DBPath:         "avatarchat.db",
			Responder:      "echo",
			OpenAIBaseURL:  "https://api.openai.com/v1",
			OpenAIToken:    "$OPENAI_API_KEY",
			OpenAIModel:    "gpt-4.1",
			AnthropicToken: "$ANTHROPIC_API_KEY",
			AnthropicModel: "claude-3-5-sonnet-20241022",
			GeminiToken:    "$GEMINI_API_KEY",
			GeminiModel:    "gemini-2.0-flash",
			DemoUsername:   "demo_user",
			DemoPassword:   "demo_password",
			AllowedOrigins: []string{"*"},
		},
	}
}

// SetDefaults registers every default with viper so that env variables and
// config files only need to override what they change.
func SetDefaults(v *viper.Viper) {
	d := NewDefaultConfig()
	v.SetDefault("environment", d.Environment)
	v.SetDefault("host", d.Host)
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("local_base_url", d.LocalBaseURL)
	v.SetDefault("deployed_base_url", d.DeployedBaseURL)
	v.SetDefault("username", d.Username)
	v.SetDefault("password", d.Password)
	v.SetDefault("conversation_title", d.ConversationTitle)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("max_login_attempts", d.MaxLoginAttempts)
	v.SetDefault("login_retry_delay", d.LoginRetryDelay)
	v.SetDefault("transcript_retention_days", d.TranscriptRetentionDays)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.db_path", d.Server.DBPath)
	v.SetDefault("server.responder", d.Server.Responder)
	v.SetDefault("server.openai_base_url", d.Server.OpenAIBaseURL)
	v.SetDefault("server.openai_token", d.Server.OpenAIToken)
	v.SetDefault("server.openai_model", d.Server.OpenAIModel)
	v.SetDefault("server.anthropic_token", d.Server.AnthropicToken)
	v.SetDefault("server.anthropic_model", d.Server.AnthropicModel)
	v.SetDefault("server.gemini_token", d.Server.GeminiToken)
	v.SetDefault("server.gemini_model", d.Server.GeminiModel)
	v.SetDefault("server.demo_username", d.Server.DemoUsername)
	v.SetDefault("server.demo_password", d.Server.DemoPassword)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
}

// LoadConfig loads configuration from the global viper instance
func LoadConfig() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom loads configuration from v and expands $VAR references in
// credential values.
func LoadFrom(v *viper.Viper) (*Config, error) {
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %v", err)
	}

	for _, field := range []*string{
		&config.Username,
		&config.Password,
		&config.Server.OpenAIToken,
		&config.Server.AnthropicToken,
		&config.Server.GeminiToken,
	} {
		expanded, err := expandEnvVar(*field)
		if err != nil {
			return nil, err
		}
		*field = expanded
	}

	if config.Server.DBPath != "" {
		absPath, err := ResolvePath(config.Server.DBPath)
		if err != nil {
			return nil, fmt.Errorf("error resolving database path '%s': %v", config.Server.DBPath, err)
		}
		config.Server.DBPath = absPath
	}

	return config, nil
}

// RetryPolicy returns the login retry policy described by the config.
// Non-positive values fall back to the defaults.
func (c *Config) RetryPolicy() avatarchat.RetryPolicy {
	p := avatarchat.DefaultRetryPolicy()
	if c.MaxLoginAttempts > 0 {
		p.MaxAttempts = c.MaxLoginAttempts
	}
	if c.LoginRetryDelay > 0 {
		p.DelayBase = c.LoginRetryDelay
	}
	return p
}
