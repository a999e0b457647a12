package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{
			name: "localhost host selects local",
			cfg:  Config{Host: "localhost", LocalBaseURL: "http://localhost:10000", DeployedBaseURL: "https://prod.example"},
			want: "http://localhost:10000",
		},
		{
			name: "loopback address selects local",
			cfg:  Config{Host: "127.0.0.1", LocalBaseURL: "http://localhost:10000/", DeployedBaseURL: "https://prod.example"},
			want: "http://localhost:10000",
		},
		{
			name: "other host selects deployed",
			cfg:  Config{Host: "chat.example.org", LocalBaseURL: "http://localhost:10000", DeployedBaseURL: "https://prod.example"},
			want: "https://prod.example",
		},
		{
			name: "explicit environment wins over host",
			cfg:  Config{Environment: "Deployed", Host: "localhost", LocalBaseURL: "http://localhost:10000", DeployedBaseURL: "https://prod.example"},
			want: "https://prod.example",
		},
		{
			name: "base url overrides everything",
			cfg:  Config{Environment: "local", BaseURL: "http://10.0.0.5:8000/", LocalBaseURL: "http://localhost:10000"},
			want: "http://10.0.0.5:8000",
		},
		{
			name:    "unknown environment",
			cfg:     Config{Environment: "staging"},
			wantErr: true,
		},
		{
			name:    "missing url",
			cfg:     Config{Host: "chat.example.org"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.ResolveBaseURL()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveBaseURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ResolveBaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpandEnvVar(t *testing.T) {
	t.Setenv("AVATARCHAT_TEST_SECRET", "s3cret")

	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "plain", want: "plain"},
		{input: "$AVATARCHAT_TEST_SECRET", want: "s3cret"},
		{input: "${AVATARCHAT_TEST_SECRET}", want: "s3cret"},
		{input: "$AVATARCHAT_TEST_UNSET", want: ""},
		{input: "$", wantErr: true},
	}
	for _, tt := range tests {
		got, err := expandEnvVar(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("expandEnvVar(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("expandEnvVar(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLoadFrom(t *testing.T) {
	t.Setenv("AVATARCHAT_USERNAME", "demo_user")
	t.Setenv("AVATARCHAT_PASSWORD", "demo_password")

	v := viper.New()
	SetDefaults(v)
	v.Set("login_retry_delay", "250ms")
	v.Set("server.db_path", "/var/lib/avatarchat/chat.db")

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	creds, err := cfg.GetCredentials()
	require.NoError(t, err)
	assert.Equal(t, "demo_user", creds.Username)
	assert.Equal(t, "demo_password", creds.Password)

	policy := cfg.RetryPolicy()
	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, policy.DelayBase)
	assert.Zero(t, cfg.RequestTimeout)
	assert.Equal(t, "/var/lib/avatarchat/chat.db", cfg.Server.DBPath)

	baseURL, err := cfg.ResolveBaseURL()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:10000", baseURL)
}

func TestGetCredentialsMissing(t *testing.T) {
	_, err := (&Config{Password: "p"}).GetCredentials()
	assert.Error(t, err)
	_, err = (&Config{Username: "u"}).GetCredentials()
	assert.ErrorContains(t, err, "password is not configured")
	_, err = (&Config{Username: "   ", Password: "p"}).GetCredentials()
	assert.ErrorContains(t, err, "username is not configured")

	creds, err := (&Config{Username: "demo_user", Password: "demo_password"}).GetCredentials()
	require.NoError(t, err)
	assert.True(t, creds.Valid())
}
