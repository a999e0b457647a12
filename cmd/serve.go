package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/longkey1/avatarchat/internal/anthropic"
	"github.com/longkey1/avatarchat/internal/avatarchat/config"
	"github.com/longkey1/avatarchat/internal/backend"
	"github.com/longkey1/avatarchat/internal/gemini"
	"github.com/longkey1/avatarchat/internal/logging"
	"github.com/longkey1/avatarchat/internal/openai"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat backend locally",
	Long: `Run the chat REST backend on this machine.

The backend stores users, tokens, conversations and messages in a SQLite
database and makes sure the demo account exists on startup. Replies come from
the configured responder: "echo" repeats the message, while "openai",
"anthropic" and "gemini" ask the respective model API with the conversation
history. When a model call fails the backend answers with an apology instead.

Point the client at it with environment = "local" (the default local_base_url
is http://localhost:10000).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		logger := logging.Server(os.Stdout, verbose)

		repo, err := backend.NewSQLite(cfg.Server.DBPath)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		defer func() {
			if closeErr := repo.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close repository")
			}
		}()

		ctx := cmd.Context()
		if err := repo.Ping(ctx); err != nil {
			return fmt.Errorf("database health check failed: %w", err)
		}
		logger.Info().Str("path", cfg.Server.DBPath).Msg("database connected")

		if cfg.Server.DemoUsername != "" {
			_, created, err := repo.EnsureUser(ctx, cfg.Server.DemoUsername, cfg.Server.DemoPassword)
			if err != nil {
				return fmt.Errorf("creating demo user: %w", err)
			}
			logger.Info().Str("username", cfg.Server.DemoUsername).Bool("created", created).Msg("demo user ready")
		}

		responder, err := newResponder(cfg.Server, logger)
		if err != nil {
			return err
		}

		server := backend.NewServer(repo, responder,
			backend.WithLogger(logger),
			backend.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		)

		srv := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      server.Routes(),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info().Str("addr", srv.Addr).Msg("starting server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err, ok := <-errCh:
			if ok {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		logger.Info().Msg("server stopped")
		return nil
	},
}

// newResponder builds the reply generator named by cfg.Responder.
func newResponder(cfg config.ServerConfig, logger zerolog.Logger) (backend.Responder, error) {
	httpClient := &http.Client{Timeout: 60 * time.Second}

	var (
		responder backend.Responder
		name      string
	)
	switch strings.ToLower(cfg.Responder) {
	case "", "echo":
		responder, name = backend.EchoResponder{}, "echo"
	case openai.ProviderName:
		if cfg.OpenAIToken == "" {
			return nil, fmt.Errorf("OpenAI token is not configured. Set it in config file (server.openai_token) or environment variable (OPENAI_API_KEY)")
		}
		r := openai.NewResponder(openai.Config{
			BaseURL:      cfg.OpenAIBaseURL,
			Token:        cfg.OpenAIToken,
			Model:        cfg.OpenAIModel,
			SystemPrompt: backend.SystemPrompt,
		}, httpClient)
		responder, name = r, r.Name()
	case anthropic.ProviderName:
		if cfg.AnthropicToken == "" {
			return nil, fmt.Errorf("Anthropic token is not configured. Set it in config file (server.anthropic_token) or environment variable (ANTHROPIC_API_KEY)")
		}
		r := anthropic.NewResponder(anthropic.Config{
			Token:        cfg.AnthropicToken,
			Model:        cfg.AnthropicModel,
			SystemPrompt: backend.SystemPrompt,
		}, httpClient)
		responder, name = r, r.Name()
	case gemini.ProviderName:
		if cfg.GeminiToken == "" {
			return nil, fmt.Errorf("Gemini token is not configured. Set it in config file (server.gemini_token) or environment variable (GEMINI_API_KEY)")
		}
		r := gemini.NewResponder(gemini.Config{
			Token:        cfg.GeminiToken,
			Model:        cfg.GeminiModel,
			SystemPrompt: backend.SystemPrompt,
		}, httpClient)
		responder, name = r, r.Name()
	default:
		return nil, fmt.Errorf("unsupported responder: %s (expected echo, %s, %s or %s)",
			cfg.Responder, openai.ProviderName, anthropic.ProviderName, gemini.ProviderName)
	}

	logger.Info().Str("responder", name).Msg("responder ready")
	return responder, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default from server.addr)")
	serveCmd.Flags().String("db", "", "SQLite database path (default from server.db_path)")
	serveCmd.Flags().String("responder", "", "reply generator: echo, openai, anthropic or gemini (default from server.responder)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("server.db_path", serveCmd.Flags().Lookup("db"))
	viper.BindPFlag("server.responder", serveCmd.Flags().Lookup("responder"))
}
