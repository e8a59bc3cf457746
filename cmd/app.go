package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxreader/internal/auth"
	"github.com/teemow/inboxreader/internal/config"
	"github.com/teemow/inboxreader/internal/instrumentation"
	"github.com/teemow/inboxreader/internal/logging"
	"github.com/teemow/inboxreader/internal/outlook"
)

// app holds what every command needs once flags are parsed.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

var current app

// loadApp merges defaults, config file, environment and flags, and installs
// the logger on stderr. Commands that need no configuration skip it.
func loadApp(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[annotationNoConfig] == "true" {
		return nil
	}

	loader := config.NewLoader()
	if err := loader.BindFlags(cmd.Flags()); err != nil {
		return err
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, level, cfg.Log.Format)
	slog.SetDefault(logger)
	if used := loader.ConfigFileUsed(); used != "" {
		logger.Debug("loaded config file", slog.String("path", used))
	}

	current = app{cfg: cfg, logger: logger}
	return nil
}

const annotationNoConfig = "inboxreader/no-config"

// startInstrumentation creates the OpenTelemetry provider from the
// environment. The returned function flushes and stops it.
func startInstrumentation(ctx context.Context, logger *slog.Logger) (*instrumentation.Provider, func()) {
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		logger.Warn("instrumentation disabled", logging.Err(err))
		provider, _ = instrumentation.NewProvider(ctx, instrumentation.Config{Enabled: false})
	}
	return provider, func() {
		if err := provider.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("error during instrumentation shutdown", logging.Err(err))
		}
	}
}

// newMailClient builds the Graph client from configuration.
func newMailClient(cfg *config.Config, metrics *instrumentation.Metrics, logger *slog.Logger) *outlook.Client {
	return outlook.NewClient(outlook.Options{
		BaseURL:        cfg.Graph.URL,
		RequestTimeout: cfg.Graph.RequestTimeout,
		ProbeTimeout:   cfg.Graph.ProbeTimeout,
		Logger:         logger,
		Metrics:        metrics,
	})
}

// newTokenCache opens the configured cache backend.
func newTokenCache(cfg *config.Config) (auth.TokenCache, error) {
	cache, err := auth.NewTokenCache(cfg.Auth.CacheBackend, cfg.Auth.CachePath)
	if err != nil {
		return nil, fmt.Errorf("opening token cache: %w", err)
	}
	return cache, nil
}

// newAuthenticator wires the configured flow, cache and the Graph probe.
// Sign-in instructions go to prompt.
func newAuthenticator(cfg *config.Config, mail *outlook.Client, prompt io.Writer,
	metrics *instrumentation.Metrics, logger *slog.Logger) (*auth.Authenticator, error) {
	cache, err := newTokenCache(cfg)
	if err != nil {
		return nil, err
	}

	flow, err := auth.NewFlow(cfg.Auth.Flow, auth.FlowOptions{
		ClientID:        cfg.Auth.ClientID,
		Endpoints:       auth.NewEndpoints(cfg.Auth.AuthorityHost, cfg.Auth.Tenant),
		Prompt:          prompt,
		Logger:          logger,
		CallbackAddr:    cfg.Auth.CallbackAddr,
		CallbackTimeout: cfg.Auth.CallbackTimeout,
	})
	if err != nil {
		return nil, err
	}

	return auth.NewAuthenticator(cache, flow, mail,
		auth.WithLogger(logger), auth.WithMetrics(metrics)), nil
}

// connect signs in and hands the credential to mail.
func connect(ctx context.Context, authenticator *auth.Authenticator, mail *outlook.Client, hint string) (*auth.Session, error) {
	session, err := authenticator.Connect(ctx, hint)
	if err != nil {
		return nil, err
	}
	mail.SetCredential(session.Credential)
	return session, nil
}

// connectedMessage is printed after a successful sign-in.
func connectedMessage(session *auth.Session) string {
	msg := "✓ Successfully connected to Outlook!"
	if session.FromCache {
		msg = "✓ Successfully authenticated using cached token"
	}
	if !session.Persisted {
		msg += " (token not cached)"
	}
	return msg
}
