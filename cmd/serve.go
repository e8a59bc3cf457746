package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teemow/inboxreader/internal/config"
	"github.com/teemow/inboxreader/internal/logging"
	"github.com/teemow/inboxreader/internal/resources"
	"github.com/teemow/inboxreader/internal/server"
	"github.com/teemow/inboxreader/internal/tools/mail_tools"
)

func newServeCmd() *cobra.Command {
	var metrics bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Start the Model Context Protocol (MCP) server on standard input/output to
give AI assistants read-only access to the inbox.

The server signs in before it starts serving, reusing the cached token while
Microsoft Graph accepts it. Sign-in instructions are written to stderr, since
stdout carries the MCP transport; run "inboxreader login" beforehand to avoid
them.

Tools:
  outlook_list_recent, outlook_list_unread, outlook_list_since, outlook_search

Resources:
  user://profile, user://session`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runServe(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), current.cfg, current.logger, metrics)
		},
	}

	cmd.Flags().String(config.FlagMetricsAddr, "", "Address for the Prometheus metrics server (default: :9090)")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "Serve Prometheus metrics")

	return cmd
}

func runServe(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer,
	cfg *config.Config, logger *slog.Logger, metrics bool) error {
	provider, stop := startInstrumentation(ctx, logger)
	defer stop()

	mail := newMailClient(cfg, provider.Metrics(), logger)
	authenticator, err := newAuthenticator(cfg, mail, stderr, provider.Metrics(), logger)
	if err != nil {
		return err
	}
	session, err := connect(ctx, authenticator, mail, cfg.Auth.Email)
	if err != nil {
		return err
	}
	fmt.Fprintln(stderr, connectedMessage(session))

	sc := server.NewServerContext(ctx, mail,
		server.WithMetrics(provider.Metrics()),
		server.WithLogger(logger))
	defer func() { _ = sc.Shutdown() }()

	mcpSrv := newMCPServer()
	if err := mail_tools.RegisterMailTools(mcpSrv, sc); err != nil {
		return fmt.Errorf("failed to register mail tools: %w", err)
	}
	if err := resources.RegisterUserResources(mcpSrv, sc); err != nil {
		return fmt.Errorf("failed to register resources: %w", err)
	}

	var metricsServer *server.MetricsServer
	if metrics && provider.PrometheusEnabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.Web.MetricsAddr,
			InstrumentationProvider: provider,
			Logger:                  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		if err := metricsServer.Listen(); err != nil {
			return err
		}
	}

	serveCtx, stopServing := context.WithCancel(ctx)
	defer stopServing()

	g, gctx := errgroup.WithContext(serveCtx)
	g.Go(func() error {
		// The client closing stdin ends the session.
		defer stopServing()
		stdio := mcpserver.NewStdioServer(mcpSrv)
		stdio.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))
		if err := stdio.Listen(gctx, stdin, stdout); err != nil && gctx.Err() == nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	})
	if metricsServer != nil {
		g.Go(metricsServer.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), server.DefaultShutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("error during metrics server shutdown", logging.Err(err))
			}
			return nil
		})
	}

	return g.Wait()
}

func newMCPServer() *mcpserver.MCPServer {
	return mcpserver.NewMCPServer("inboxreader", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false),
	)
}
