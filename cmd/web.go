package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teemow/inboxreader/internal/auth"
	"github.com/teemow/inboxreader/internal/config"
	"github.com/teemow/inboxreader/internal/logging"
	"github.com/teemow/inboxreader/internal/server"
)

func newWebCmd() *cobra.Command {
	var (
		noBrowser bool
		metrics   bool
	)

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the local web UI",
		Long: `Serve a single-page inbox viewer and its JSON API on localhost.

The server starts with the cached token when Microsoft Graph still accepts it.
Otherwise paste an access token with Mail.Read into the page, for example one
copied from Graph Explorer, or run "inboxreader login" first.

Health endpoints /healthz, /readyz and /healthz/detailed are served next to
the UI. Prometheus metrics are served on --metrics-addr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runWeb(ctx, cmd.OutOrStdout(), current.cfg, current.logger, !noBrowser, metrics)
		},
	}

	cmd.Flags().String(config.FlagAddr, "", "Address for the web UI (default: localhost:5000)")
	cmd.Flags().String(config.FlagMetricsAddr, "", "Address for the Prometheus metrics server (default: :9090)")
	cmd.Flags().BoolVar(&metrics, "metrics", true, "Serve Prometheus metrics")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Do not open the UI in a browser")

	return cmd
}

func runWeb(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger, openBrowser, metrics bool) error {
	provider, stop := startInstrumentation(ctx, logger)
	defer stop()

	mail := newMailClient(cfg, provider.Metrics(), logger)
	sc := server.NewServerContext(ctx, mail,
		server.WithMetrics(provider.Metrics()),
		server.WithLogger(logger))
	defer func() { _ = sc.Shutdown() }()

	if cfg.Web.PrimeFromCache {
		if cache, err := newTokenCache(cfg); err != nil {
			logger.Warn("token cache unavailable", logging.Err(err))
		} else {
			sc.PrimeFromCache(ctx, cache)
		}
	}

	health := server.NewHealthChecker(sc, version)
	web := server.NewWebServer(sc, health, cfg.Web.Addr)
	if err := web.Listen(); err != nil {
		return err
	}

	var metricsServer *server.MetricsServer
	if metrics && provider.PrometheusEnabled() {
		var err error
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

	printWebInstructions(out, web.URL(), sc.Authenticated())
	if openBrowser {
		if err := auth.OpenBrowser(web.URL()); err != nil {
			logger.Debug("could not open browser", logging.Err(err))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(web.Start)
	if metricsServer != nil {
		g.Go(metricsServer.Start)
	}
	g.Go(func() error {
		<-gctx.Done()
		health.SetReady(false)
		_ = sc.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), server.DefaultShutdownTimeout)
		defer cancel()
		var errs []error
		if err := web.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("web server shutdown: %w", err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
			}
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Fprintln(out, "Server stopped.")
	return nil
}

func printWebInstructions(out io.Writer, url string, authenticated bool) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Outlook Email Reader - Web Interface")
	fmt.Fprintf(out, "\nWeb interface: %s\n", url)
	if authenticated {
		fmt.Fprintln(out, "\nSigned in with the cached token.")
	} else {
		fmt.Fprintln(out, "\nTo sign in:")
		fmt.Fprintln(out, "1. Visit https://developer.microsoft.com/en-us/graph/graph-explorer")
		fmt.Fprintln(out, "2. Sign in with your work or school account")
		fmt.Fprintln(out, "3. Grant the Mail.Read permission")
		fmt.Fprintln(out, "4. Copy the access token")
		fmt.Fprintln(out, "5. Paste it into the web interface")
		fmt.Fprintln(out, "Or run 'inboxreader login' and restart the server.")
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop the server")
}
