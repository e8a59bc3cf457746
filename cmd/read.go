package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxreader/internal/console"
	"github.com/teemow/inboxreader/internal/logging"
)

func newReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Browse the inbox from an interactive menu",
		Long: `Sign in (reusing the cached token while Microsoft Graph accepts it) and
browse the inbox from a menu: recent messages, unread messages, messages from
the last 7 days, or a subject/sender search.

The account is taken from --email, OUTLOOK_EMAIL or the config file; when none
is set and stdin is a terminal, you are asked for it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runRead(ctx, cmd)
		},
	}
	return cmd
}

func runRead(ctx context.Context, cmd *cobra.Command) error {
	cfg, logger := current.cfg, current.logger
	out := cmd.OutOrStdout()

	provider, stop := startInstrumentation(ctx, logger)
	defer stop()

	mail := newMailClient(cfg, provider.Metrics(), logger)
	menu := console.NewMenu(mail, cmd.InOrStdin(), out,
		console.WithTheme(console.ThemeFor(out)),
		console.WithLogger(logger))

	email := cfg.Auth.Email
	if email == "" && console.IsTerminal(cmd.InOrStdin()) {
		answer, err := menu.Ask("Enter your email address: ")
		if err != nil {
			return fmt.Errorf("reading email address: %w", err)
		}
		email = answer
	}
	if email != "" {
		logger.Debug("using login hint", logging.UserHash(email))
	}

	authenticator, err := newAuthenticator(cfg, mail, out, provider.Metrics(), logger)
	if err != nil {
		return err
	}
	session, err := connect(ctx, authenticator, mail, email)
	if err != nil {
		fmt.Fprintln(out, "Failed to authenticate with Outlook. Exiting.")
		return err
	}
	fmt.Fprintln(out, connectedMessage(session))

	return menu.Run(ctx)
}
