package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxreader/internal/logging"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in and cache the access token",
		Long: `Sign in with the configured flow and store the token in the cache, so that
later runs of read, web and serve start without prompting. An accepted cached
token is reused.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := current.cfg, current.logger
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			provider, stop := startInstrumentation(ctx, logger)
			defer stop()

			mail := newMailClient(cfg, provider.Metrics(), logger)
			authenticator, err := newAuthenticator(cfg, mail, out, provider.Metrics(), logger)
			if err != nil {
				return err
			}
			session, err := connect(ctx, authenticator, mail, cfg.Auth.Email)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, connectedMessage(session))

			profile, err := mail.Me(ctx)
			if err != nil {
				logger.Warn("could not look up signed-in user", logging.Err(err))
				return nil
			}
			logger.Info("signed in", logging.UserHash(profile.Address), logging.Domain(profile.Address))
			if profile.DisplayName != "" {
				fmt.Fprintf(out, "Signed in as %s <%s>\n", profile.DisplayName, profile.Address)
			} else {
				fmt.Fprintf(out, "Signed in as %s\n", profile.Address)
			}
			return nil
		},
	}
}
