package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the cached access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := current.cfg, current.logger

			mail := newMailClient(cfg, nil, logger)
			authenticator, err := newAuthenticator(cfg, mail, cmd.ErrOrStderr(), nil, logger)
			if err != nil {
				return err
			}
			if err := authenticator.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("clearing token cache: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out. The cached token was removed.")
			return nil
		},
	}
}
