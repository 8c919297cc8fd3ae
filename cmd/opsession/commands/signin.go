package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/opsession/internal/profile"
)

func NewSigninCommand(app *App) *cobra.Command {
	var (
		account string
		email   string
		domain  string
		sso     bool
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in to 1Password and print the session export",
		Long: `Sign in to the 1Password CLI, reusing a saved session when one exists.

The session token is saved to your shell profile and printed as an export
line so the current shell can pick it up:

  eval "$(opsession signin)"

The first sign-in on a machine asks for your email, account and Secret Key.
Use --sso for accounts that sign in through an identity provider.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := app.Manager()
			if err != nil {
				return err
			}

			acct := app.Account()
			if account != "" {
				acct.Shorthand = account
			}
			if email != "" {
				acct.Email = email
			}
			if domain != "" {
				acct.Domain = domain
			}

			if sso {
				if err := m.SignInSSO(ctx, acct.Shorthand); err != nil {
					return err
				}
				app.Logger.Info("Signed in with SSO")
				return nil
			}

			if force {
				_, err = m.SignIn(ctx, acct, nil)
			} else {
				_, err = m.EnsureSession(ctx, acct, nil)
			}
			s := m.Current()
			if err != nil {
				if s == nil {
					return err
				}
				app.Logger.Warn("%v", err)
			}

			app.Logger.Debug("Session for %s from %s", s.Account, s.Source)
			fmt.Fprintf(cmd.OutOrStdout(), "export %s=\"%s\"\n", profile.Key(profile.SessionKeyPrefix, s.Account), s.Token)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Account shorthand (default from config or profile)")
	cmd.Flags().StringVar(&email, "email", "", "Email address, forces the first-time sign-in")
	cmd.Flags().StringVar(&domain, "domain", "", "Sign-in address, e.g. acme.1password.com")
	cmd.Flags().BoolVar(&sso, "sso", false, "Sign in through SSO")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Sign in even when a saved session exists")

	return cmd
}
