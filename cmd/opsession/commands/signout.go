package commands

import (
	"errors"

	"github.com/spf13/cobra"
)

func NewSignoutCommand(app *App) *cobra.Command {
	var (
		account         string
		forgetSecretKey bool
	)

	cmd := &cobra.Command{
		Use:   "signout",
		Short: "Sign out and remove the saved session",
		Long: `End the 1Password CLI session and remove OP_SESSION_<account> from your
shell profile. With --forget-secret-key the account Secret Key is also
removed from the OS keychain.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.Manager()
			if err != nil {
				return err
			}
			if account == "" {
				account = app.Config.Account
			}

			errs := []error{m.SignOut(cmd.Context(), account)}
			if forgetSecretKey && account != "" {
				if err := app.Keystore().DeleteSecretKey(account); err != nil {
					errs = append(errs, err)
				}
			}
			if err := errors.Join(errs...); err != nil {
				return err
			}

			app.Logger.Info("Signed out")
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Account shorthand (default from config or profile)")
	cmd.Flags().BoolVar(&forgetSecretKey, "forget-secret-key", false, "Also delete the Secret Key from the keychain")

	return cmd
}
