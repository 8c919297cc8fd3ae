package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/opsession/internal/execenv"
	"github.com/systmms/opsession/internal/profile"
)

func NewRunCommand(app *App) *cobra.Command {
	var (
		account      string
		printVars    bool
		keepExisting bool
		workingDir   string
	)

	cmd := &cobra.Command{
		Use:   "run -- <command> [args...]",
		Short: "Run a command with the 1Password session in its environment",
		Long: `Ensure a session, then run a command with OP_SESSION_<account> set so that
op calls made by the command reuse it.

Examples:
  opsession run -- op item list
  opsession run --account acme -- ./deploy.sh`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := execenv.ValidateCommand(args); err != nil {
				return err
			}
			m, err := app.Manager()
			if err != nil {
				return err
			}

			acct := app.Account()
			if account != "" {
				acct.Shorthand = account
			}
			s, err := m.EnsureSession(cmd.Context(), acct, nil)
			if err != nil {
				if s == nil {
					return err
				}
				app.Logger.Warn("%v", err)
			}

			vars := map[string]string{profile.Key(profile.SessionKeyPrefix, s.Account): s.Token}
			if device, ok := app.lookupEnv(profile.DeviceKey); ok {
				vars[profile.DeviceKey] = device
			}

			return execenv.New(app.Logger).Run(cmd.Context(), execenv.Options{
				Command:      args,
				Environment:  vars,
				KeepExisting: keepExisting,
				PrintVars:    printVars,
				WorkingDir:   workingDir,
				Stdin:        cmd.InOrStdin(),
				Stdout:       cmd.OutOrStdout(),
				Stderr:       cmd.ErrOrStderr(),
			})
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Account shorthand (default from config or profile)")
	cmd.Flags().BoolVar(&printVars, "print-vars", false, "Print the added variables with masked values")
	cmd.Flags().BoolVar(&keepExisting, "keep-existing", false, "Do not override variables already set")
	cmd.Flags().StringVar(&workingDir, "dir", "", "Working directory for the command")

	return cmd
}
