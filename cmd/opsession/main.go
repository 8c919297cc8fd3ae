package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/opsession/cmd/opsession/commands"
	"github.com/systmms/opsession/internal/execenv"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		var exitErr *execenv.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	app := &commands.App{}
	defer app.Close()

	rootCmd := &cobra.Command{
		Use:   "opsession",
		Short: "Manage 1Password CLI sessions",
		Long: `opsession signs in to the 1Password CLI once and keeps the session token in
your shell profile, so later commands reuse it instead of asking for the
password again.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.Init()
		},
	}

	rootCmd.PersistentFlags().StringVar(&app.ConfigPath, "config", "", "Config file path (default $XDG_CONFIG_HOME/opsession/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&app.NoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&app.Debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&app.NonInteractive, "non-interactive", false, "Fail instead of prompting")

	rootCmd.AddCommand(
		commands.NewSigninCommand(app),
		commands.NewSignoutCommand(app),
		commands.NewStatusCommand(app),
		commands.NewItemCommand(app),
		commands.NewDocumentCommand(app),
		commands.NewVaultCommand(app),
		commands.NewProfileCommand(app),
		commands.NewRunCommand(app),
		commands.NewDoctorCommand(app),
		commands.NewCompletionCommand(app),
	)

	return rootCmd.Execute()
}
