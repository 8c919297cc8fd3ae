package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/opsession/internal/logging"
	"github.com/systmms/opsession/internal/profile"
)

func NewProfileCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect the managed shell profile",
	}

	cmd.AddCommand(newProfileGetCommand(app))
	return cmd
}

func newProfileGetCommand(app *App) *cobra.Command {
	var (
		fuzzy  bool
		reveal bool
	)

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print export entries from the profile",
		Long: `Print the export entries for key from the shell profile, one KEY=VALUE per
line. With --fuzzy every entry whose line contains key is printed.
Session tokens are redacted unless --reveal is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.Profile()
			if err != nil {
				return err
			}
			entries, err := store.Lookup(args[0], fuzzy)
			if err != nil {
				return err
			}
			for _, e := range entries {
				var value any = e.Value
				if !reveal && isSessionKey(e.Key) {
					value = logging.Secret(e.Value)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%v\n", e.Key, value)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fuzzy, "fuzzy", false, "Match any line containing key")
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print session tokens in clear")
	return cmd
}

func isSessionKey(key string) bool {
	return strings.HasPrefix(key, profile.SessionKeyPrefix+"_")
}
