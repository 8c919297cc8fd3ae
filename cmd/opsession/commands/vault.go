package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func NewVaultCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Vault operations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the vaults of the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Vault()
			if err != nil {
				return err
			}
			vaults, err := client.ListVaults(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME")
			for _, v := range vaults {
				fmt.Fprintf(w, "%s\t%s\n", v.ID, v.Name)
			}
			return w.Flush()
		},
	})

	return cmd
}
