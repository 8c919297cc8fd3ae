package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func NewItemCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Item operations",
	}

	cmd.AddCommand(newItemListCommand(app), newItemGetCommand(app))
	return cmd
}

func newItemListCommand(app *App) *cobra.Command {
	var vault string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the items of a vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Vault()
			if err != nil {
				return err
			}
			items, err := client.ListItems(cmd.Context(), vault)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tCATEGORY")
			for _, it := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\n", it.ID, it.Title, it.Category)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&vault, "vault", "", "Vault name (default from config)")
	return cmd
}

func newItemGetCommand(app *App) *cobra.Command {
	var (
		vault  string
		fields []string
	)

	cmd := &cobra.Command{
		Use:   "get <title>",
		Short: "Print an item or selected fields",
		Long: `Print the item with the given title as JSON.

With --fields only the named fields are printed, one label=value per line.
A single field prints its bare value, suitable for command substitution:

  export DB_PASSWORD="$(opsession item get Database --fields password)"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := app.Vault()
			if err != nil {
				return err
			}
			id, err := client.GetUUID(ctx, args[0], vault)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(fields) == 0 {
				item, err := client.GetItem(ctx, id)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(item)
			}

			values, err := client.GetFields(ctx, id, fields...)
			if err != nil {
				return err
			}
			if len(fields) == 1 {
				fmt.Fprintln(out, values[fields[0]])
				return nil
			}
			for _, label := range fields {
				fmt.Fprintf(out, "%s=%s\n", label, values[label])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&vault, "vault", "", "Vault name (default from config)")
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "Comma separated field labels")
	return cmd
}
