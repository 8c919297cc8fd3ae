package commands

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func NewDocumentCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "document",
		Short: "Document operations",
		Long:  `Read and write structured (JSON or YAML) documents stored in 1Password.`,
	}

	cmd.AddCommand(
		newDocumentGetCommand(app),
		newDocumentPutCommand(app),
		newDocumentDeleteCommand(app),
		newDocumentUpdateCommand(app),
	)
	return cmd
}

func newDocumentGetCommand(app *App) *cobra.Command {
	var (
		vault  string
		format string
	)

	cmd := &cobra.Command{
		Use:   "get <title>",
		Short: "Print a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Vault()
			if err != nil {
				return err
			}
			doc, err := client.GetDocument(cmd.Context(), args[0], vault)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch strings.ToLower(format) {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			case "yaml", "yml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(doc); err != nil {
					return err
				}
				return enc.Close()
			default:
				return fmt.Errorf("unsupported format %q (use json or yaml)", format)
			}
		},
	}

	cmd.Flags().StringVar(&vault, "vault", "", "Vault name (default from config)")
	cmd.Flags().StringVarP(&format, "format", "o", "json", "Output format: json or yaml")
	return cmd
}

func newDocumentPutCommand(app *App) *cobra.Command {
	var (
		vault string
		title string
	)

	cmd := &cobra.Command{
		Use:   "put <file>",
		Short: "Upload a file as a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Vault()
			if err != nil {
				return err
			}
			t := documentTitle(title, args[0])
			if err := client.PutDocument(cmd.Context(), args[0], t, vault); err != nil {
				return err
			}
			app.Logger.Info("Uploaded %s as %q", args[0], t)
			return nil
		},
	}

	cmd.Flags().StringVar(&vault, "vault", "", "Vault name (default from config)")
	cmd.Flags().StringVar(&title, "title", "", "Document title (default the file name)")
	return cmd
}

func newDocumentDeleteCommand(app *App) *cobra.Command {
	var vault string

	cmd := &cobra.Command{
		Use:   "delete <title>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Vault()
			if err != nil {
				return err
			}
			if err := client.DeleteDocument(cmd.Context(), args[0], vault); err != nil {
				return err
			}
			app.Logger.Info("Deleted %q", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&vault, "vault", "", "Vault name (default from config)")
	return cmd
}

func newDocumentUpdateCommand(app *App) *cobra.Command {
	var (
		vault string
		title string
	)

	cmd := &cobra.Command{
		Use:   "update <file>",
		Short: "Replace a document with a local file",
		Long: `Replace the document with the content of a local file. The old document is
deleted, the file is uploaded under the same title and then removed from
disk.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Vault()
			if err != nil {
				return err
			}
			t := documentTitle(title, args[0])
			if err := client.UpdateDocument(cmd.Context(), args[0], t, vault); err != nil {
				return err
			}
			app.Logger.Info("Updated %q from %s", t, args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&vault, "vault", "", "Vault name (default from config)")
	cmd.Flags().StringVar(&title, "title", "", "Document title (default the file name)")
	return cmd
}

func documentTitle(title, file string) string {
	if title != "" {
		return title
	}
	return filepath.Base(file)
}
