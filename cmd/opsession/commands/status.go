package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/opsession/internal/profile"
)

// AccountStatus is what status reports for one account.
type AccountStatus struct {
	Account string
	Env     bool
	Profile bool
	SSO     bool
}

func NewStatusCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show saved sessions",
		Long: `List the accounts with a session in the environment or in the shell profile.
Tokens are never printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.Profile()
			if err != nil {
				return err
			}
			statuses, err := collectStatus(store, app.lookupEnv)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Profile: %s\n", strings.Join(store.Paths(), ", "))
			if len(statuses) == 0 {
				fmt.Fprintln(out, "No sessions. Run 'opsession signin' to create one.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ACCOUNT\tENV\tPROFILE\tSSO")
			for _, s := range statuses {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Account, mark(s.Env), mark(s.Profile), mark(s.SSO))
			}
			return w.Flush()
		},
	}

	return cmd
}

func (a *App) lookupEnv(key string) (string, bool) {
	if a.Env != nil {
		return a.Env.LookupEnv(key)
	}
	return os.LookupEnv(key)
}

func collectStatus(store *profile.Store, lookupEnv func(string) (string, bool)) ([]AccountStatus, error) {
	var (
		order []string
		byAcc = map[string]*AccountStatus{}
	)
	get := func(account string) *AccountStatus {
		s, ok := byAcc[account]
		if !ok {
			s = &AccountStatus{Account: account}
			byAcc[account] = s
			order = append(order, account)
		}
		return s
	}

	for _, prefix := range []string{profile.SessionKeyPrefix, profile.SSOKeyPrefix} {
		entries, err := store.Lookup(prefix+"_", true)
		if err != nil && !errors.Is(err, profile.ErrNotFound) {
			return nil, err
		}
		for _, e := range entries {
			account, ok := strings.CutPrefix(e.Key, prefix+"_")
			if !ok || account == "" {
				continue
			}
			s := get(account)
			if prefix == profile.SSOKeyPrefix {
				s.SSO = e.Value == "true"
				continue
			}
			s.Profile = e.Value != ""
		}
	}

	for _, account := range order {
		if _, ok := lookupEnv(profile.Key(profile.SessionKeyPrefix, account)); ok {
			byAcc[account].Env = true
		}
	}

	statuses := make([]AccountStatus, 0, len(order))
	for _, account := range order {
		statuses = append(statuses, *byAcc[account])
	}
	return statuses, nil
}

func mark(b bool) string {
	if b {
		return "✓"
	}
	return "-"
}
