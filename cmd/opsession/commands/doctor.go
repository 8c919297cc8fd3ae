package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	dserrors "github.com/systmms/opsession/internal/errors"
	"github.com/systmms/opsession/internal/profile"
	"github.com/systmms/opsession/pkg/exec"
)

// Check statuses.
const (
	checkOK   = "ok"
	checkWarn = "warn"
	checkFail = "error"
)

// CheckResult is one line of the doctor report.
type CheckResult struct {
	Name       string
	Status     string
	Message    string
	Suggestion string
}

func NewDoctorCommand(app *App) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the 1Password CLI, profile and keychain setup",
		Long: `Verify that opsession can work on this machine.

This command checks:
- Configuration file validity
- The 1Password CLI is installed
- A shell profile exists and carries a device id
- The OS keychain, when Secret Key storage is enabled
- A saved session for the configured account`,
		RunE: func(cmd *cobra.Command, args []string) error {
			results := runChecks(cmd.Context(), app)
			out := cmd.OutOrStdout()
			displayCheckResults(out, results, verbose)

			failed := 0
			for _, r := range results {
				if r.Status == checkFail {
					failed++
				}
			}
			fmt.Fprintf(out, "\nSummary: %d/%d checks passed\n", len(results)-failed, len(results))
			if failed > 0 {
				return fmt.Errorf("%d checks failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show suggestions for every check")
	return cmd
}

func runChecks(ctx context.Context, app *App) []CheckResult {
	var results []CheckResult

	cfgCheck := CheckResult{Name: "config", Status: checkOK, Message: "defaults (no config file)"}
	if app.Config.Path != "" {
		cfgCheck.Message = app.Config.Path
	}
	results = append(results, cfgCheck)

	results = append(results, checkBinary(ctx, app))

	store, err := app.Profile()
	if err != nil {
		results = append(results, CheckResult{
			Name:       "profile",
			Status:     checkFail,
			Message:    firstLine(err.Error()),
			Suggestion: suggestionOf(err),
		})
	} else {
		results = append(results, CheckResult{Name: "profile", Status: checkOK, Message: strings.Join(store.Paths(), ", ")})
		results = append(results, checkDevice(store), checkSession(app, store))
	}

	if app.Config.Keychain {
		ks := app.Keystore()
		if ks.Usable() {
			results = append(results, CheckResult{Name: "keychain", Status: checkOK, Message: "available"})
		} else {
			results = append(results, CheckResult{
				Name:       "keychain",
				Status:     checkWarn,
				Message:    "not usable in this environment",
				Suggestion: "The Secret Key will be prompted for on first sign-in",
			})
		}
	}

	return results
}

func checkBinary(ctx context.Context, app *App) CheckResult {
	executor := app.Executor
	if executor == nil {
		executor = exec.DefaultExecutor()
	}
	stdout, _, err := executor.Execute(ctx, app.Config.Binary, "--version")
	if err != nil {
		r := CheckResult{Name: "op", Status: checkFail, Message: firstLine(err.Error())}
		if exec.IsNotFound(err) {
			r.Message = fmt.Sprintf("%s not found", app.Config.Binary)
			r.Suggestion = "Install the 1Password CLI from https://developer.1password.com/docs/cli/get-started/"
		}
		return r
	}
	return CheckResult{Name: "op", Status: checkOK, Message: "version " + strings.TrimSpace(string(stdout))}
}

func checkDevice(store *profile.Store) CheckResult {
	if _, err := store.Get(profile.DeviceKey); err != nil {
		return CheckResult{
			Name:       "device",
			Status:     checkWarn,
			Message:    "no OP_DEVICE in profile",
			Suggestion: "One is created on the next sign-in",
		}
	}
	return CheckResult{Name: "device", Status: checkOK, Message: "OP_DEVICE set"}
}

func checkSession(app *App, store *profile.Store) CheckResult {
	statuses, err := collectStatus(store, app.lookupEnv)
	if err != nil {
		return CheckResult{Name: "session", Status: checkFail, Message: firstLine(err.Error())}
	}
	for _, s := range statuses {
		if app.Config.Account != "" && s.Account != app.Config.Account {
			continue
		}
		if s.Env || s.Profile || s.SSO {
			return CheckResult{Name: "session", Status: checkOK, Message: "saved for " + s.Account}
		}
	}
	return CheckResult{
		Name:       "session",
		Status:     checkWarn,
		Message:    "no saved session",
		Suggestion: "Run: eval \"$(opsession signin)\"",
	}
}

func displayCheckResults(out io.Writer, results []CheckResult, verbose bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "CHECK\tSTATUS\tMESSAGE\n")
	_, _ = fmt.Fprintf(w, "-----\t------\t-------\n")
	for _, r := range results {
		status := r.Status
		switch r.Status {
		case checkOK:
			status = "✓ " + status
		case checkFail:
			status = "✗ " + status
		default:
			status = "! " + status
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, status, r.Message)
	}
	_ = w.Flush()

	for _, r := range results {
		if r.Suggestion == "" || (r.Status != checkFail && !verbose) {
			continue
		}
		_, _ = fmt.Fprintf(out, "\n%s: %s\n", r.Name, r.Suggestion)
	}
}

func suggestionOf(err error) string {
	var ue dserrors.UserError
	if errors.As(err, &ue) {
		return ue.Suggestion
	}
	return ""
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
