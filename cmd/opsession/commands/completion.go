package commands

import (
	"io"

	"github.com/spf13/cobra"
)

// completionShells maps each supported shell to its cobra generator.
var completionShells = map[string]func(root *cobra.Command, w io.Writer) error{
	"bash":       func(root *cobra.Command, w io.Writer) error { return root.GenBashCompletionV2(w, true) },
	"zsh":        func(root *cobra.Command, w io.Writer) error { return root.GenZshCompletion(w) },
	"fish":       func(root *cobra.Command, w io.Writer) error { return root.GenFishCompletion(w, true) },
	"powershell": func(root *cobra.Command, w io.Writer) error { return root.GenPowerShellCompletionWithDesc(w) },
}

// NewCompletionCommand prints a completion script for the named shell.
func NewCompletionCommand(_ *App) *cobra.Command {
	return &cobra.Command{
		Use:   "completion bash|zsh|fish|powershell",
		Short: "Print a shell completion script for opsession",
		Long: `Print a completion script covering opsession's commands and flags.

Add it next to the line that restores your session, for example in ~/.bashrc:

  eval "$(opsession signin)"
  source <(opsession completion bash)

Zsh (~/.zshrc, after compinit):
  source <(opsession completion zsh)

Fish (~/.config/fish/config.fish):
  opsession completion fish | source

PowerShell ($PROFILE):
  opsession completion powershell | Out-String | Invoke-Expression

Scripts are written to stdout; prompts and logs stay on stderr.`,
		Example: `  # install once for bash instead of sourcing every shell
  opsession completion bash > ~/.local/share/bash-completion/completions/opsession`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return completionShells[args[0]](cmd.Root(), cmd.OutOrStdout())
		},
	}
}
