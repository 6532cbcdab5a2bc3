package main

import (
	"github.com/spf13/cobra"
)

// completionCmd prints a cobra completion script. It never touches the
// vault itself; label completion happens later, when the shell calls back
// into sshctl.
var completionCmd = &cobra.Command{
	Use:   "completion <bash|zsh|fish|powershell>",
	Short: "Print a shell completion script",
	Long: `Print a completion script for the given shell to stdout.

The script completes subcommands, flags and the values of -o/--output
offline. Connection labels for 'connect' and 'show' are completed by
calling back into sshctl, which has to log in to the vault first. That
callback is off unless SSHCTL_COMPLETION_ENABLED=1 is exported together
with SSHCTL_EMAIL and SSHCTL_PASSWORD. Each lookup is limited to 20s and
is not written to history.

Examples:
  source <(sshctl completion bash)
  sshctl completion zsh  > "${fpath[1]}/_sshctl"
  sshctl completion fish > ~/.config/fish/completions/sshctl.fish
  sshctl completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	// Completion output must not depend on configuration.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(stdout)
		case "zsh":
			return cmd.Root().GenZshCompletion(stdout)
		case "fish":
			return cmd.Root().GenFishCompletion(stdout, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(stdout)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
