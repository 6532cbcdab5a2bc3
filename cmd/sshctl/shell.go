package main

import (
	"bufio"
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forest6511/sshctl/internal/cli"
	"github.com/forest6511/sshctl/internal/config"
	"github.com/forest6511/sshctl/internal/logging"
)

var shellNoLogin bool

func init() {
	rootCmd.AddCommand(shellCmd)

	shellCmd.Flags().BoolVar(&shellNoLogin, "no-login", false, "Start without logging in")
}

// shellCmd keeps one session open across many commands.
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive shell: log in once, list and connect repeatedly",
	Long: `Start an interactive shell. The vault session lives until you log out or
leave the shell. Type 'help' for the available commands.

Edits to the config file are picked up while the shell runs: a changed
folder takes effect on the next list, and a changed log level immediately.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnvironment(func(env *environment) error {
			ctx := cmd.Context()
			watchConfig(env)

			fmt.Fprintln(stdout, "sshctl interactive shell. Type 'help' for commands.")
			if !shellNoLogin {
				if err := env.app.Login(ctx); err != nil {
					fmt.Fprintln(stdout, "Error:", err)
				} else {
					fmt.Fprintf(stdout, "Logged in as %s\n", env.manager.Snapshot().UserEmail)
				}
			}

			cli.RunREPL(ctx, env.app, shellPrompt(ctx, env), bufio.NewScanner(stdin), stdout)
			return nil
		})
	},
}

func shellPrompt(ctx context.Context, env *environment) func() string {
	return func() string {
		if !env.app.LoggedIn(ctx) {
			return "sshctl (logged out)> "
		}
		return fmt.Sprintf("sshctl (%s)> ", env.manager.Snapshot().UserEmail)
	}
}

// watchConfig applies config file edits to the running shell.
func watchConfig(env *environment) {
	env.cfg.Watch(func(updated *config.Config, err error) {
		if err != nil {
			logger.Warn("Ignoring invalid config change", "error", err)
			return
		}
		logger.SetLevel(logging.ParseLevel(updated.LogLevel))
		if updated.Folder != env.loader.Folder() {
			logger.Info("Vault folder changed", "from", env.loader.Folder(), "to", updated.Folder)
			env.loader = newLoader(env, updated.Folder, logger)
			env.app.SetCatalog(env.loader)
		}
	})
}
