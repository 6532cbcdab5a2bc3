package main

import (
	"github.com/spf13/cobra"

	"github.com/forest6511/sshctl/internal/cli"
)

var connectExec bool

func init() {
	rootCmd.AddCommand(connectCmd)

	connectCmd.Flags().BoolVar(&connectExec, "exec", false, "Replace sshctl with ssh instead of running it as a child")
}

// connectCmd opens an SSH session. Passwords are never passed to ssh; key
// or agent authentication, or ssh's own prompt, is used.
var connectCmd = &cobra.Command{
	Use:   "connect <label|n|glob>",
	Short: "Open an SSH session to a connection",
	Long: `Open an SSH session to the connection selected by label, by its number in
'sshctl list', or by a label glob that matches exactly one connection.

ssh runs as a child process and its exit status becomes sshctl's. With
--exec, sshctl logs out of the vault and replaces itself with ssh.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeLabels,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if !connectExec {
			return withSession(ctx, func(env *environment) error {
				return env.app.Connect(ctx, args[0])
			})
		}

		env := newEnvironment(cfg, logger)
		if err := env.app.Login(ctx); err != nil {
			env.Close()
			return err
		}
		conn, err := env.app.Resolve(ctx, args[0])
		if err == nil {
			_, _, err = env.launcher.Prepare(conn)
		}
		if err != nil {
			env.Close()
			return err
		}
		env.app.Record(ctx, cli.ConnectEvent(env.manager.Snapshot().UserEmail, conn))
		// Exec does not return on success, so the session is torn down first.
		env.Close()
		return env.launcher.Exec(conn)
	},
}
