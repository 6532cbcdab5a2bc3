package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

var avatarOutput string

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(avatarCmd)

	avatarCmd.Flags().StringVarP(&avatarOutput, "output", "o", "", "Write the image to this file ('-' for stdout)")
	avatarCmd.MarkFlagRequired("output")
}

// loginCmd checks that the credentials work. The session ends when the
// command exits.
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Verify Bitwarden credentials",
	Long: `Log in to Bitwarden with an isolated bw configuration, sync, and report the
account. The session is discarded when the command exits; every other
command logs in for its own lifetime.

The master password is read from SSHCTL_PASSWORD when set, otherwise it is
prompted for without echo.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(env *environment) error {
			info := env.manager.UserInfo(cmd.Context())
			if info == nil {
				return fmt.Errorf("login succeeded but the vault is %s", env.manager.Status(cmd.Context()))
			}
			fmt.Fprintf(stdout, "Logged in as %s\n", info.Email)
			fmt.Fprintf(stdout, "Server:  %s\n", info.Server)
			fmt.Fprintf(stdout, "User ID: %s\n", info.UserID)
			return nil
		})
	},
}

// statusCmd reports configuration and, when credentials are available
// without prompting, the live vault state.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and vault status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bwPath, err := exec.LookPath(cfg.BWBinary)
		if err != nil {
			bwPath = "not found"
		}
		configPath := cfg.File()
		if configPath == "" {
			configPath = "(none)"
		}
		fmt.Fprintf(stdout, "Config:  %s\n", configPath)
		fmt.Fprintf(stdout, "bw CLI:  %s\n", bwPath)
		fmt.Fprintf(stdout, "Server:  %s\n", cfg.Server)
		fmt.Fprintf(stdout, "Folder:  %s\n", cfg.Folder)

		return withEnvironment(func(env *environment) error {
			if os.Getenv(envPassword) == "" || resolveEmail(cfg.Email) == "" {
				return env.app.Status(cmd.Context())
			}
			if err := env.app.Login(cmd.Context()); err != nil {
				fmt.Fprintln(stdout, "Status: login failed")
				return err
			}
			return env.app.Status(cmd.Context())
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in Bitwarden account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(env *environment) error {
			return env.app.Whoami(cmd.Context())
		})
	},
}

var avatarCmd = &cobra.Command{
	Use:   "avatar",
	Short: "Download the account's profile image",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(env *environment) error {
			data := env.manager.FetchAvatar(cmd.Context())
			if data == nil {
				return errors.New("no avatar available for this account")
			}
			if avatarOutput == "-" {
				_, err := stdout.Write(data)
				return err
			}
			if err := os.WriteFile(avatarOutput, data, 0600); err != nil {
				return fmt.Errorf("failed to write avatar: %w", err)
			}
			fmt.Fprintf(stderr, "Avatar saved to %s (%d bytes)\n", avatarOutput, len(data))
			return nil
		})
	},
}
