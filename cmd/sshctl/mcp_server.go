package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forest6511/sshctl/internal/config"
	"github.com/forest6511/sshctl/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpServerCmd)
}

// mcpServerCmd starts the MCP server for AI coding assistant integration
var mcpServerCmd = &cobra.Command{
	Use:   "mcp-server",
	Short: "Start the MCP server for AI coding assistant integration",
	Long: `Start an MCP (Model Context Protocol) server over stdio that lets AI
assistants look up SSH connections from the vault. Passwords and session
tokens are never returned.

Available tools:
  - vault_status:    Vault state and signed-in account
  - connection_list: Connections with label, host, username, port, folder
  - connection_get:  One connection plus its ssh command line

Authentication:
  Set SSHCTL_EMAIL and SSHCTL_PASSWORD before starting the server. The
  password is read once and immediately cleared from the environment.

Policy:
  Create mcp-policy.yaml (mode 0600) in the sshctl config directory to limit
  which connections are visible:

    version: 1
    default_action: deny
    allowed_labels: ["staging-*"]
    denied_labels: ["staging-db"]
    hide_key_paths: true

  Without a policy file every connection in the folder is visible.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnvironment(func(env *environment) error {
			return runMCPServer(cmd.Context(), env)
		})
	},
}

// runMCPServer serves until ctx is cancelled by a shutdown signal.
func runMCPServer(ctx context.Context, env *environment) error {
	policyDir, err := config.Dir()
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(ctx, &mcp.ServerOptions{
		Sessions:  env.manager,
		Catalog:   env.loader,
		Email:     resolveEmail(env.cfg.Email),
		Server:    env.cfg.Server,
		PolicyDir: policyDir,
		Version:   version,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	if err := server.Run(ctx); err != nil {
		// Don't report context canceled as an error
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
