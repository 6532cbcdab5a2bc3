package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest6511/sshctl/internal/config"
	"github.com/forest6511/sshctl/internal/logging"
	"github.com/forest6511/sshctl/pkg/catalog"
)

// completionTimeout bounds the login and listing done for one completion.
const completionTimeout = 20 * time.Second

// isDynamicCompletionEnabled checks if dynamic completion is opt-in enabled.
// It is off by default because every completion logs in to the vault.
func isDynamicCompletionEnabled() bool {
	return os.Getenv(envCompletionEnabled) == "1"
}

// completeLabels completes connection labels for the first argument.
// It never prompts: without SSHCTL_PASSWORD it returns nothing.
func completeLabels(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 || !isDynamicCompletionEnabled() || os.Getenv(envPassword) == "" {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	c := cfg
	if c == nil {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		c = loaded
	}
	if resolveEmail(c.Email) == "" {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
	defer cancel()

	// Completions must not show up in history.
	quiet := *c
	quiet.HistoryEnabled = false
	env := newEnvironment(&quiet, logging.Discard())
	defer env.Close()
	env.app.Out = nil
	if err := env.app.Login(ctx); err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	conns, err := env.app.Connections(ctx)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	return matchingLabels(conns, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// matchingLabels returns the distinct labels starting with prefix, in list
// order.
func matchingLabels(conns []catalog.Connection, prefix string) []string {
	seen := make(map[string]bool)
	var labels []string
	for _, c := range conns {
		if seen[c.Label] || !strings.HasPrefix(c.Label, prefix) {
			continue
		}
		seen[c.Label] = true
		labels = append(labels, c.Label)
	}
	return labels
}
