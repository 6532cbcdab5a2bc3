package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forest6511/sshctl/internal/cli"
	"github.com/forest6511/sshctl/pkg/catalog"
	"github.com/forest6511/sshctl/pkg/vault"
)

// Output flags
var (
	outputFormat string
	listGroup    string
)

func init() {
	rootCmd.AddCommand(foldersCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)

	for _, c := range []*cobra.Command{foldersCmd, listCmd, showCmd} {
		c.Flags().StringVarP(&outputFormat, "output", "o", cli.FormatTable, "Output format: "+strings.Join(cli.Formats(), ", "))
		c.RegisterFlagCompletionFunc("output", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return cli.Formats(), cobra.ShellCompDirectiveNoFileComp
		})
	}
	listCmd.Flags().StringVar(&listGroup, "group", "", "Only show connections whose folder field equals this value")
}

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "List vault folders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(env *environment) error {
			folders := env.browser.ListFolders(cmd.Context())
			return writeFolders(folders, outputFormat)
		})
	},
}

func writeFolders(folders []vault.Folder, format string) error {
	if format != cli.FormatTable && format != "" {
		if folders == nil {
			folders = []vault.Folder{}
		}
		return cli.WriteValue(stdout, folders, format)
	}
	if len(folders) == 0 {
		fmt.Fprintln(stdout, "No folders found")
		return nil
	}
	for _, f := range folders {
		marker := " "
		if f.Name == cfg.Folder {
			marker = "*"
		}
		fmt.Fprintf(stdout, "%s %s\n", marker, f.Name)
	}
	return nil
}

// listCmd prints the connections of the configured vault folder.
var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List SSH connections",
	Long: `List the SSH connections stored in the configured vault folder, in vault
order. The number in the first column can be passed to connect.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(env *environment) error {
			store := catalog.NewVaultStore(env.loader)
			conf, err := store.LoadConfig(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load connections from folder %q: %w", env.loader.Folder(), err)
			}
			return cli.WriteConnections(stdout, cli.FilterFolder(conf.Connections, listGroup), outputFormat)
		})
	},
}

var showCmd = &cobra.Command{
	Use:               "show <label|n>",
	Short:             "Show one SSH connection",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeLabels,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(env *environment) error {
			conn, err := env.app.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return cli.WriteConnection(stdout, conn, outputFormat)
		})
	},
}
