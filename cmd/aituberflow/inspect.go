package main

import (
	"context"

	"github.com/oboroge0/AITuberFlow-sub001/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <graph-id | file>",
	Short: "Check a graph for consistency",
	Long:  `Reports unknown node types and ports, type mismatches, cycles, invalid settings and unconnected inputs.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *cli.App) error {
			return cli.Validate(ctx, app, args[0], cmd.OutOrStdout())
		})
	},
}

var graphCmd = &cobra.Command{
	Use:   "graph <graph-id | file>",
	Short: "Export the graph as a Mermaid flowchart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *cli.App) error {
			return cli.Mermaid(ctx, app, args[0], cmd.OutOrStdout())
		})
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe <graph-id | file>",
	Short: "Summarise a graph: character, nodes and connections",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *cli.App) error {
			return cli.Describe(ctx, app, args[0], cmd.OutOrStdout())
		})
	},
}

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List the available node types and their ports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *cli.App) error {
			return cli.NodeTypes(app, cmd.OutOrStdout())
		})
	},
}

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write the example graphs into a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dir := cfg.Graphs.Dir
		if len(args) > 0 {
			dir = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")
		return cli.Scaffold(cmd.Context(), dir, cfg.Graphs.Backend, force, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(validateCmd, graphCmd, describeCmd, nodesCmd, initCmd)

	initCmd.Flags().Bool("force", false, "Overwrite graphs that already exist")
}
