package main

import (
	"context"
	"os"

	"github.com/oboroge0/AITuberFlow-sub001/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <graph-id | file>",
	Short: "Run a graph in the foreground",
	Long: `Starts a graph and prints its node statuses, logs and artifacts until interrupted.

The argument is either a graph file (.yaml, .yml or .json) or the ID of a graph
in the configured backend. With --chat every line typed on stdin is published
as a chat message, so chat listener nodes can be tried without a live stream.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		var opts cli.RunOptions
		opts.FromNode, _ = flags.GetString("from")
		opts.Verbose, _ = flags.GetBool("verbose")
		opts.Chat, _ = flags.GetBool("chat")
		opts.ChatTopic, _ = flags.GetString("chat-topic")
		opts.ChatUser, _ = flags.GetString("chat-user")
		opts.Duration, _ = flags.GetDuration("duration")
		opts.Watch, _ = flags.GetBool("watch")
		noBanner, _ := flags.GetBool("no-banner")
		opts.Banner = !noBanner

		return withApp(cmd, func(ctx context.Context, app *cli.App) error {
			return cli.Run(ctx, app, args[0], opts, os.Stdin, cmd.OutOrStdout())
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("from", "", "Only run this node and everything downstream of it")
	runCmd.Flags().BoolP("verbose", "v", false, "Show debug logs and running transitions")
	runCmd.Flags().Bool("chat", false, "Publish stdin lines as chat messages")
	runCmd.Flags().String("chat-topic", "", "Bus topic for --chat (default chat.message)")
	runCmd.Flags().String("chat-user", "console", "Viewer name for --chat messages")
	runCmd.Flags().Duration("duration", 0, "Stop the run after this long (0 runs until interrupted)")
	runCmd.Flags().BoolP("watch", "w", false, "Restart the run when the graph document changes (loam backend)")
	runCmd.Flags().Bool("no-banner", false, "Do not print the banner")
}
