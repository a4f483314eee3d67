package main

import (
	"context"

	"github.com/oboroge0/AITuberFlow-sub001/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket API",
	Long: `Serves the run API, the per-run WebSocket event stream and /metrics.

When redis is configured, chat messages published on <prefix><topic> channels
are forwarded to every running graph, and run events are published on
<prefix>events:<graph id>.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		autostart, _ := cmd.Flags().GetStringSlice("start")
		return withApp(cmd, func(ctx context.Context, app *cli.App) error {
			return cli.Serve(ctx, app, cli.ServeOptions{Addr: addr, Autostart: autostart})
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Listen address (default from config, :8001)")
	serveCmd.Flags().StringSlice("start", nil, "Graph IDs to start once the server is up")
}
