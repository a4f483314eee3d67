package main

import (
	"context"

	"github.com/oboroge0/AITuberFlow-sub001/internal/cli"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes run control as MCP tools, so AI assistants can start graphs,
inject chat and inspect node statuses.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts cli.MCPOptions
		opts.Transport, _ = cmd.Flags().GetString("transport")
		opts.Addr, _ = cmd.Flags().GetString("addr")
		opts.BaseURL, _ = cmd.Flags().GetString("base-url")
		return withApp(cmd, func(ctx context.Context, app *cli.App) error {
			return cli.ServeMCP(ctx, app, opts)
		})
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("addr", ":8080", "Listen address (only for SSE)")
	mcpCmd.Flags().String("base-url", "", "Public base URL of the SSE server (default http://localhost<addr>)")
}
