package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/oboroge0/AITuberFlow-sub001/internal/cli"
	"github.com/oboroge0/AITuberFlow-sub001/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "aituberflow",
	Short: "AITuberFlow runs node graphs that drive a virtual streamer",
	Long: `AITuberFlow executes workflow graphs of chat listeners, LLM calls, subtitles,
avatar control and timers, routing values between nodes over typed ports.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// SIGINT and SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Config file (default ./"+config.DefaultPath+" if present)")
	flags.String("dir", "", "Directory containing the graphs")
	flags.String("backend", "", "Graph backend: file, loam, memory or redis")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("log-format", "", "Log format: text or json")
	flags.String("redis", "", "Redis address for the run lock, chat bridge and redis backend")
}

// loadConfig reads the config file and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	overrides := []struct {
		flag string
		dst  *string
	}{
		{"dir", &cfg.Graphs.Dir},
		{"backend", &cfg.Graphs.Backend},
		{"log-level", &cfg.Log.Level},
		{"log-format", &cfg.Log.Format},
		{"redis", &cfg.Redis.Addr},
	}
	for _, o := range overrides {
		if cmd.Flags().Changed(o.flag) {
			*o.dst, _ = cmd.Flags().GetString(o.flag)
		}
	}
	return cfg, cfg.Validate()
}

// withApp builds the App for a command and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *cli.App) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	app, err := cli.NewApp(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*cfg.Executor.GraceTimeout.Std())
		defer cancel()
		if err := app.Close(closeCtx); err != nil {
			app.Logger.Warn("Shutdown incomplete", "err", err)
		}
	}()
	return fn(ctx, app)
}
