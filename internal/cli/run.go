package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	aituberflow "github.com/oboroge0/AITuberFlow-sub001"
	"github.com/oboroge0/AITuberFlow-sub001/internal/presentation/tui"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/nodes"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/ports"
)

// RunOptions contains all the configuration for the run command.
type RunOptions struct {
	FromNode string
	Verbose  bool
	// Chat turns every stdin line into a chat message published on ChatTopic.
	Chat      bool
	ChatTopic string
	ChatUser  string
	// Duration stops the run after the given time; zero runs until interrupted.
	Duration time.Duration
	// Watch restarts the run whenever the graph document changes.
	Watch  bool
	Banner bool
}

// Run executes a graph in the foreground, printing its events to stdout
// until ctx is cancelled or Duration elapses.
func Run(ctx context.Context, app *App, ref string, opts RunOptions, stdin io.Reader, stdout io.Writer) error {
	if opts.Banner {
		tui.PrintBanner(stdout, aituberflow.Version)
	}
	unsubscribe := app.Service.Subscribe(tui.NewConsole(stdout, opts.Verbose))
	defer unsubscribe()

	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	if opts.Chat && stdin != nil {
		go pumpChat(ctx, app, stdin, opts)
	}

	if opts.Watch {
		return runWatch(ctx, app, ref, opts, stdout)
	}

	g, err := app.ResolveGraph(ctx, ref)
	if err != nil {
		return err
	}
	run, err := app.Service.Start(ctx, g, startOptions(opts)...)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return app.stopRun(run.ID(), stopReason(ctx))
	case <-run.Done():
		return nil
	}
}

func runWatch(ctx context.Context, app *App, ref string, opts RunOptions, stdout io.Writer) error {
	watcher, ok := app.Source.(ports.Watchable)
	if !ok || isGraphFile(ref) {
		return errors.New("--watch needs a graph ID from the loam backend")
	}
	changes, err := watcher.Watch(ctx)
	if err != nil {
		return err
	}

	for {
		runID, done := startWatched(ctx, app, ref, opts, stdout)
		for reload := false; !reload; {
			select {
			case <-ctx.Done():
				if runID == "" {
					return nil
				}
				return app.stopRun(runID, stopReason(ctx))
			case <-done:
				printSystemMessage(stdout, "Run stopped, waiting for changes...")
				runID, done = "", nil
			case id, ok := <-changes:
				if !ok {
					return nil
				}
				if id != ref {
					continue
				}
				printSystemMessage(stdout, "Change detected in '%s', reloading.", id)
				if runID != "" {
					if err := app.stopRun(runID, "reload"); err != nil {
						return err
					}
				}
				reload = true
			}
		}
	}
}

// startWatched starts one iteration of a watched run. A graph that fails to
// load or start is reported and left for the next change to fix.
func startWatched(ctx context.Context, app *App, ref string, opts RunOptions, stdout io.Writer) (string, <-chan struct{}) {
	g, err := app.ResolveGraph(ctx, ref)
	if err == nil {
		var run *aituberflow.Run
		if run, err = app.Service.Start(ctx, g, startOptions(opts)...); err == nil {
			return run.ID(), run.Done()
		}
	}
	app.Logger.Error("Run failed to start", "graph_id", ref, "err", err)
	printSystemMessage(stdout, "Run failed: %v", err)
	printSystemMessage(stdout, "Waiting for changes...")
	return "", nil
}

func startOptions(opts RunOptions) []aituberflow.StartOption {
	if opts.FromNode == "" {
		return nil
	}
	return []aituberflow.StartOption{aituberflow.FromNode(opts.FromNode)}
}

func stopReason(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "duration elapsed"
	}
	return "interrupted"
}

// stopRun stops a run on a fresh context: the caller's is usually done.
func (a *App) stopRun(runID, reason string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*a.Config.Executor.GraceTimeout.Std())
	defer cancel()
	if err := a.Service.Stop(ctx, runID, reason); err != nil {
		return err
	}
	return a.Service.Wait(ctx, runID)
}

func pumpChat(ctx context.Context, app *App, stdin io.Reader, opts RunOptions) {
	topic := opts.ChatTopic
	if topic == "" {
		topic = nodes.DefaultChatTopic
	}
	user := opts.ChatUser
	if user == "" {
		user = "console"
	}

	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if err := app.Service.Publish(topic, map[string]any{"user": user, "text": text}); err != nil {
			app.Logger.Warn("chat message not delivered", "topic", topic, "err", err)
		}
	}
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}
