package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/muesli/termenv"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
	"golang.org/x/term"
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// NewOutput returns a termenv output for w that only emits colours on a terminal.
func NewOutput(w io.Writer) *termenv.Output {
	if !IsTerminal(w) {
		return termenv.NewOutput(w, termenv.WithProfile(termenv.Ascii))
	}
	return termenv.NewOutput(w)
}

var statusColors = map[domain.Status]string{
	domain.StatusRunning:   "#facc15",
	domain.StatusSucceeded: "#4ade80",
	domain.StatusFailed:    "#f87171",
	domain.StatusStopped:   "#94a3b8",
}

var levelColors = map[domain.Level]string{
	domain.LevelDebug: "#94a3b8",
	domain.LevelWarn:  "#fb923c",
	domain.LevelError: "#f87171",
}

// Console is an observer that prints run activity as human-readable lines.
// Debug logs and running transitions are only shown when verbose.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	out     *termenv.Output
	verbose bool
}

// NewConsole creates a console sink writing to w.
func NewConsole(w io.Writer, verbose bool) *Console {
	return &Console{w: w, out: NewOutput(w), verbose: verbose}
}

func (c *Console) OnEvent(_ context.Context, ev domain.Event) {
	line := c.format(ev)
	if line == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, line)
}

func (c *Console) format(ev domain.Event) string {
	switch ev.Type {
	case domain.EventExecutionStarted:
		return c.out.String(fmt.Sprintf("▶ run %s started (graph %s)", ev.RunID, ev.GraphID)).Bold().String()

	case domain.EventExecutionStopped:
		return c.out.String(fmt.Sprintf("■ run %s stopped: %s", ev.RunID, ev.Reason)).Bold().String()

	case domain.EventNodeStatus:
		if ev.Status == domain.StatusRunning && !c.verbose {
			return ""
		}
		tag := c.out.String(fmt.Sprintf("[%s]", ev.Status))
		if color, ok := statusColors[ev.Status]; ok {
			tag = tag.Foreground(c.out.Color(color))
		}
		line := fmt.Sprintf("  %s %s", tag, ev.NodeID)
		if ev.Duration > 0 && ev.Status.Terminal() {
			line += c.out.String(fmt.Sprintf(" %.1fms", ev.Duration)).Faint().String()
		}
		if ev.Message != "" {
			line += ": " + ev.Message
		}
		return line

	case domain.EventLog:
		if ev.Level == domain.LevelDebug && !c.verbose {
			return ""
		}
		msg := c.out.String(ev.Message)
		if color, ok := levelColors[ev.Level]; ok {
			msg = msg.Foreground(c.out.Color(color))
		}
		source := ev.NodeID
		if source == "" {
			source = "run"
		}
		return fmt.Sprintf("  %s %s", c.out.String(source+":").Faint(), msg)

	case domain.EventArtifact:
		return fmt.Sprintf("  ♪ %s from %s: %s", ev.Artifact, ev.NodeID, preview(ev.Data))
	}
	return ""
}

func preview(v any) string {
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case nil:
		return ""
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			s = fmt.Sprint(val)
		} else {
			s = string(raw)
		}
	}
	const limit = 120
	if r := []rune(s); len(r) > limit {
		return string(r[:limit]) + "…"
	}
	return s
}
