// Package process runs allow-listed external programs for command nodes,
// typically text-to-speech engines or avatar bridges that ship as CLIs.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// ArgPrefix prefixes the environment variables carrying call arguments.
const ArgPrefix = "AITUBERFLOW_ARG_"

// ErrNotRegistered is returned for a command missing from the allow-list.
var ErrNotRegistered = errors.New("command not registered")

// Runner executes local processes registered by name. Only registered
// commands run; callers never choose the executable or its flags.
type Runner struct {
	registry map[string]CommandConfig
	baseDir  string
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithCommands populates the allow-list from a loaded config.
func WithCommands(commands map[string]CommandConfig) RunnerOption {
	return func(r *Runner) {
		for name, c := range commands {
			c.Name = name
			r.registry[name] = c
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// NewRunner creates a new Process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]CommandConfig),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = CommandConfig{
		Name:    name,
		Command: command,
		Args:    args,
	}
}

// Commands lists the registered names in order.
func (r *Runner) Commands() []string {
	names := make([]string, 0, len(r.registry))
	for name := range r.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is registered.
func (r *Runner) Has(name string) bool {
	_, ok := r.registry[name]
	return ok
}

// Run executes the named command with input on stdin. Each var becomes an
// AITUBERFLOW_ARG_<KEY> environment variable; values are never passed as
// flags. Stdout is returned decoded when it is a JSON object or array, as
// trimmed text otherwise.
func (r *Runner) Run(ctx context.Context, name, input string, vars map[string]any) (any, error) {
	proc, ok := r.registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}

	cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
	cmd.Dir = r.baseDir
	cmd.WaitDelay = time.Second
	cmd.Env = append(cmd.Environ(), environment(proc.Environment, vars)...)
	cmd.Stdin = strings.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("command %s failed: %w", name, err)
		}
		return nil, fmt.Errorf("command %s failed: %w: %s", name, err, msg)
	}
	return decodeOutput(stdout.String()), nil
}

func environment(fixed map[string]string, vars map[string]any) []string {
	env := make([]string, 0, len(fixed)+len(vars))
	for k, v := range fixed {
		env = append(env, k+"="+v)
	}
	for k, v := range vars {
		env = append(env, ArgPrefix+envKey(k)+"="+envValue(v))
	}
	sort.Strings(env)
	return env
}

// envKey upper-cases k and replaces anything outside [A-Z0-9_].
func envKey(k string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, k)
}

// envValue keeps primitives as text and encodes records and lists as JSON.
func envValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string, int, int64, float64, bool:
		return fmt.Sprint(val)
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(raw)
	}
}

func decodeOutput(out string) any {
	trimmed := strings.TrimSpace(out)
	if (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")) {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}
	return trimmed
}
