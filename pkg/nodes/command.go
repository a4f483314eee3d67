package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/ports"
	"github.com/oboroge0/AITuberFlow-sub001/pkg/schema"
)

// CommandRunner runs an allow-listed external program by name.
type CommandRunner interface {
	Run(ctx context.Context, name, input string, vars map[string]any) (any, error)
	Has(name string) bool
}

type commandSettings struct {
	Command string         `mapstructure:"command"`
	Vars    map[string]any `mapstructure:"vars"`
	Timeout time.Duration  `mapstructure:"timeout"`
}

// Command pipes its input into a registered external program and emits the
// program's output.
type Command struct {
	base
	runner CommandRunner
	cfg    commandSettings
}

func (c *Command) Configure(settings map[string]any) error {
	c.cfg = commandSettings{Timeout: 30 * time.Second}
	if err := schema.Decode(settings, &c.cfg); err != nil {
		return err
	}
	if c.cfg.Command == "" {
		return fmt.Errorf("command must not be empty")
	}
	return nil
}

func (c *Command) Setup(_ context.Context, rt ports.Runtime) error {
	c.rt = rt
	if c.runner == nil {
		return fmt.Errorf("no commands are configured")
	}
	if !c.runner.Has(c.cfg.Command) {
		return fmt.Errorf("command %q is not registered", c.cfg.Command)
	}
	return nil
}

func (c *Command) Execute(ctx context.Context, in ports.Inputs) (ports.Outputs, error) {
	vars := make(map[string]any, len(c.cfg.Vars)+2)
	for k, v := range c.cfg.Vars {
		vars[k] = v
	}
	vars["run_id"] = c.rt.RunID()
	vars["node_id"] = c.rt.NodeID()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	out, err := c.runner.Run(ctx, c.cfg.Command, stringify(in["input"]), vars)
	if err != nil {
		return nil, err
	}
	return ports.Outputs{"output": out}, nil
}
