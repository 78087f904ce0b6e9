package commands

import (
	"context"
	"flag"
	"io"

	"supatodo/internal/config"
	"supatodo/internal/service"
	"supatodo/internal/tasklist"
)

func init() {
	Register(&ToggleCmd{})
}

// ToggleCmd implements the toggle command. Each referenced task flips its
// completed flag.
type ToggleCmd struct{}

func (c *ToggleCmd) Name() string       { return "toggle" }
func (c *ToggleCmd) Aliases() []string  { return []string{"done"} }
func (c *ToggleCmd) Synopsis() string   { return "Flip a task between open and completed" }
func (c *ToggleCmd) Usage() string      { return "supatodo toggle <ref...>" }
func (c *ToggleCmd) NeedsBackend() bool { return true }
func (c *ToggleCmd) NeedsAuth() bool    { return true }

func (c *ToggleCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ToggleCmd) Run(ctx context.Context, cfg *config.Config, be *service.Backend, args []string, out, errOut io.Writer) int {
	return runOnRefs(ctx, cfg.Quiet, be, args, out, errOut,
		func(ctx context.Context, sync *tasklist.Synchronizer, task service.Task) error {
			return sync.Toggle(ctx, task.ID, task.Completed)
		})
}
