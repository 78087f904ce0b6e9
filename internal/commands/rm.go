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
	Register(&RmCmd{})
}

// RmCmd implements the rm command.
type RmCmd struct{}

func (c *RmCmd) Name() string       { return "rm" }
func (c *RmCmd) Aliases() []string  { return []string{"delete"} }
func (c *RmCmd) Synopsis() string   { return "Delete tasks" }
func (c *RmCmd) Usage() string      { return "supatodo rm <ref...>" }
func (c *RmCmd) NeedsBackend() bool { return true }
func (c *RmCmd) NeedsAuth() bool    { return true }

func (c *RmCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *RmCmd) Run(ctx context.Context, cfg *config.Config, be *service.Backend, args []string, out, errOut io.Writer) int {
	return runOnRefs(ctx, cfg.Quiet, be, args, out, errOut,
		func(ctx context.Context, sync *tasklist.Synchronizer, task service.Task) error {
			return sync.Delete(ctx, task.ID)
		})
}
