package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"supatodo/internal/config"
	"supatodo/internal/exitcode"
	"supatodo/internal/service"
	"supatodo/internal/tui"
)

func init() {
	Register(&UICmd{})
}

// UICmd implements the ui command.
type UICmd struct {
	// run replaces tui.Run in tests.
	run func(ctx context.Context, be *service.Backend) error
}

// SetRunner replaces the terminal UI (for testing).
func (c *UICmd) SetRunner(fn func(ctx context.Context, be *service.Backend) error) {
	c.run = fn
}

func (c *UICmd) Name() string       { return "ui" }
func (c *UICmd) Aliases() []string  { return nil }
func (c *UICmd) Synopsis() string   { return "Open the terminal UI" }
func (c *UICmd) Usage() string      { return "supatodo ui" }
func (c *UICmd) NeedsBackend() bool { return true }
func (c *UICmd) NeedsAuth() bool    { return false }

func (c *UICmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *UICmd) Run(ctx context.Context, cfg *config.Config, be *service.Backend, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	// The screen belongs to the UI; logs go to a file instead.
	if err := cfg.EnsureDir(); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	f, err := os.OpenFile(cfg.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(errOut, "error: failed to open log: %v\n", err)
		return exitcode.UserError
	}
	defer f.Close()

	prev := log.StandardLogger().Out
	log.SetOutput(f)
	defer log.SetOutput(prev)

	run := c.run
	if run == nil {
		run = tui.Run
	}
	if err := run(ctx, be); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	return exitcode.Success
}
