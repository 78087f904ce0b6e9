package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"supatodo/internal/config"
	"supatodo/internal/exitcode"
	"supatodo/internal/service"
)

func init() {
	Register(&AddCmd{})
	Register(&CreateCmd{})
}

// AddCmd implements the add command.
type AddCmd struct{}

func (c *AddCmd) Name() string       { return "add" }
func (c *AddCmd) Aliases() []string  { return nil }
func (c *AddCmd) Synopsis() string   { return "Create a task" }
func (c *AddCmd) Usage() string      { return "supatodo add <title...>" }
func (c *AddCmd) NeedsBackend() bool { return true }
func (c *AddCmd) NeedsAuth() bool    { return true }

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *AddCmd) Run(ctx context.Context, cfg *config.Config, be *service.Backend, args []string, out, errOut io.Writer) int {
	return runAdd(ctx, cfg, be, args, out, errOut)
}

// CreateCmd is an alias for AddCmd.
type CreateCmd struct{}

func (c *CreateCmd) Name() string       { return "create" }
func (c *CreateCmd) Aliases() []string  { return nil }
func (c *CreateCmd) Synopsis() string   { return "Create a task (same as add)" }
func (c *CreateCmd) Usage() string      { return "supatodo create <title...>" }
func (c *CreateCmd) NeedsBackend() bool { return true }
func (c *CreateCmd) NeedsAuth() bool    { return true }

func (c *CreateCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *CreateCmd) Run(ctx context.Context, cfg *config.Config, be *service.Backend, args []string, out, errOut io.Writer) int {
	return runAdd(ctx, cfg, be, args, out, errOut)
}

// runAdd is the shared implementation for add and create commands.
// The title is sent as typed; only the emptiness check trims it.
func runAdd(ctx context.Context, cfg *config.Config, be *service.Backend, args []string, out, errOut io.Writer) int {
	// Join args to form title
	title := strings.Join(args, " ")
	if strings.TrimSpace(title) == "" {
		fmt.Fprintln(errOut, "error: title required")
		return exitcode.UserError
	}

	sync, code := openTaskList(ctx, be, errOut)
	if sync == nil {
		return code
	}
	if _, err := sync.Add(ctx, title); err != nil {
		return exitcode.ForError(err)
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
