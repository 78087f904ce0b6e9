package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"supatodo/internal/config"
	"supatodo/internal/exitcode"
	"supatodo/internal/service"
	"supatodo/internal/web"
)

func init() {
	Register(&ServeCmd{})
}

// ServeCmd implements the serve command.
type ServeCmd struct {
	listen string

	// run replaces web.Run in tests.
	run func(ctx context.Context, be *service.Backend, addr string) error
}

// SetRunner replaces the web server (for testing).
func (c *ServeCmd) SetRunner(fn func(ctx context.Context, be *service.Backend, addr string) error) {
	c.run = fn
}

// SetListen sets the --listen flag (for testing).
func (c *ServeCmd) SetListen(addr string) {
	c.listen = addr
}

func (c *ServeCmd) Name() string       { return "serve" }
func (c *ServeCmd) Aliases() []string  { return nil }
func (c *ServeCmd) Synopsis() string   { return "Serve the browser UI" }
func (c *ServeCmd) Usage() string      { return "supatodo serve [--listen <addr>]" }
func (c *ServeCmd) NeedsBackend() bool { return true }
func (c *ServeCmd) NeedsAuth() bool    { return false }

func (c *ServeCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.listen, "listen", "", "")
}

func (c *ServeCmd) Run(ctx context.Context, cfg *config.Config, be *service.Backend, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	addr := cfg.Listen
	if c.listen != "" {
		addr = c.listen
	}
	if !cfg.Quiet {
		fmt.Fprintf(out, "serving on http://%s\n", addr)
	}

	run := c.run
	if run == nil {
		run = web.Run
	}
	if err := run(ctx, be, addr); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	return exitcode.Success
}
