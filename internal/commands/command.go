// Package commands implements the supatodo subcommands on top of the
// session, tasklist and shell packages.
package commands

import (
	"context"
	"flag"
	"io"

	"supatodo/internal/config"
	"supatodo/internal/service"
)

// Command is one subcommand. Commands register themselves with
// DefaultRegistry from init.
type Command interface {
	Name() string
	Aliases() []string

	// Synopsis and Usage feed the help listing.
	Synopsis() string
	Usage() string

	// NeedsBackend reports whether Run gets a Backend. When false, be is nil.
	NeedsBackend() bool

	// NeedsAuth makes the dispatcher refuse to run the command without a
	// signed-in session. Implies NeedsBackend.
	NeedsAuth() bool

	RegisterFlags(fs *flag.FlagSet)

	// Run receives the positional arguments left after flag parsing and
	// returns the process exit status.
	Run(ctx context.Context, cfg *config.Config, be *service.Backend, args []string, out, errOut io.Writer) int
}
