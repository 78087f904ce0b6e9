package commands

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"supatodo/internal/config"
	"supatodo/internal/exitcode"
	"supatodo/internal/service"
	"supatodo/internal/session"
)

// envPassword supplies the password for non-interactive email sign-in.
const envPassword = "SUPATODO_PASSWORD"

func init() {
	Register(&LoginCmd{})
}

// LoginCmd implements the login command.
type LoginCmd struct {
	email    string
	provider string

	// Stdin is read for the password when SUPATODO_PASSWORD is unset.
	// Defaults to os.Stdin.
	Stdin io.Reader
}

// SetEmail sets the --email flag (for testing).
func (c *LoginCmd) SetEmail(email string) {
	c.email = email
}

// SetProvider sets the --provider flag (for testing).
func (c *LoginCmd) SetProvider(provider string) {
	c.provider = provider
}

func (c *LoginCmd) Name() string       { return "login" }
func (c *LoginCmd) Aliases() []string  { return nil }
func (c *LoginCmd) Synopsis() string   { return "Sign in" }
func (c *LoginCmd) Usage() string      { return "supatodo login [--email <addr> | --provider <name>]" }
func (c *LoginCmd) NeedsBackend() bool { return true }
func (c *LoginCmd) NeedsAuth() bool    { return false }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.email, "email", "", "")
	fs.StringVar(&c.provider, "provider", "", "")
}

func (c *LoginCmd) Run(ctx context.Context, cfg *config.Config, be *service.Backend, args []string, out, errOut io.Writer) int {
	if c.email != "" && c.provider != "" {
		fmt.Fprintln(errOut, "error: cannot use both --email and --provider")
		return exitcode.UserError
	}

	creds := service.Credentials{Email: strings.TrimSpace(c.email), Provider: c.provider}
	if cfg.Backend == config.BackendGoogleTasks {
		if creds.Email != "" {
			fmt.Fprintln(errOut, "error: the googletasks backend signs in with Google only")
			return exitcode.UserError
		}
		if !cfg.HasOAuthClient() {
			printOAuthClientHelp(cfg, errOut)
			return exitcode.AuthError
		}
		creds.Provider = "google"
	}
	if creds.Email == "" && creds.Provider == "" {
		fmt.Fprintln(errOut, "error: --email or --provider required")
		return exitcode.UserError
	}

	// Check if already logged in
	current, err := be.Auth.CurrentSession(ctx)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.AuthError
	}
	if _, ok := session.UserOf(current); ok {
		if !cfg.Quiet {
			fmt.Fprintln(out, "already logged in")
		}
		return exitcode.Success
	}

	if creds.Email != "" {
		creds.Password, err = c.readPassword(errOut)
		if err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.UserError
		}
	}

	// Ensure config directory exists
	if err := cfg.EnsureDir(); err != nil {
		fmt.Fprintf(errOut, "error: failed to create config directory: %v\n", err)
		return exitcode.AuthError
	}

	// Browser flows print their URL to stderr.
	if err := be.Auth.SignIn(ctx, creds, errOut); err != nil {
		fmt.Fprintf(errOut, "error: %s\n", service.Message(err))
		return exitcode.AuthError
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}

// readPassword takes the password from the environment or the first line of
// stdin.
func (c *LoginCmd) readPassword(errOut io.Writer) (string, error) {
	if p := os.Getenv(envPassword); p != "" {
		return p, nil
	}

	in := c.Stdin
	if in == nil {
		in = os.Stdin
	}
	fmt.Fprint(errOut, "Password: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password required")
	}
	return password, nil
}

func printOAuthClientHelp(cfg *config.Config, errOut io.Writer) {
	fmt.Fprintf(errOut, "error: oauth_client.json not found in %s\n\n", cfg.Dir)
	fmt.Fprintln(errOut, "To sign in with Google Tasks, you need OAuth credentials:")
	fmt.Fprintln(errOut, "")
	fmt.Fprintln(errOut, "1. Go to https://console.cloud.google.com/apis/credentials")
	fmt.Fprintln(errOut, "2. Create a project (or select an existing one)")
	fmt.Fprintln(errOut, "3. Enable the Google Tasks API:")
	fmt.Fprintln(errOut, "   https://console.cloud.google.com/apis/library/tasks.googleapis.com")
	fmt.Fprintln(errOut, "4. Create OAuth 2.0 credentials:")
	fmt.Fprintln(errOut, "   - Click 'Create Credentials' > 'OAuth client ID'")
	fmt.Fprintln(errOut, "   - Choose 'Desktop app' as application type")
	fmt.Fprintln(errOut, "   - Download the JSON file")
	fmt.Fprintln(errOut, "5. Save it as:")
	fmt.Fprintf(errOut, "   %s/oauth_client.json\n", cfg.Dir)
	fmt.Fprintln(errOut, "")
	fmt.Fprintln(errOut, "Then run 'supatodo login' again.")
}
