// Package config handles the configuration directory, config.yaml and
// stored credential paths.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// AppName is the application directory name.
	AppName = "supatodo"

	// ConfigFile holds backend settings.
	ConfigFile = "config.yaml"

	// SessionFile is the stored hosted-auth session (supabase backend).
	SessionFile = "session.json"

	// OAuthClientFile is the OAuth client credentials filename (googletasks backend).
	OAuthClientFile = "oauth_client.json"

	// TokenFile is the stored OAuth token filename (googletasks backend).
	TokenFile = "token.json"

	// LogFile receives debug logs while the terminal UI owns the screen.
	LogFile = "debug.log"
)

// Backend names.
const (
	BackendSupabase    = "supabase"
	BackendGoogleTasks = "googletasks"
)

// DefaultListen is the address the browser shell binds to.
const DefaultListen = "127.0.0.1:8787"

// Environment overrides.
const (
	envBackend = "SUPATODO_BACKEND"
	envURL     = "SUPATODO_URL"
	envAnonKey = "SUPATODO_ANON_KEY"
	envListen  = "SUPATODO_LISTEN"
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string `yaml:"-"`

	// Backend selects the remote platform: "supabase" or "googletasks".
	Backend string `yaml:"backend"`

	// URL is the project URL of the hosted platform (supabase only).
	URL string `yaml:"url"`

	// AnonKey is the public API key sent with every request (supabase only).
	AnonKey string `yaml:"anon_key"`

	// Listen is the browser shell address.
	Listen string `yaml:"listen"`

	// Debug enables debug logging.
	Debug bool `yaml:"-"`

	// Quiet suppresses informational output.
	Quiet bool `yaml:"-"`
}

// New creates a Config for the default or specified config directory.
// If configDir is empty, uses XDG_CONFIG_HOME/supatodo or $HOME/.config/supatodo.
// config.yaml is optional; environment variables override its values.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	cfg := &Config{Dir: dir}

	data, err := os.ReadFile(cfg.ConfigPath())
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", ConfigFile, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read %s: %w", ConfigFile, err)
	}

	cfg.applyEnv()

	if cfg.Backend == "" {
		cfg.Backend = BackendSupabase
	}
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(envBackend); v != "" {
		c.Backend = v
	}
	if v := os.Getenv(envURL); v != "" {
		c.URL = v
	}
	if v := os.Getenv(envAnonKey); v != "" {
		c.AnonKey = v
	}
	if v := os.Getenv(envListen); v != "" {
		c.Listen = v
	}
}

// Validate checks that the selected backend has what it needs to connect.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSupabase:
		if c.URL == "" {
			return fmt.Errorf("url not configured (set %s or url in %s)", envURL, c.ConfigPath())
		}
		if c.AnonKey == "" {
			return fmt.Errorf("anon key not configured (set %s or anon_key in %s)", envAnonKey, c.ConfigPath())
		}
		return nil
	case BackendGoogleTasks:
		return nil
	default:
		return fmt.Errorf("unknown backend: %s", c.Backend)
	}
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// ConfigPath returns the path to config.yaml.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.Dir, ConfigFile)
}

// SessionPath returns the path to the stored hosted-auth session.
func (c *Config) SessionPath() string {
	return filepath.Join(c.Dir, SessionFile)
}

// OAuthClientPath returns the path to the OAuth client credentials file.
func (c *Config) OAuthClientPath() string {
	return filepath.Join(c.Dir, OAuthClientFile)
}

// TokenPath returns the path to the stored OAuth token file.
func (c *Config) TokenPath() string {
	return filepath.Join(c.Dir, TokenFile)
}

// LogPath returns the path of the TUI debug log.
func (c *Config) LogPath() string {
	return filepath.Join(c.Dir, LogFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasOAuthClient checks if the OAuth client credentials file exists.
func (c *Config) HasOAuthClient() bool {
	_, err := os.Stat(c.OAuthClientPath())
	return err == nil
}
