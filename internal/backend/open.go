// Package backend selects the remote platform named in the configuration.
package backend

import (
	"context"
	"fmt"

	"supatodo/internal/backend/googletasks"
	"supatodo/internal/backend/supabase"
	"supatodo/internal/config"
	"supatodo/internal/service"
)

// Open creates the backend configured in cfg.
func Open(ctx context.Context, cfg *config.Config) (*service.Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case config.BackendSupabase:
		c, err := supabase.New(cfg)
		if err != nil {
			return nil, err
		}
		return &service.Backend{Auth: c, Store: c}, nil
	case config.BackendGoogleTasks:
		c, err := googletasks.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &service.Backend{Auth: c, Store: c}, nil
	default:
		return nil, fmt.Errorf("unknown backend: %s", cfg.Backend)
	}
}
