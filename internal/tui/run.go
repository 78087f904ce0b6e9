package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"supatodo/internal/service"
	"supatodo/internal/session"
)

// Run observes the backend's session and runs the terminal shell until the
// user quits or ctx ends.
func Run(ctx context.Context, be *service.Backend) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	obs := session.Observe(ctx, be.Auth)
	defer obs.Close()

	p := tea.NewProgram(New(ctx, be, obs.Updates()), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}
