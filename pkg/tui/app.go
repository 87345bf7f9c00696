package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/killallgit/huddle/pkg/controllers"
)

// Run connects the session and runs the interactive interface until the
// user quits or ctx is cancelled.
func Run(ctx context.Context, session *controllers.Session) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	model := NewRootModel(gctx, session)
	defer model.close()

	program := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(gctx),
	)

	g.Go(func() error {
		return session.Run(gctx)
	})
	g.Go(func() error {
		// Quitting the program stops the channel
		defer cancel()
		if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("interface failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}
