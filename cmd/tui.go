package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ytpa/internal/shared"
	"github.com/desertthunder/ytpa/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive subscription dashboard.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/ytpa-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	var adder ui.CycleRunner
	if err := r.requireAdder(); err == nil {
		adder = r.adder
	} else {
		r.logger.Warn("polling disabled in the dashboard", "error", err)
	}

	model := ui.NewModel(ctx, r.subs, r.runs, adder)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
