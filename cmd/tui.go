package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/audiograb/internal/shared"
	"github.com/desertthunder/audiograb/internal/tasks"
	"github.com/desertthunder/audiograb/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive download monitor.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	if r.logFile == nil {
		fileLogger, f, err := shared.NewFileLogger("./tmp/audiograb-tui.log")
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		fileLogger.SetLevel(r.logger.GetLevel())
		r.SetLogger(fileLogger)
		r.logFile = f
	}

	repo, closeDB, err := r.openHistory()
	if err != nil {
		return err
	}
	defer closeDB()

	updates := make(chan tasks.ProgressUpdate, 256)
	sched := r.newScheduler(tasks.ConfigFrom(r.config), repo, updates, r.logger)
	defer func() {
		if err := sched.Shutdown(context.Background()); err != nil {
			r.logger.Warn("shutdown incomplete", "err", err)
		}
	}()

	model := ui.NewModel(sched, updates, tasks.SubmitOptions{
		Format:    cmd.String("format"),
		OutputDir: shared.ExpandHome(cmd.String("out")),
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
