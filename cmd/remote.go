package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/audiograb/internal/formatter"
	"github.com/desertthunder/audiograb/internal/models"
	"github.com/desertthunder/audiograb/internal/services"
	"github.com/desertthunder/audiograb/internal/shared"
	"github.com/urfave/cli/v3"
)

// client returns the API client, pointed at --server when it is set.
func (r *Runner) client(cmd *cli.Command) *services.APIService {
	if base := cmd.String("server"); base != "" {
		return services.NewAPIService(base, r.httpClient)
	}
	return r.api
}

// RemoteSubmit queues every URL argument on a running server.
func (r *Runner) RemoteSubmit(ctx context.Context, cmd *cli.Command) error {
	urls := cmd.Args().Slice()
	if len(urls) == 0 {
		return fmt.Errorf("%w: at least one URL is required", shared.ErrMissingArgument)
	}

	api := r.client(cmd)
	for _, url := range urls {
		task, err := api.Submit(ctx, models.SubmitRequest{
			URL:     url,
			Format:  cmd.String("format"),
			Quality: cmd.String("quality"),
			Force:   cmd.Bool("force"),
		})
		if err != nil {
			return fmt.Errorf("failed to submit %s: %w", url, err)
		}
		r.writePlain("✓ Queued %s (%s)\n", task.URL, task.ID)
	}
	return nil
}

// RemoteList prints the tasks of a running server.
func (r *Runner) RemoteList(ctx context.Context, cmd *cli.Command) error {
	list, err := r.client(cmd).ListTasks(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(list, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Tasks (%d)", len(list)))
	for _, t := range list {
		r.writePlain("%-14s %5s  %s\n", t.State, formatter.FormatPercent(t.Progress), t.DisplayName())
		if t.Error != "" {
			r.writePlain("%-14s %5s  %s\n", "", "", t.Error)
		}
	}
	return nil
}

// RemoteCancel cancels one task on a running server.
func (r *Runner) RemoteCancel(ctx context.Context, cmd *cli.Command) error {
	url := cmd.StringArg("url")
	if url == "" {
		return fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}
	if err := r.client(cmd).Cancel(ctx, url); err != nil {
		return err
	}
	return r.writePlain("✓ Cancelled %s\n", url)
}
