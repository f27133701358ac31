package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/audiograb/internal/shared"
	"github.com/desertthunder/audiograb/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Retry reruns a URL from history. Playlists are scoped to the items that are not on disk;
// with --missing a single file or a complete playlist is refused.
func (r *Runner) Retry(ctx context.Context, cmd *cli.Command) error {
	url := cmd.StringArg("url")
	if url == "" {
		return fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}
	missing := cmd.Bool("missing")

	repo, closeDB, err := r.openHistory()
	if err != nil {
		return err
	}
	defer closeDB()

	rec, err := repo.GetByURL(url)
	if err != nil {
		return fmt.Errorf("failed to find %s in history: %w", url, err)
	}
	if missing && !rec.IsPlaylist {
		return fmt.Errorf("%w: %s", shared.ErrNotPlaylist, url)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := r.startSession()
	sched := r.newScheduler(tasks.ConfigFrom(r.config), repo, sess.updates, sess.logger)

	t, err := sched.Adopt(rec.ToTask(shared.GenerateID()))
	if err != nil {
		sess.run(ctx, sched)
		return err
	}

	retry := sched.Retry
	if missing {
		retry = sched.RetryMissing
	}
	if err := retry(url); err != nil {
		sess.run(ctx, sched)
		if errors.Is(err, shared.ErrNothingMissing) {
			r.writePlain("✓ Every item of %s is already on disk\n", t.DisplayName())
			return nil
		}
		return err
	}
	sess.bars.track(t)

	interrupted := sess.run(ctx, sched)
	failed := r.summarize(sched.List(), nil)
	switch {
	case interrupted:
		return shared.ErrCancelled
	case failed > 0:
		return fmt.Errorf("retry of %s failed", url)
	}
	return nil
}
