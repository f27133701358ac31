package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/audiograb/internal/formatter"
	"github.com/desertthunder/audiograb/internal/models"
	"github.com/desertthunder/audiograb/internal/shared"
	"github.com/desertthunder/audiograb/internal/tasks"
	"github.com/fatih/color"
	"github.com/urfave/cli/v3"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// barTotal is the resolution of a task bar. Task progress is a fraction.
const barTotal = 1000

// Get submits every URL argument and renders a progress bar per task until all of them finish.
// Ctrl+C cancels everything.
func (r *Runner) Get(ctx context.Context, cmd *cli.Command) error {
	urls := cmd.Args().Slice()
	if len(urls) == 0 {
		return fmt.Errorf("%w: at least one URL is required", shared.ErrMissingArgument)
	}

	cfg := tasks.ConfigFrom(r.config)
	if cmd.IsSet("concurrency") {
		n := cmd.Int("concurrency")
		if n < 1 {
			return fmt.Errorf("%w: --concurrency must be at least 1", shared.ErrInvalidFlag)
		}
		cfg.MaxConcurrent = n
	}
	if cmd.IsSet("separate-folders") {
		cfg.SeparatePlaylistFolders = cmd.Bool("separate-folders")
	}
	opts := tasks.SubmitOptions{
		Format:    cmd.String("format"),
		Quality:   cmd.String("quality"),
		OutputDir: shared.ExpandHome(cmd.String("out")),
		Force:     cmd.Bool("force"),
	}

	var history tasks.HistoryStore
	if !cmd.Bool("no-history") {
		repo, closeDB, err := r.openHistory()
		if err != nil {
			return err
		}
		defer closeDB()
		history = repo
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := r.startSession()
	sched := r.newScheduler(cfg, history, sess.updates, sess.logger)

	var skipped []string
	rejected := 0
	for _, url := range urls {
		t, err := sched.Submit(url, opts)
		switch {
		case errors.Is(err, shared.ErrAlreadyRecorded):
			skipped = append(skipped, url)
		case err != nil:
			sess.logger.Error("not queued", "url", url, "err", err)
			rejected++
		default:
			sess.bars.track(t)
		}
	}

	interrupted := sess.run(ctx, sched)
	failed := r.summarize(sched.List(), skipped) + rejected
	switch {
	case interrupted:
		return shared.ErrCancelled
	case failed > 0:
		return fmt.Errorf("%d of %d downloads failed", failed, len(urls))
	}
	return nil
}

// session renders scheduler updates as progress bars. Log lines are printed above the bars.
type session struct {
	pbp     *mpb.Progress
	bars    *barSet
	logger  *log.Logger
	updates chan tasks.ProgressUpdate
	quit    chan struct{}
	drained chan struct{}
}

func (r *Runner) startSession() *session {
	pbp := mpb.New(mpb.WithAutoRefresh(), mpb.WithOutput(color.Output))
	logger := r.logger
	if r.logFile == nil {
		logger = shared.NewLogger(pbp)
		logger.SetLevel(r.logger.GetLevel())
	}

	s := &session{
		pbp:     pbp,
		bars:    newBarSet(pbp),
		logger:  logger,
		updates: make(chan tasks.ProgressUpdate, 256),
		quit:    make(chan struct{}),
		drained: make(chan struct{}),
	}
	go s.listen()
	return s
}

func (s *session) listen() {
	defer close(s.drained)
	for {
		select {
		case u := <-s.updates:
			s.bars.apply(u)
		case <-s.quit:
			return
		}
	}
}

// run waits for every task to finish, or for ctx to be cancelled, then shuts the
// scheduler down and the bars with it. It reports whether ctx ended the wait.
func (s *session) run(ctx context.Context, sched *tasks.Scheduler) bool {
	interrupted := false
	if err := sched.Wait(ctx); err != nil {
		interrupted = true
		s.logger.Warn("cancelling downloads")
	}
	if err := sched.Shutdown(context.Background()); err != nil {
		s.logger.Warn("shutdown incomplete", "err", err)
	}

	close(s.quit)
	<-s.drained
	s.bars.finish()
	s.pbp.Wait()
	return interrupted
}

// summarize prints one colored line per task and returns how many ended in error.
func (r *Runner) summarize(list []*models.Task, skipped []string) int {
	ok := color.New(color.FgGreen, color.Bold)
	bad := color.New(color.FgRed, color.Bold)
	warn := color.New(color.FgYellow)
	dim := color.New(color.FgHiBlack)

	failed := 0
	r.writePlain("\n")
	for _, t := range list {
		name := t.DisplayName()
		switch t.State {
		case models.StateCompleted:
			ok.Fprint(r.output, "✓ ")
			r.writePlain("%s", name)
			if t.IsPlaylist {
				r.writePlain(" (%d/%d items)", t.DownloadedCount(), len(t.Items))
			}
			dim.Fprintf(r.output, "  %s %s\n", formatter.FormatBytes(t.Size), t.FilePath)
		case models.StateAlreadyExists:
			ok.Fprint(r.output, "= ")
			r.writePlain("%s", name)
			dim.Fprintf(r.output, "  already downloaded %s\n", t.FilePath)
		case models.StateError:
			failed++
			bad.Fprint(r.output, "✗ ")
			r.writePlain("%s: %s", name, t.Error)
			if t.ErrorCause != "" {
				warn.Fprintf(r.output, " (%s)", t.ErrorCause)
			}
			r.writePlain("\n")
		case models.StateCancelled:
			warn.Fprintf(r.output, "- %s cancelled\n", name)
		}
		if t.Warning != "" {
			warn.Fprintf(r.output, "  ! %s\n", t.Warning)
		}
	}

	for _, url := range skipped {
		warn.Fprintf(r.output, "- %s skipped, already in history (use --force)\n", url)
	}
	return failed
}

// barSet maps task URLs to their progress bars.
type barSet struct {
	mu   sync.Mutex
	p    *mpb.Progress
	bars map[string]*taskBar
}

func newBarSet(p *mpb.Progress) *barSet {
	return &barSet{p: p, bars: make(map[string]*taskBar)}
}

// taskBar is one bar plus the text its decorators render.
type taskBar struct {
	mu     sync.Mutex
	bar    *mpb.Bar
	name   string
	detail string
}

func (b *taskBar) set(t *models.Task) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.name = truncate(t.DisplayName(), 40)
	switch {
	case t.State == models.StateDownloading && t.IsPlaylist && t.TotalItems > 0:
		b.detail = fmt.Sprintf("%d/%d %s", t.DownloadedCount(), t.TotalItems, formatter.FormatSpeed(t.Speed))
	case t.State == models.StateDownloading && t.Speed > 0:
		b.detail = formatter.FormatSpeed(t.Speed)
	case t.State == models.StateError:
		b.detail = color.RedString(truncate(t.Error, 40))
	default:
		b.detail = t.State.String()
	}
}

func (b *taskBar) label(decor.Statistics) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.name
}

func (b *taskBar) status(decor.Statistics) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.detail
}

// track returns the bar for t, adding one the first time the URL is seen.
func (s *barSet) track(t *models.Task) *taskBar {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tb, ok := s.bars[t.URL]; ok {
		return tb
	}
	tb := &taskBar{}
	tb.set(t)
	tb.bar = s.p.AddBar(barTotal,
		mpb.PrependDecorators(decor.Any(tb.label, decor.WCSyncSpaceR)),
		mpb.AppendDecorators(decor.Percentage(decor.WCSyncSpace), decor.Any(tb.status, decor.WCSyncSpace)),
	)
	s.bars[t.URL] = tb
	return tb
}

func (s *barSet) apply(u tasks.ProgressUpdate) {
	if u.Task == nil {
		return
	}
	t := u.Task
	tb := s.track(t)
	tb.set(t)

	switch {
	case u.Phase == tasks.Removed:
		tb.bar.Abort(true)
	case t.State == models.StateCompleted, t.State == models.StateAlreadyExists:
		tb.bar.SetCurrent(barTotal)
	case t.State.IsTerminal():
		tb.bar.Abort(false)
	default:
		tb.bar.SetCurrent(min(int64(t.Progress*barTotal), barTotal-1))
	}
}

// finish aborts every bar that never reached a terminal update, so the progress
// container can shut down.
func (s *barSet) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tb := range s.bars {
		if !tb.bar.Completed() && !tb.bar.Aborted() {
			tb.bar.Abort(false)
		}
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
